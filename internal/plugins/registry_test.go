package plugins_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/contractscan/internal/model"
	"github.com/xab-mack/contractscan/internal/plugins"
	"github.com/xab-mack/contractscan/internal/solidity"
)

func TestRegistry_RunsInRegistrationOrder(t *testing.T) {
	r := plugins.NewRegistry(plugins.WithConcurrency(4))
	r.RegisterBuiltin()
	require.Len(t, r.Detectors(), 6)

	res := r.Run(context.Background(), solidity.Parse(reentrantBank))
	assert.Empty(t, res.Failures)
	require.NotEmpty(t, res.Findings)

	rank := map[string]int{}
	for i, name := range plugins.Names() {
		rank[name] = i
	}
	for i := 1; i < len(res.Findings); i++ {
		assert.LessOrEqual(t, rank[res.Findings[i-1].Detector], rank[res.Findings[i].Detector])
	}
	assert.Equal(t, "reentrancy", res.Findings[0].Detector)
}

func TestRegistry_DeterministicAcrossRuns(t *testing.T) {
	r := plugins.NewRegistry()
	r.RegisterBuiltin()
	pc := solidity.Parse(feeContract)

	fingerprints := func() []string {
		var out []string
		for _, f := range r.Run(context.Background(), pc).Findings {
			out = append(out, f.Fingerprint)
		}
		return out
	}
	first := fingerprints()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, fingerprints())
	}
}

func TestRegistry_PanicBecomesFailure(t *testing.T) {
	r := plugins.NewRegistry()
	r.Register(plugins.New(plugins.KindReentrancy))
	r.Register(&plugins.Detector{Kind: plugins.Kind(99), Name: "broken"})
	r.Register(plugins.New(plugins.KindStateModification))

	res := r.Run(context.Background(), solidity.Parse(reentrantBank))
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "broken", res.Failures[0].Detector)
	assert.Contains(t, res.Failures[0].Error, "panic")

	var detectors []string
	for _, f := range res.Findings {
		detectors = append(detectors, f.Detector)
	}
	assert.Contains(t, detectors, "reentrancy")
	assert.Contains(t, detectors, "state-modification")
}

func TestRegistry_CancelledContext(t *testing.T) {
	r := plugins.NewRegistry()
	r.RegisterBuiltin()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Run(ctx, solidity.Parse(reentrantBank))
	assert.Empty(t, res.Findings)
	require.Len(t, res.Failures, 6)
	for _, f := range res.Failures {
		assert.Contains(t, f.Error, "not started")
	}
}

func TestRegistry_Empty(t *testing.T) {
	res := plugins.NewRegistry().Run(context.Background(), &model.ParsedContract{})
	assert.Empty(t, res.Findings)
	assert.Empty(t, res.Failures)
}
