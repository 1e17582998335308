package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xab-mack/contractscan/internal/model"
)

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, model.SeverityCritical, model.ParseSeverity("critical"))
	assert.Equal(t, model.SeverityMedium, model.ParseSeverity("medium"))
	assert.Equal(t, model.SeverityInfo, model.ParseSeverity("bogus"))
	assert.True(t, model.ValidSeverity("low"))
	assert.False(t, model.ValidSeverity("LOW"))
}

func TestSeverityOrdering(t *testing.T) {
	for i := 1; i < len(model.Severities); i++ {
		assert.Greater(t, model.Severities[i-1].Rank(), model.Severities[i].Rank())
	}
	assert.True(t, model.SeverityGTE(model.SeverityHigh, model.SeverityMedium))
	assert.True(t, model.SeverityGTE(model.SeverityHigh, model.SeverityHigh))
	assert.False(t, model.SeverityGTE(model.SeverityLow, model.SeverityMedium))
}

func TestFunctionPredicates(t *testing.T) {
	fn := model.Function{Name: "f", Visibility: model.VisibilityInternal, StateMutability: model.MutabilityPure}
	assert.False(t, fn.IsEntryPoint())
	assert.False(t, fn.MutatesState())
	assert.False(t, fn.IsConstructor())
	assert.Equal(t, "f", fn.DisplayName())

	ctor := model.Function{Visibility: model.VisibilityPublic, StateMutability: model.MutabilityNonPayable}
	assert.True(t, ctor.IsEntryPoint())
	assert.True(t, ctor.MutatesState())
	assert.True(t, ctor.IsConstructor())
	assert.Equal(t, "constructor", ctor.DisplayName())
	assert.False(t, ctor.HasParameter(""))
}
