package engine

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/xab-mack/contractscan/internal/analysis"
	"github.com/xab-mack/contractscan/internal/config"
	"github.com/xab-mack/contractscan/internal/model"
)

// suppressionWindow is how many lines above a finding an inline marker may sit.
const suppressionWindow = 5

// applyIgnores drops findings matched by an unexpired config rule or an
// inline suppression marker.
func applyIgnores(findings []model.Web3Finding, cfg config.Config, pctx *analysis.ProjectContext, now time.Time) []model.Web3Finding {
	var out []model.Web3Finding
	for _, f := range findings {
		if isIgnored(f, cfg, now) || hasInlineSuppression(pctx.Content(f.File), f.Detector, f.LineNumber) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isIgnored(f model.Web3Finding, cfg config.Config, now time.Time) bool {
	for _, ig := range cfg.Ignore {
		if ig.Expired(now) {
			continue
		}
		if ig.Rule != "" && !strings.EqualFold(ig.Rule, f.Detector) && !strings.EqualFold(ig.Rule, f.SWCID) {
			continue
		}
		if ig.Path != "" && !strings.HasPrefix(filepath.ToSlash(f.File), filepath.ToSlash(ig.Path)) {
			continue
		}
		return true
	}
	return false
}

// hasInlineSuppression looks for "contractscan:ignore <detector>" on the
// finding line or up to suppressionWindow lines above it.
func hasInlineSuppression(content, detector string, line int) bool {
	if content == "" || line <= 0 {
		return false
	}
	lines := strings.Split(content, "\n")
	from := max(line-1-suppressionWindow, 0)
	to := min(line-1, len(lines)-1)
	needle := "contractscan:ignore " + detector
	for i := from; i <= to; i++ {
		if strings.Contains(lines[i], needle) {
			return true
		}
	}
	return false
}
