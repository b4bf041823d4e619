// Package gate implements the Embedding Gate: a pure decision function
// over a file's pipeline stage and the user's embedding settings,
// with no teacher analogue and no I/O — it is the single source of
// truth for whether an analyzed file's embedding gets persisted.
package gate

import "github.com/ziadkadry99/localsort-core/internal/config"

// Stage identifies where in the pipeline the gate is being consulted.
type Stage string

const (
	StageAnalysis Stage = "analysis"
	StageFinal    Stage = "final"
)

// Decision is the outcome of evaluating the gate.
type Decision struct {
	ShouldEmbed bool
	Reason      string
}

// Settings is the subset of configuration the gate consults.
type Settings struct {
	EmbeddingTiming        config.EmbeddingTiming
	DefaultEmbeddingPolicy config.EmbeddingPolicy
	EmbeddingScope         config.EmbeddingScope
}

// Evaluate decides whether to persist an embedding for a file at the
// given stage, consulting the configured timing/policy/scope rules.
// Unknown stages fail closed.
func Evaluate(stage Stage, isInSmartFolder bool, s Settings) Decision {
	if s.DefaultEmbeddingPolicy != config.PolicyEmbed {
		return Decision{ShouldEmbed: false, Reason: "policy_not_embed"}
	}
	if s.EmbeddingScope == config.ScopeSmartFoldersOnly && !isInSmartFolder {
		return Decision{ShouldEmbed: false, Reason: "scope_excludes_non_smart_folder"}
	}
	if s.EmbeddingTiming == config.TimingManual {
		return Decision{ShouldEmbed: false, Reason: "timing_manual"}
	}

	switch stage {
	case StageAnalysis:
		if s.EmbeddingTiming == config.TimingDuringAnalysis {
			return Decision{ShouldEmbed: true, Reason: "timing_during_analysis"}
		}
		return Decision{ShouldEmbed: false, Reason: "timing_not_during_analysis"}
	case StageFinal:
		if s.EmbeddingTiming == config.TimingAfterOrganize {
			return Decision{ShouldEmbed: true, Reason: "timing_after_organize"}
		}
		return Decision{ShouldEmbed: false, Reason: "timing_not_after_organize"}
	default:
		return Decision{ShouldEmbed: false, Reason: "unknown_stage"}
	}
}
