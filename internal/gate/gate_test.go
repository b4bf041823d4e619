package gate

import (
	"testing"

	"github.com/ziadkadry99/localsort-core/internal/config"
)

func TestEvaluatePolicyNotEmbed(t *testing.T) {
	d := Evaluate(StageAnalysis, true, Settings{DefaultEmbeddingPolicy: config.PolicySkip})
	if d.ShouldEmbed {
		t.Errorf("expected no-embed for policy=skip, got %+v", d)
	}
}

func TestEvaluateScopeExcludesNonSmartFolder(t *testing.T) {
	d := Evaluate(StageAnalysis, false, Settings{
		DefaultEmbeddingPolicy: config.PolicyEmbed,
		EmbeddingScope:         config.ScopeSmartFoldersOnly,
		EmbeddingTiming:        config.TimingDuringAnalysis,
	})
	if d.ShouldEmbed {
		t.Errorf("expected no-embed outside smart folder scope, got %+v", d)
	}
}

func TestEvaluateManualTimingAlwaysNo(t *testing.T) {
	d := Evaluate(StageFinal, true, Settings{
		DefaultEmbeddingPolicy: config.PolicyEmbed,
		EmbeddingScope:         config.ScopeAllAnalyzed,
		EmbeddingTiming:        config.TimingManual,
	})
	if d.ShouldEmbed {
		t.Errorf("expected no-embed for manual timing, got %+v", d)
	}
}

func TestEvaluateAnalysisStageDuringAnalysis(t *testing.T) {
	d := Evaluate(StageAnalysis, true, Settings{
		DefaultEmbeddingPolicy: config.PolicyEmbed,
		EmbeddingScope:         config.ScopeAllAnalyzed,
		EmbeddingTiming:        config.TimingDuringAnalysis,
	})
	if !d.ShouldEmbed {
		t.Errorf("expected embed at analysis stage with during_analysis timing, got %+v", d)
	}
}

func TestEvaluateAnalysisStageWrongTiming(t *testing.T) {
	d := Evaluate(StageAnalysis, true, Settings{
		DefaultEmbeddingPolicy: config.PolicyEmbed,
		EmbeddingScope:         config.ScopeAllAnalyzed,
		EmbeddingTiming:        config.TimingAfterOrganize,
	})
	if d.ShouldEmbed {
		t.Errorf("expected no-embed at analysis stage with after_organize timing, got %+v", d)
	}
}

func TestEvaluateFinalStageAfterOrganize(t *testing.T) {
	d := Evaluate(StageFinal, true, Settings{
		DefaultEmbeddingPolicy: config.PolicyEmbed,
		EmbeddingScope:         config.ScopeAllAnalyzed,
		EmbeddingTiming:        config.TimingAfterOrganize,
	})
	if !d.ShouldEmbed {
		t.Errorf("expected embed at final stage with after_organize timing, got %+v", d)
	}
}

func TestEvaluateFinalStagePreventsDoubleEmbedding(t *testing.T) {
	d := Evaluate(StageFinal, true, Settings{
		DefaultEmbeddingPolicy: config.PolicyEmbed,
		EmbeddingScope:         config.ScopeAllAnalyzed,
		EmbeddingTiming:        config.TimingDuringAnalysis,
	})
	if d.ShouldEmbed {
		t.Errorf("expected no double-embed at final stage when timing=during_analysis, got %+v", d)
	}
}

func TestEvaluateUnknownStageFailsClosed(t *testing.T) {
	d := Evaluate(Stage("bogus"), true, Settings{
		DefaultEmbeddingPolicy: config.PolicyEmbed,
		EmbeddingScope:         config.ScopeAllAnalyzed,
		EmbeddingTiming:        config.TimingDuringAnalysis,
	})
	if d.ShouldEmbed {
		t.Errorf("expected unknown stage to fail closed, got %+v", d)
	}
	if d.Reason != "unknown_stage" {
		t.Errorf("unexpected reason: %s", d.Reason)
	}
}
