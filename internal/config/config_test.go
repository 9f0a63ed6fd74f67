package config

import (
	"os"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Image.MaxLongSide != 3508 {
		t.Errorf("expected default max_long_side 3508, got %d", cfg.Image.MaxLongSide)
	}
	if cfg.Image.JPEGQuality != 85 {
		t.Errorf("expected default jpeg_quality 85, got %d", cfg.Image.JPEGQuality)
	}
	if cfg.Merge.WordThreshold != 0.1 {
		t.Errorf("expected default word_threshold 0.1, got %v", cfg.Merge.WordThreshold)
	}
	if cfg.Merge.PhraseThreshold != 0.5 {
		t.Errorf("expected default phrase_threshold 0.5, got %v", cfg.Merge.PhraseThreshold)
	}
	if cfg.Match.TextThreshold != 0.6 {
		t.Errorf("expected default text_threshold 0.6, got %v", cfg.Match.TextThreshold)
	}
	if cfg.Match.PositionMaxDistance != 100 {
		t.Errorf("expected default position_max_distance 100, got %v", cfg.Match.PositionMaxDistance)
	}
	if cfg.Match.ConsistencyThreshold != 0.88 {
		t.Errorf("expected default consistency_threshold 0.88, got %v", cfg.Match.ConsistencyThreshold)
	}
	if cfg.UUID.NumericWeight != 0.8 || cfg.UUID.AlphaWeight != 0.2 {
		t.Errorf("expected default uuid weights 0.8/0.2, got %v/%v", cfg.UUID.NumericWeight, cfg.UUID.AlphaWeight)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("GRADECORE_TEST_KEY", "secret123")
		defer os.Unsetenv("GRADECORE_TEST_KEY")

		if got := ResolveEnvVars("${GRADECORE_TEST_KEY}"); got != "secret123" {
			t.Errorf("expected secret123, got %s", got)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		if got := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}"); got != "" {
			t.Errorf("expected empty string, got %s", got)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		if got := ResolveEnvVars("literal-value"); got != "literal-value" {
			t.Errorf("expected literal-value, got %s", got)
		}
	})
}

func TestNewManagerWithoutFile(t *testing.T) {
	mgr, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := mgr.Get()
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
}
