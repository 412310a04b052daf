package strategy

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
adaptive_method: iq
threshold: 0.5
fixed_sl_ticks: 1500
risk_fraction: 0.02
min_period: 0
exit_fill_policy: clamp_close
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Method != MethodInPhaseQuadrature {
		t.Errorf("Method = %v", cfg.Method)
	}
	if cfg.Threshold != 0.5 || cfg.FixedSLTicks != 1500 || cfg.RiskFraction != 0.02 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.FillPolicy != FillClampClose {
		t.Errorf("FillPolicy = %v", cfg.FillPolicy)
	}
	if cfg.MinPeriod != 0 {
		t.Errorf("explicit min_period 0 lost, got %d", cfg.MinPeriod)
	}
	// untouched fields keep their defaults
	def := DefaultConfig()
	if cfg.TrailActTicks != def.TrailActTicks || cfg.TickSize != def.TickSize {
		t.Errorf("defaults clobbered: %+v", cfg)
	}
}

func TestLoadConfigEmptyFileIsAllDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("empty config = %+v, want defaults", cfg)
	}
}

func TestLoadConfigRejectsBadMethod(t *testing.T) {
	path := writeConfig(t, "adaptive_method: kalman\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("unknown adaptive_method accepted")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
