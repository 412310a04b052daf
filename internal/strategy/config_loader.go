package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML form of the strategy parameters.
type FileConfig struct {
	AdaptiveMethod   string  `yaml:"adaptive_method"`
	Threshold        float64 `yaml:"threshold"`
	FixedSLTicks     float64 `yaml:"fixed_sl_ticks"`
	TrailActTicks    float64 `yaml:"trail_activation_ticks"`
	TrailOffsetTicks float64 `yaml:"trail_offset_ticks"`
	RiskFraction     float64 `yaml:"risk_fraction"`
	TickSize         float64 `yaml:"tick_size"`
	InitialCapital   float64 `yaml:"initial_capital"`
	MaxLots          float64 `yaml:"max_lots"`
	DefaultPeriod    int     `yaml:"default_period"`
	MinPeriod        *int    `yaml:"min_period"`
	WarmupBars       int     `yaml:"warmup_bars"`
	ExitFillPolicy   string  `yaml:"exit_fill_policy"`
}

// LoadConfig reads strategy parameters from a YAML file, layered over
// DefaultConfig. Zero-valued scalars fall back to the defaults; min_period
// is a pointer so an explicit 0 survives.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse strategy config %s: %w", path, err)
	}
	return fc.apply(DefaultConfig())
}

func (fc FileConfig) apply(cfg Config) (Config, error) {
	if fc.AdaptiveMethod != "" {
		m, err := ParseAdaptiveMethod(fc.AdaptiveMethod)
		if err != nil {
			return Config{}, err
		}
		cfg.Method = m
	}
	if fc.ExitFillPolicy != "" {
		p, err := ParseExitFillPolicy(fc.ExitFillPolicy)
		if err != nil {
			return Config{}, err
		}
		cfg.FillPolicy = p
	}
	if fc.Threshold != 0 {
		cfg.Threshold = fc.Threshold
	}
	if fc.FixedSLTicks != 0 {
		cfg.FixedSLTicks = fc.FixedSLTicks
	}
	if fc.TrailActTicks != 0 {
		cfg.TrailActTicks = fc.TrailActTicks
	}
	if fc.TrailOffsetTicks != 0 {
		cfg.TrailOffsetTicks = fc.TrailOffsetTicks
	}
	if fc.RiskFraction != 0 {
		cfg.RiskFraction = fc.RiskFraction
	}
	if fc.TickSize != 0 {
		cfg.TickSize = fc.TickSize
	}
	if fc.InitialCapital != 0 {
		cfg.InitialCapital = fc.InitialCapital
	}
	if fc.MaxLots != 0 {
		cfg.MaxLots = fc.MaxLots
	}
	if fc.DefaultPeriod != 0 {
		cfg.DefaultPeriod = fc.DefaultPeriod
	}
	if fc.MinPeriod != nil {
		cfg.MinPeriod = *fc.MinPeriod
	}
	if fc.WarmupBars != 0 {
		cfg.WarmupBars = fc.WarmupBars
	}
	return cfg, nil
}
