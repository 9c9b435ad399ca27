// Package config loads service configuration from a YAML file with
// environment overrides. Invalid thresholds fail fast here, before any
// computation starts.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kosha/koshatrack/internal/force"
	"github.com/kosha/koshatrack/internal/propagate"
	"github.com/kosha/koshatrack/internal/risk"
	"github.com/kosha/koshatrack/internal/validate"
)

// Duration wraps time.Duration so YAML values can use Go duration strings
// ("12h", "500ms") or bare numbers of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if secs, err := strconv.ParseFloat(n.Value, 64); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", n.Value, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config captures the settings required to boot the service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Gate        GateConfig        `yaml:"gate"`
	Force       force.Config      `yaml:"perturbations"`
	Propagation PropagationConfig `yaml:"propagation"`
	Screening   ScreeningConfig   `yaml:"screening"`
	Risk        RiskConfig        `yaml:"risk"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	GracefulTimeout Duration `yaml:"gracefulTimeout"`

	// TrustProxy enables X-Forwarded-For / X-Real-IP handling in request
	// logs. Only set behind a trusted reverse proxy.
	TrustProxy bool `yaml:"trustProxy"`
}

// AuthConfig controls the service-level Bearer token middleware. Distinct
// from the gate credential: this guards the transport, the gate guards the
// physics.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// GateConfig configures the admission gate.
type GateConfig struct {
	Token  string          `yaml:"token"`
	Policy validate.Policy `yaml:"policy"`
}

// PropagationConfig configures the numerical propagator.
type PropagationConfig struct {
	Workers      int              `yaml:"workers"`
	Step         Duration         `yaml:"step"`
	Method       propagate.Method `yaml:"method"`
	Tolerance    float64          `yaml:"tolerance"`   // km
	MinStep      Duration         `yaml:"minStep"`
	MinAltitude  float64          `yaml:"minAltitude"`  // km above surface
	EscapeRadius float64          `yaml:"escapeRadius"` // km geocentric
}

// ScreeningConfig configures the two-stage conjunction screen.
type ScreeningConfig struct {
	Window          Duration `yaml:"window"`
	CoarseSamples   int      `yaml:"coarseSamples"`
	ScreenThreshold float64  `yaml:"screenThreshold"` // km
	Threshold       float64  `yaml:"threshold"`       // km
	RefineTolerance Duration `yaml:"refineTolerance"`
	Workers         int      `yaml:"workers"`
}

// RiskConfig configures the collision probability engine.
type RiskConfig struct {
	HardBodyRadius float64             `yaml:"hardBodyRadius"` // km
	Samples        int                 `yaml:"samples"`
	Seed           int64               `yaml:"seed"`
	DefaultSigma   float64             `yaml:"defaultSigma"` // km
	Tiers          risk.TierThresholds `yaml:"tiers"`
}

// Engine converts the YAML shape into the risk engine's parameter struct.
func (r RiskConfig) Engine() risk.Config {
	return risk.Config{
		HardBodyRadius: r.HardBodyRadius,
		Samples:        r.Samples,
		Seed:           r.Seed,
		DefaultSigma:   r.DefaultSigma,
		Tiers:          r.Tiers,
	}
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("KOSHATRACK_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on settings that would poison every computation.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.Token == "" {
		return errors.New("auth.token is required when auth is enabled")
	}
	if c.Gate.Token == "" {
		return errors.New("gate.token must be set")
	}
	switch c.Gate.Policy {
	case validate.PolicyAuthFirst, validate.PolicyPhysicsFirst:
	default:
		return fmt.Errorf("gate.policy %q must be %q or %q", c.Gate.Policy, validate.PolicyAuthFirst, validate.PolicyPhysicsFirst)
	}
	if c.Screening.ScreenThreshold < c.Screening.Threshold {
		return fmt.Errorf("screening.screenThreshold %.1f km must not be tighter than screening.threshold %.1f km",
			c.Screening.ScreenThreshold, c.Screening.Threshold)
	}
	if c.Screening.Window <= 0 {
		return errors.New("screening.window must be positive")
	}
	if err := c.Risk.Engine().Validate(); err != nil {
		return err
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			GracefulTimeout: Duration(5 * time.Second),
		},
		Gate: GateConfig{
			Policy: validate.PolicyAuthFirst,
		},
		Force: force.AllPerturbations(),
		Propagation: PropagationConfig{
			Workers:      runtime.NumCPU(),
			Step:         Duration(10 * time.Second),
			Method:       propagate.MethodRK4,
			Tolerance:    1e-6,
			MinStep:      Duration(10 * time.Millisecond),
			MinAltitude:  100,
			EscapeRadius: 2e6,
		},
		Screening: ScreeningConfig{
			Window:          Duration(24 * time.Hour),
			CoarseSamples:   16,
			ScreenThreshold: 50,
			Threshold:       5,
			RefineTolerance: Duration(100 * time.Millisecond),
			Workers:         runtime.NumCPU(),
		},
		Risk: RiskConfig{
			HardBodyRadius: 0.02, // 20 m combined
			Samples:        10000,
			Seed:           1,
			DefaultSigma:   0.5,
			Tiers:          risk.TierThresholds{Low: 1e-6, Medium: 1e-5, High: 1e-4},
		},
		Logging: LoggingConfig{Level: "info", JSON: true},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KOSHATRACK_HTTP_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("KOSHATRACK_AUTH_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Enabled = enabled
		}
	}
	if v := os.Getenv("KOSHATRACK_AUTH_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("KOSHATRACK_GATE_TOKEN"); v != "" {
		cfg.Gate.Token = v
	}
	if v := os.Getenv("KOSHATRACK_GATE_POLICY"); v != "" {
		cfg.Gate.Policy = validate.Policy(v)
	}
	if v := os.Getenv("KOSHATRACK_PROP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			cfg.Propagation.Workers = n
		}
	}
	if v := os.Getenv("KOSHATRACK_PROP_STEP"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Propagation.Step = Duration(d)
		}
	}
	if v := os.Getenv("KOSHATRACK_SCREEN_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Screening.Window = Duration(d)
		}
	}
	if v := os.Getenv("KOSHATRACK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KOSHATRACK_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}
}
