package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"attendance-guard/internal/models"
	"attendance-guard/internal/tamper"
)

// Policy holds the tunable verification thresholds
type Policy struct {
	BlockOnTamper     bool          `mapstructure:"block_on_tamper"`
	RequireLiveness   bool          `mapstructure:"require_liveness"`
	LockTimeout       time.Duration `mapstructure:"lock_timeout"`
	LivenessTimeout   time.Duration `mapstructure:"liveness_timeout"`
	ReputationTimeout time.Duration `mapstructure:"reputation_timeout"`

	Tamper struct {
		MaxLocationDiscrepancy   float64                        `mapstructure:"max_location_discrepancy_m"`
		BlockLocationDiscrepancy float64                        `mapstructure:"block_location_discrepancy_m"`
		MaxClockSkew             time.Duration                  `mapstructure:"max_clock_skew"`
		BlockClockSkew           time.Duration                  `mapstructure:"block_clock_skew"`
		RepeatOffenderWindow     time.Duration                  `mapstructure:"repeat_offender_window"`
		EmulatorTokens           []string                       `mapstructure:"emulator_tokens"`
		AutomationTokens         []string                       `mapstructure:"automation_tokens"`
		Actions                  map[string]models.TamperAction `mapstructure:"actions"`
	} `mapstructure:"tamper"`
}

// LoadPolicy reads the policy file at path. A missing file yields the
// defaults; environment variables prefixed with POLICY_ override keys.
func LoadPolicy(path string) (*Policy, error) {
	v := viper.New()
	setPolicyDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("POLICY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
		}
	}

	var p Policy
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("failed to decode policy: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func setPolicyDefaults(v *viper.Viper) {
	d := tamper.DefaultPolicy()

	v.SetDefault("block_on_tamper", false)
	v.SetDefault("require_liveness", false)
	v.SetDefault("lock_timeout", "3s")
	v.SetDefault("liveness_timeout", "2s")
	v.SetDefault("reputation_timeout", "1s")

	v.SetDefault("tamper.max_location_discrepancy_m", d.MaxLocationDiscrepancy)
	v.SetDefault("tamper.block_location_discrepancy_m", d.BlockLocationDiscrepancy)
	v.SetDefault("tamper.max_clock_skew", d.MaxClockSkew.String())
	v.SetDefault("tamper.block_clock_skew", d.BlockClockSkew.String())
	v.SetDefault("tamper.repeat_offender_window", d.RepeatOffenderWindow.String())
	v.SetDefault("tamper.emulator_tokens", d.EmulatorTokens)
	v.SetDefault("tamper.automation_tokens", d.AutomationTokens)
}

func (p *Policy) validate() error {
	t := p.Tamper
	if t.MaxLocationDiscrepancy <= 0 || t.BlockLocationDiscrepancy < t.MaxLocationDiscrepancy {
		return fmt.Errorf("%w: location discrepancy thresholds %v/%v",
			models.ErrInvalidInput, t.MaxLocationDiscrepancy, t.BlockLocationDiscrepancy)
	}
	if t.MaxClockSkew <= 0 || t.BlockClockSkew < t.MaxClockSkew {
		return fmt.Errorf("%w: clock skew thresholds %s/%s", models.ErrInvalidInput, t.MaxClockSkew, t.BlockClockSkew)
	}
	for kind, action := range t.Actions {
		switch action {
		case models.ActionLogged, models.ActionAlerted, models.ActionBlocked:
		default:
			return fmt.Errorf("%w: action %q for %s", models.ErrInvalidInput, action, kind)
		}
	}
	return nil
}

// TamperPolicy merges the file settings over the stock detector policy
func (p *Policy) TamperPolicy() tamper.Policy {
	tp := tamper.DefaultPolicy()
	tp.MaxLocationDiscrepancy = p.Tamper.MaxLocationDiscrepancy
	tp.BlockLocationDiscrepancy = p.Tamper.BlockLocationDiscrepancy
	tp.MaxClockSkew = p.Tamper.MaxClockSkew
	tp.BlockClockSkew = p.Tamper.BlockClockSkew
	tp.RepeatOffenderWindow = p.Tamper.RepeatOffenderWindow
	tp.EmulatorTokens = p.Tamper.EmulatorTokens
	tp.AutomationTokens = p.Tamper.AutomationTokens
	for kind, action := range p.Tamper.Actions {
		tp.Actions[models.TamperKind(kind)] = action
	}
	return tp
}
