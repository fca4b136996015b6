package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/soldier-roster/pkg/core/engine"
	"github.com/jakechorley/soldier-roster/pkg/core/policy"
)

// Storage backends
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// PenaltyConfig overrides one penalty descriptor
type PenaltyConfig struct {
	Name               string  `yaml:"name" validate:"required"`
	Tier               int     `yaml:"tier" validate:"min=1,max=4"`
	Scope              string  `yaml:"scope" validate:"required,oneof=soldier_day block_deficit soldier"`
	UnitCost           float64 `yaml:"unitCost" validate:"gt=0"`
	CriticalThreshold  float64 `yaml:"criticalThreshold,omitempty" validate:"gte=0"`
	CriticalMultiplier float64 `yaml:"criticalMultiplier,omitempty" validate:"gte=0"`
	Tolerance          int     `yaml:"tolerance,omitempty" validate:"gte=0"`
}

// PolicyConfig replaces parts of the built-in penalty table
type PolicyConfig struct {
	// Penalties replaces the whole table when set
	Penalties     []PenaltyConfig `yaml:"penalties,omitempty" validate:"omitempty,dive"`
	WeekendFactor float64         `yaml:"weekendFactor,omitempty" validate:"gte=0"`
	// WeekendRule is an RRULE whose BYDAY lists the weekend days, e.g. "FREQ=WEEKLY;BYDAY=FR,SA"
	WeekendRule string `yaml:"weekendRule,omitempty"`
}

// ScaleConfig is the roster size the penalty table must dominate over
type ScaleConfig struct {
	Soldiers     int `yaml:"soldiers" validate:"gte=0"`
	Days         int `yaml:"days" validate:"gte=0"`
	MinBaseBlock int `yaml:"minBaseBlock" validate:"gte=0"`
}

// SolverConfig bounds the search. Zero values keep the engine defaults.
type SolverConfig struct {
	TimeBudget      string       `yaml:"timeBudget,omitempty"`
	Workers         int          `yaml:"workers,omitempty" validate:"gte=0"`
	Seed            int64        `yaml:"seed,omitempty"`
	MaxRounds       int          `yaml:"maxRounds,omitempty" validate:"gte=0"`
	StallRounds     int          `yaml:"stallRounds,omitempty" validate:"gte=0"`
	PerturbFraction float64      `yaml:"perturbFraction,omitempty" validate:"gte=0,lte=1"`
	ExpectedScale   *ScaleConfig `yaml:"expectedScale,omitempty"`
}

// StorageConfig selects where events, rosters and runs are kept
type StorageConfig struct {
	Backend    string `yaml:"backend" validate:"required,oneof=postgres sqlite"`
	SQLitePath string `yaml:"sqlitePath,omitempty" validate:"required_if=Backend sqlite"`
	// DatabaseURL comes from the DATABASE_URL environment variable or a .env file
	DatabaseURL string `yaml:"-"`
}

// SheetsConfig holds the spreadsheet used to import rosters and publish schedules
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheetID,omitempty"`
	RosterTab     string `yaml:"rosterTab,omitempty"`
}

// Config represents the application configuration
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Policy  PolicyConfig  `yaml:"policy,omitempty"`
	Solver  SolverConfig  `yaml:"solver,omitempty"`
	Sheets  SheetsConfig  `yaml:"sheets,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from roster_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads roster_config.<env>.yaml and the matching .env file
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findFile(envFileName("roster_config", env, "yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	if err := loadDotEnv(env); err != nil {
		return nil, err
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Storage.DatabaseURL = os.Getenv("DATABASE_URL")

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct, the weekend rule and the penalty table.
// The table must dominate at the expected scale, so a bad table fails at startup.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Storage.Backend == BackendPostgres && cfg.Storage.DatabaseURL == "" {
		return fmt.Errorf("config validation failed: DATABASE_URL is required for the postgres backend")
	}

	if cfg.Policy.WeekendRule != "" {
		if _, err := rrule.StrToRRule(cfg.Policy.WeekendRule); err != nil {
			return fmt.Errorf("invalid rrule in policy.weekendRule: %w", err)
		}
	}

	if cfg.Solver.TimeBudget != "" {
		if _, err := time.ParseDuration(cfg.Solver.TimeBudget); err != nil {
			return fmt.Errorf("invalid solver.timeBudget: %w", err)
		}
	}

	pol, err := cfg.PenaltyPolicy()
	if err != nil {
		return err
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	if err := pol.VerifyDominance(opts.ExpectedScale); err != nil {
		return fmt.Errorf("invalid penalty table: %w", err)
	}

	return nil
}

// PenaltyPolicy builds the penalty table from the defaults and the configured overrides
func (c *Config) PenaltyPolicy() (policy.Policy, error) {
	pol := policy.Default()

	if len(c.Policy.Penalties) > 0 {
		pol.Descriptors = make([]policy.Descriptor, len(c.Policy.Penalties))
		for i, p := range c.Policy.Penalties {
			pol.Descriptors[i] = policy.Descriptor{
				Name:               p.Name,
				Tier:               p.Tier,
				Scope:              policy.Scope(p.Scope),
				UnitCost:           p.UnitCost,
				CriticalThreshold:  p.CriticalThreshold,
				CriticalMultiplier: p.CriticalMultiplier,
				Tolerance:          p.Tolerance,
			}
		}
	}
	if c.Policy.WeekendFactor > 0 {
		pol.WeekendFactor = c.Policy.WeekendFactor
	}
	if c.Policy.WeekendRule != "" {
		days, err := WeekendDays(c.Policy.WeekendRule)
		if err != nil {
			return policy.Policy{}, err
		}
		pol.WeekendDays = days
	}

	if err := pol.Validate(); err != nil {
		return policy.Policy{}, fmt.Errorf("invalid penalty table: %w", err)
	}
	return pol, nil
}

// EngineOptions overlays the configured solver limits on the engine defaults
func (c *Config) EngineOptions() (engine.Options, error) {
	opts := engine.DefaultOptions()
	s := c.Solver

	if s.TimeBudget != "" {
		budget, err := time.ParseDuration(s.TimeBudget)
		if err != nil {
			return opts, fmt.Errorf("invalid solver.timeBudget: %w", err)
		}
		opts.TimeBudget = budget
	}
	if s.Workers > 0 {
		opts.Workers = s.Workers
	}
	if s.Seed != 0 {
		opts.Seed = s.Seed
	}
	if s.MaxRounds > 0 {
		opts.MaxRounds = s.MaxRounds
	}
	if s.StallRounds > 0 {
		opts.StallRounds = s.StallRounds
	}
	if s.PerturbFraction > 0 {
		opts.PerturbFraction = s.PerturbFraction
	}
	if s.ExpectedScale != nil {
		opts.ExpectedScale = policy.Scale{
			Soldiers:     s.ExpectedScale.Soldiers,
			Days:         s.ExpectedScale.Days,
			MinBaseBlock: s.ExpectedScale.MinBaseBlock,
		}
	}
	return opts, nil
}

// WeekendDays reads the BYDAY list of an RRULE as weekdays
func WeekendDays(rule string) ([]time.Weekday, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("invalid weekend rule: %w", err)
	}
	if len(opt.Byweekday) == 0 {
		return nil, fmt.Errorf("weekend rule %q has no BYDAY", rule)
	}

	days := make([]time.Weekday, 0, len(opt.Byweekday))
	for _, wd := range opt.Byweekday {
		// rrule counts from Monday
		days = append(days, time.Weekday((wd.Day()+1)%7))
	}
	return days, nil
}

// loadDotEnv reads .env.<env> and then .env if present. Variables already set win.
func loadDotEnv(env string) error {
	var files []string
	if env != "" {
		files = append(files, ".env."+env)
	}
	files = append(files, ".env")

	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// findFile searches for name in the current directory and then the home directory
// envFileName returns stem.ext, or stem.<env>.ext when env is set
func envFileName(stem, env, ext string) string {
	if env == "" {
		return stem + "." + ext
	}
	return stem + "." + env + "." + ext
}

func findFile(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}
