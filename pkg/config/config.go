// Package config loads the engine's configuration file and environment, per
// spec.md §6's configuration table.
//
// Grounded on the teacher's cmd/zap/main.go initConfig (viper.AddConfigPath/
// SetConfigName/AutomaticEnv, godotenv.Load before config read). Extended
// with an explicit FLOW_TEST_-prefixed env-var merge into the environment
// scope (spec.md §6), which the teacher's bare viper.AutomaticEnv() does not
// do on its own.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/flowtestdev/flowtest/pkg/errs"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Timeouts holds the configured per-request timeout defaults.
type Timeouts struct {
	DefaultMs int `mapstructure:"default"`
}

// Globals is the `globals` configuration block.
type Globals struct {
	Variables map[string]interface{} `mapstructure:"variables"`
	BaseURL   string                 `mapstructure:"base_url"`
	Timeouts  Timeouts               `mapstructure:"timeouts"`
}

// Discovery is the `discovery` configuration block.
type Discovery struct {
	Patterns []string `mapstructure:"patterns"`
	Exclude  []string `mapstructure:"exclude"`
}

// Priorities is the `priorities` configuration block.
type Priorities struct {
	Levels   []string `mapstructure:"levels"`
	Required []string `mapstructure:"required"`
}

// RetryFailed is the (currently unspecified beyond presence) step-level
// retry config block.
type RetryFailed struct {
	Enabled bool `mapstructure:"enabled"`
}

// Execution is the `execution` configuration block.
type Execution struct {
	Mode              string      `mapstructure:"mode"`
	MaxParallel       int         `mapstructure:"max_parallel"`
	ContinueOnFailure bool        `mapstructure:"continue_on_failure"`
	RetryFailed       RetryFailed `mapstructure:"retry_failed"`
}

// Config is the fully-loaded engine configuration (spec.md §6).
type Config struct {
	ProjectName   string     `mapstructure:"project_name"`
	TestDirectory string     `mapstructure:"test_directory"`
	Globals       Globals    `mapstructure:"globals"`
	Discovery     Discovery  `mapstructure:"discovery"`
	Priorities    Priorities `mapstructure:"priorities"`
	Execution     Execution  `mapstructure:"execution"`

	// Environment holds FLOW_TEST_-prefixed env vars, lowercased with the
	// prefix stripped, merged into the environment scope.
	Environment map[string]interface{}

	UseStrategyPattern bool
}

const envPrefix = "FLOW_TEST_"

// Load reads cfgFile (or the default ./flowtest.config.yaml / .json / .yml
// search path) via viper, applies defaults, merges FLOW_TEST_-prefixed
// environment variables, and loads a .env file first if present.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("flowtest.config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &errs.ConfigurationError{Key: "config_file", Message: err.Error()}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &errs.ConfigurationError{Key: "<root>", Message: err.Error()}
	}

	if cfg.ProjectName == "" {
		return nil, &errs.ConfigurationError{Key: "project_name", Message: "required"}
	}
	if cfg.Execution.Mode != "sequential" && cfg.Execution.Mode != "parallel" {
		return nil, &errs.ConfigurationError{Key: "execution.mode", Message: "must be \"sequential\" or \"parallel\""}
	}

	cfg.Environment, cfg.UseStrategyPattern = mergeEnvironment()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("test_directory", "./tests")
	v.SetDefault("globals.variables", map[string]interface{}{})
	v.SetDefault("globals.timeouts.default", 30000)
	v.SetDefault("discovery.patterns", []string{"**/*.test.yml", "**/*.test.yaml"})
	v.SetDefault("discovery.exclude", []string{"**/node_modules/**", "**/drafts/**", "**/draft/**"})
	v.SetDefault("priorities.levels", []string{"critical", "high", "medium", "low"})
	v.SetDefault("priorities.required", []string{"critical"})
	v.SetDefault("execution.mode", "sequential")
	v.SetDefault("execution.max_parallel", 5)
	v.SetDefault("execution.continue_on_failure", false)
}

// mergeEnvironment scans the process environment for FLOW_TEST_-prefixed
// keys, lowercases the name with the prefix stripped, and separately
// resolves the FLOW_TEST_USE_STRATEGY_PATTERN truthy flag (spec.md §6).
func mergeEnvironment() (map[string]interface{}, bool) {
	env := make(map[string]interface{})
	useStrategy := false
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], envPrefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(parts[0], envPrefix))
		if name == "use_strategy_pattern" {
			useStrategy = isTruthy(parts[1])
			continue
		}
		env[name] = parts[1]
	}
	return env, useStrategy
}

// isTruthy accepts true|1|yes|on (any case, trimmed) per spec.md §6.
func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b
		}
		return false
	}
}
