// Package config handles configuration loading and management for llm-owl.
// It supports XDG config paths, project-level overrides, a .env file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	// ProjectConfigName is searched for in the working directory and its parents.
	ProjectConfigName = ".llm-owl.yaml"
	// DotEnvName is read from the working directory and the project root.
	DotEnvName = ".env"
	// EnvPrefix prefixes generic overrides, e.g. LLM_OWL_VALIDATION_MAX_ATTEMPTS.
	EnvPrefix = "LLM_OWL"
)

// Config holds all configuration for llm-owl.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Validation ValidationConfig `mapstructure:"validation"`
	Generate   GenerateConfig   `mapstructure:"generate"`
	History    HistoryConfig    `mapstructure:"history"`
}

// LLMConfig selects the model that drafts and repairs ontologies.
type LLMConfig struct {
	Provider   string        `mapstructure:"provider" validate:"oneof=openai anthropic bedrock"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey     string        `mapstructure:"api_key"`
	MaxTokens  int           `mapstructure:"max_tokens" validate:"gte=0"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
	AWSRegion  string        `mapstructure:"aws_region"`
	AWSProfile string        `mapstructure:"aws_profile"`
}

// ValidationConfig tunes the validation pipeline and the correction loop.
type ValidationConfig struct {
	// MaxAttempts is the number of corrections after the initial cycle.
	MaxAttempts          int           `mapstructure:"max_attempts" validate:"gte=0,lte=20"`
	StrictConsistency    bool          `mapstructure:"strict_consistency"`
	InjectFailureContext bool          `mapstructure:"inject_failure_context"`
	Format               string        `mapstructure:"format" validate:"oneof=turtle ntriples rdfxml"`
	QueryTimeout         time.Duration `mapstructure:"query_timeout" validate:"gte=0"`
	LogFile              string        `mapstructure:"log_file" validate:"required"`
	ReportFile           string        `mapstructure:"report_file" validate:"required"`
}

// GenerateConfig holds the drafting settings.
type GenerateConfig struct {
	SystemPrompt  string `mapstructure:"system_prompt" validate:"required"`
	BaseNamespace string `mapstructure:"base_namespace" validate:"required,uri"`
	DestRoot      string `mapstructure:"dest_root" validate:"required"`
	Name          string `mapstructure:"name" validate:"required"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path overrides the project-local database location.
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention" validate:"gte=0"`
}

// envBindings maps config keys to the variables the tool has always read.
var envBindings = map[string]string{
	"llm.provider": "LLM_PROVIDER",
	"llm.base_url": "LLM_BASE_URL",
	"llm.model":    "LLM_MODEL",
	"llm.api_key":  "LLM_API_KEY",
}

// Load loads configuration relative to the current directory.
// Precedence (highest to lowest):
// 1. Environment variables (LLM_BASE_URL, LLM_MODEL, LLM_API_KEY, LLM_PROVIDER, LLM_OWL_*)
// 2. .env file
// 3. Project config (.llm-owl.yaml in current directory or parent)
// 4. User config (~/.config/llm-owl/config.yaml)
// 5. Built-in defaults
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "get working directory")
	}
	return LoadDir(cwd)
}

// LoadDir is Load with dir standing in for the working directory.
func LoadDir(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading user config")
		}
	}

	projectConfig := findProjectConfig(dir)
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading %s", projectConfig)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, errors.Wrap(err, "merging project config")
		}
	}

	if err := mergeDotEnv(v, dotEnvCandidates(dir, projectConfig)); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	return decode(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config from %s", path)
	}
	return decode(v)
}

// LoadUser reads the user config file alone, without environment or
// project overrides and with ${VAR} references left as written. It is the
// starting point for edits that Save writes back.
func LoadUser() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(GetUserConfigPath())
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "reading user config")
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	// Expand ${VAR} references
	cfg.LLM.APIKey = os.ExpandEnv(cfg.LLM.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// dotEnvCandidates lists the .env files to consult, most specific first.
func dotEnvCandidates(dir, projectConfig string) []string {
	paths := []string{filepath.Join(dir, DotEnvName)}
	if projectConfig != "" {
		root := filepath.Join(filepath.Dir(projectConfig), DotEnvName)
		if root != paths[0] {
			paths = append(paths, root)
		}
	}
	return paths
}

// mergeDotEnv folds the first readable .env file into v beneath the real
// environment: a variable already exported wins over the file.
func mergeDotEnv(v *viper.Viper, candidates []string) error {
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		values, err := readDotEnv(path)
		if err != nil {
			return err
		}

		settings := map[string]any{}
		for key, env := range envBindings {
			val, ok := values[env]
			if !ok || os.Getenv(env) != "" {
				continue
			}
			section, field, _ := strings.Cut(key, ".")
			m, _ := settings[section].(map[string]any)
			if m == nil {
				m = map[string]any{}
				settings[section] = m
			}
			m[field] = val
		}
		if len(settings) == 0 {
			return nil
		}
		return errors.Wrapf(v.MergeConfigMap(settings), "merging %s", path)
	}
	return nil
}

// readDotEnv returns the KEY=value pairs of a dotenv file with upper-case keys.
func readDotEnv(path string) (map[string]string, error) {
	dv := viper.New()
	dv.SetConfigFile(path)
	dv.SetConfigType("env")
	if err := dv.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	out := make(map[string]string)
	for k, val := range dv.AllSettings() {
		out[strings.ToUpper(k)] = fmt.Sprint(val)
	}
	return out, nil
}

var validate = newValidate()

func newValidate() *validator.Validate {
	vd := validator.New()
	// Report fields by their config key.
	vd.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return vd
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validating config")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		_, key, _ := strings.Cut(fe.Namespace(), ".")
		msgs = append(msgs, fmt.Sprintf("%s: %s", key, describe(fe)))
	}
	return errors.WithHint(
		errors.Newf("invalid configuration: %s", strings.Join(msgs, "; ")),
		fmt.Sprintf("check %s and %s", GetUserConfigPath(), ProjectConfigName))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "required":
		return "is required"
	case "url", "uri":
		return fmt.Sprintf("must be a valid %s, got %q", fe.Tag(), fmt.Sprint(fe.Value()))
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("fails %q", fe.Tag())
	}
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return errors.Wrap(err, "creating config directory")
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))
	for _, key := range Keys() {
		val, _ := cfg.Get(key)
		v.Set(key, val)
	}
	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findProjectConfig(cwd)
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()
	for _, key := range Keys() {
		val, _ := d.Get(key)
		v.SetDefault(key, val)
	}
}

// getUserConfigDir returns the XDG config directory for llm-owl.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "llm-owl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "llm-owl")
	}
	return filepath.Join(home, ".config", "llm-owl")
}

// findProjectConfig searches for .llm-owl.yaml in dir and its parents.
func findProjectConfig(dir string) string {
	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Timeout:  5 * time.Minute,
		},
		Validation: ValidationConfig{
			MaxAttempts:          3,
			InjectFailureContext: true,
			Format:               "turtle",
			LogFile:              "validation.log",
			ReportFile:           "validation_report.json",
		},
		Generate: GenerateConfig{
			SystemPrompt:  "system_step-by-step.md",
			BaseNamespace: "http://example.org/highway_code#",
			DestRoot:      "dest",
			Name:          "output",
		},
		History: HistoryConfig{
			Enabled:   true,
			Retention: 30 * 24 * time.Hour,
		},
	}
}

// field binds a dot-notation key to a Config field.
type field struct {
	get func(c *Config) any
	set func(c *Config, s string) error
}

func stringField(p func(c *Config) *string) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, s string) error { *p(c) = s; return nil },
	}
}

func intField(p func(c *Config) *int) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, s string) error {
			n, err := strconv.Atoi(s)
			if err != nil {
				return errors.Wrapf(err, "invalid integer %q", s)
			}
			*p(c) = n
			return nil
		},
	}
}

func boolField(p func(c *Config) *bool) field {
	return field{
		get: func(c *Config) any { return *p(c) },
		set: func(c *Config, s string) error {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return errors.Wrapf(err, "invalid boolean %q", s)
			}
			*p(c) = b
			return nil
		},
	}
}

func durationField(p func(c *Config) *time.Duration) field {
	return field{
		get: func(c *Config) any { return p(c).String() },
		set: func(c *Config, s string) error {
			d, err := time.ParseDuration(s)
			if err != nil {
				return errors.Wrapf(err, "invalid duration %q", s)
			}
			*p(c) = d
			return nil
		},
	}
}

var fields = map[string]field{
	"llm.provider":    stringField(func(c *Config) *string { return &c.LLM.Provider }),
	"llm.model":       stringField(func(c *Config) *string { return &c.LLM.Model }),
	"llm.base_url":    stringField(func(c *Config) *string { return &c.LLM.BaseURL }),
	"llm.api_key":     stringField(func(c *Config) *string { return &c.LLM.APIKey }),
	"llm.max_tokens":  intField(func(c *Config) *int { return &c.LLM.MaxTokens }),
	"llm.timeout":     durationField(func(c *Config) *time.Duration { return &c.LLM.Timeout }),
	"llm.aws_region":  stringField(func(c *Config) *string { return &c.LLM.AWSRegion }),
	"llm.aws_profile": stringField(func(c *Config) *string { return &c.LLM.AWSProfile }),

	"validation.max_attempts":           intField(func(c *Config) *int { return &c.Validation.MaxAttempts }),
	"validation.strict_consistency":     boolField(func(c *Config) *bool { return &c.Validation.StrictConsistency }),
	"validation.inject_failure_context": boolField(func(c *Config) *bool { return &c.Validation.InjectFailureContext }),
	"validation.format":                 stringField(func(c *Config) *string { return &c.Validation.Format }),
	"validation.query_timeout":          durationField(func(c *Config) *time.Duration { return &c.Validation.QueryTimeout }),
	"validation.log_file":               stringField(func(c *Config) *string { return &c.Validation.LogFile }),
	"validation.report_file":            stringField(func(c *Config) *string { return &c.Validation.ReportFile }),

	"generate.system_prompt":  stringField(func(c *Config) *string { return &c.Generate.SystemPrompt }),
	"generate.base_namespace": stringField(func(c *Config) *string { return &c.Generate.BaseNamespace }),
	"generate.dest_root":      stringField(func(c *Config) *string { return &c.Generate.DestRoot }),
	"generate.name":           stringField(func(c *Config) *string { return &c.Generate.Name }),

	"history.enabled":   boolField(func(c *Config) *bool { return &c.History.Enabled }),
	"history.path":      stringField(func(c *Config) *string { return &c.History.Path }),
	"history.retention": durationField(func(c *Config) *time.Duration { return &c.History.Retention }),
}

// Keys returns every configuration key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of a dot-notation key. Durations are returned as
// strings.
func (c *Config) Get(key string) (any, error) {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return nil, unknownKey(key)
	}
	return f.get(c), nil
}

// Set parses value into the field named by key and revalidates.
func (c *Config) Set(key, value string) error {
	f, ok := fields[strings.ToLower(key)]
	if !ok {
		return unknownKey(key)
	}
	next := *c
	if err := f.set(&next, value); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func unknownKey(key string) error {
	return errors.WithHint(errors.Newf("unknown configuration key: %s", key),
		"run `llm-owl config` to list keys")
}
