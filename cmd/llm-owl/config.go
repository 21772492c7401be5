package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LyzardKing/llm-owl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify llm-owl configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the value in the user config.

Configuration is stored at ~/.config/llm-owl/config.yaml
Project-specific overrides can be placed in .llm-owl.yaml, and
LLM_BASE_URL, LLM_MODEL and LLM_API_KEY are also read from .env`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 2 {
			return setConfigKey(out, args[0], args[1])
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			return displayConfigKey(out, cfg, args[0])
		}
		displayAllConfig(out, cfg)
		return nil
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range config.Keys() {
		value, _ := configValue(cfg, key)
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
	if _, source := config.GetAPIKey(cfg); source != config.KeySourceNone {
		fmt.Fprintf(w, "\n(api key from %s)\n", source)
	}
	if path := config.GetProjectConfigPath(); path != "" {
		fmt.Fprintf(w, "(project config %s)\n", path)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(w io.Writer, cfg *config.Config, key string) error {
	value, err := configValue(cfg, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, value)
	return nil
}

// setConfigKey sets a value in the user config file only, so values from
// the environment or a project file are never copied into it.
func setConfigKey(w io.Writer, key, value string) error {
	cfg, err := config.LoadUser()
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	if strings.EqualFold(key, "llm.api_key") {
		value = config.MaskAPIKey(value)
	}
	fmt.Fprintf(w, "Set %s = %s\n", key, value)
	return nil
}

func configValue(cfg *config.Config, key string) (string, error) {
	if strings.EqualFold(key, "llm.api_key") {
		k, _ := config.GetAPIKey(cfg)
		return config.MaskAPIKey(k), nil
	}
	v, err := cfg.Get(key)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok && s == "" {
		return "(not set)", nil
	}
	return fmt.Sprint(v), nil
}
