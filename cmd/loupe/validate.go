package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/loupe/pkg/cli"
	"mercator-hq/loupe/pkg/config"
)

var validateFormat string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file with defaults and LOUPE_* environment
overrides applied, and report every invalid field.

Examples:
  # Validate a file
  loupe validate --config loupe.yaml

  # Machine-readable result
  loupe validate --config loupe.yaml --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateFormat, "format", "text", "output format: text, json")
}

// validateResult is the output of the validate command.
type validateResult struct {
	Valid    bool               `json:"valid"`
	Path     string             `json:"path,omitempty"`
	Errors   []*cli.ConfigError `json:"errors,omitempty"`
	Summary  map[string]string  `json:"summary,omitempty"`
	Error    string             `json:"error,omitempty"`
}

func (r validateResult) String() string {
	var b strings.Builder
	if !r.Valid {
		b.WriteString("✗ Configuration invalid")
		if len(r.Errors) == 0 {
			fmt.Fprintf(&b, "\n  - %s", r.Error)
		}
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "\n  - %s: %s", e.Field, e.Message)
		}
		return b.String()
	}

	b.WriteString("✓ Configuration valid")
	for _, key := range []string{"listen", "routes", "recorder", "metrics", "health"} {
		fmt.Fprintf(&b, "\n  %-9s %s", key+":", r.Summary[key])
	}
	return b.String()
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFormat)
	if err != nil {
		return err
	}

	result := checkConfig(cfgFile)
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.Valid {
		return cli.NewConfigError("", "validation failed")
	}
	return nil
}

// checkConfig loads path and summarizes the effective configuration.
func checkConfig(path string) validateResult {
	result := validateResult{Path: path}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		result.Errors = cli.ConfigErrors(err)
		result.Error = err.Error()
		return result
	}
	result.Valid = true
	result.Summary = summarize(cfg)
	return result
}

func summarize(cfg *config.Config) map[string]string {
	routes := "built-in echo routes"
	if cfg.Upstream.URL != "" {
		routes = "proxy to " + cfg.Upstream.URL
	}

	rec := "disabled"
	if cfg.Recorder.Enabled {
		rec = fmt.Sprintf("%s sink, request body %s, response body %s",
			cfg.Recorder.Sink, onOff(cfg.Recorder.CaptureRequestBody), onOff(cfg.Recorder.CaptureResponseBody))
	}

	metricsPath := "disabled"
	if cfg.Telemetry.Metrics.Enabled {
		metricsPath = cfg.Telemetry.Metrics.Path
	}

	healthPaths := "disabled"
	if cfg.Telemetry.Health.Enabled {
		h := cfg.Telemetry.Health
		healthPaths = strings.Join([]string{h.LivenessPath, h.ReadinessPath, h.VersionPath}, ", ")
	}

	return map[string]string{
		"listen":   cfg.Server.ListenAddress,
		"routes":   routes,
		"recorder": rec,
		"metrics":  metricsPath,
		"health":   healthPaths,
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
