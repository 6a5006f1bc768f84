// Package config loads the extraction settings from defaults, an optional
// YAML file, ATTACHEXTRACT_* environment variables and command line flags,
// in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teemow/attachextract/internal/extractor"
	"github.com/teemow/attachextract/internal/filter"
	"github.com/teemow/attachextract/internal/google"
	"github.com/teemow/attachextract/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "ATTACHEXTRACT_"

// Config holds the complete application configuration.
type Config struct {
	Query            string        `yaml:"query"`
	OutputDir        string        `yaml:"output_dir"`
	LabelsPrefix     string        `yaml:"labels_prefix"`
	CredentialsFile  string        `yaml:"credentials_file"`
	TokensDir        string        `yaml:"tokens_dir"`
	Account          string        `yaml:"account"`
	DryRun           bool          `yaml:"dry_run"`
	FailLate         bool          `yaml:"fail_late"`
	InterMessageWait time.Duration `yaml:"inter_message_wait"`
	MetricsAddr      string        `yaml:"metrics_addr"`

	Filter FilterConfig `yaml:"filter"`
	Log    LogConfig    `yaml:"log"`
}

// FilterConfig selects the attachments to extract. Sizes accept SI
// suffixes such as 500k or 1.5MB.
type FilterConfig struct {
	Filename string `yaml:"filename"`
	MimeType string `yaml:"mime_type"`
	MinSize  string `yaml:"min_size"`
	MaxSize  string `yaml:"max_size"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		OutputDir:       extractor.DefaultOutputDir,
		LabelsPrefix:    extractor.DefaultLabelsPrefix,
		CredentialsFile: "credentials.json",
		TokensDir:       "tokens",
		Account:         google.DefaultAccount,
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path, when path
// is not empty, and then with the environment. Unknown YAML keys are errors.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() error {
	strs := map[string]*string{
		"QUERY":            &c.Query,
		"OUTPUT_DIR":       &c.OutputDir,
		"LABELS_PREFIX":    &c.LabelsPrefix,
		"CREDENTIALS_FILE": &c.CredentialsFile,
		"TOKENS_DIR":       &c.TokensDir,
		"ACCOUNT":          &c.Account,
		"METRICS_ADDR":     &c.MetricsAddr,
		"FILENAME":         &c.Filter.Filename,
		"MIME_TYPE":        &c.Filter.MimeType,
		"MIN_SIZE":         &c.Filter.MinSize,
		"MAX_SIZE":         &c.Filter.MaxSize,
		"LOG_LEVEL":        &c.Log.Level,
		"LOG_FORMAT":       &c.Log.Format,
	}
	for key, dst := range strs {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"DRY_RUN":   &c.DryRun,
		"FAIL_LATE": &c.FailLate,
	}
	for key, dst := range bools {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: invalid %s%s %q: %w", extractor.ErrConfiguration, EnvPrefix, key, v, err)
			}
			*dst = b
		}
	}

	if v := os.Getenv(EnvPrefix + "INTER_MESSAGE_WAIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: invalid %sINTER_MESSAGE_WAIT %q: %w", extractor.ErrConfiguration, EnvPrefix, v, err)
		}
		c.InterMessageWait = d
	}
	return nil
}

// BuildFilter compiles the attachment filter.
func (c *Config) BuildFilter() (*filter.Filter, error) {
	if _, err := filter.ParseSize(c.Filter.MinSize); err != nil {
		return nil, fmt.Errorf("%w: min size: %w", extractor.ErrConfiguration, err)
	}
	if _, err := filter.ParseSize(c.Filter.MaxSize); err != nil {
		return nil, fmt.Errorf("%w: max size: %w", extractor.ErrConfiguration, err)
	}
	f, err := filter.New(filter.Config{
		Filename: c.Filter.Filename,
		MimeType: c.Filter.MimeType,
		MinSize:  c.Filter.MinSize,
		MaxSize:  c.Filter.MaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", extractor.ErrConfiguration, err)
	}
	return f, nil
}

// Validate reports every configuration error at once. All returned errors
// match extractor.ErrConfiguration.
func (c *Config) Validate() error {
	return errors.Join(extractor.ValidateQuery(c.Query), c.ValidateSettings())
}

// ValidateSettings is Validate without the query check, for callers that
// supply the query per run.
func (c *Config) ValidateSettings() error {
	var errs []error
	if _, err := c.BuildFilter(); err != nil {
		errs = append(errs, err)
	}
	if c.InterMessageWait < 0 {
		errs = append(errs, fmt.Errorf("%w: inter message wait must not be negative", extractor.ErrConfiguration))
	}
	if strings.TrimSpace(c.LabelsPrefix) == "" {
		errs = append(errs, fmt.Errorf("%w: labels prefix must not be empty", extractor.ErrConfiguration))
	}
	if c.OutputDir == "" {
		errs = append(errs, fmt.Errorf("%w: output directory must not be empty", extractor.ErrConfiguration))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", extractor.ErrConfiguration, err))
	}
	if c.Log.Format != logging.FormatText && c.Log.Format != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("%w: unknown log format %q", extractor.ErrConfiguration, c.Log.Format))
	}
	return errors.Join(errs...)
}

// ExtractorOptions converts a validated configuration.
func (c *Config) ExtractorOptions() (extractor.Options, error) {
	f, err := c.BuildFilter()
	if err != nil {
		return extractor.Options{}, err
	}
	return extractor.Options{
		Query:            c.Query,
		OutputDir:        c.OutputDir,
		LabelsPrefix:     c.LabelsPrefix,
		Filter:           f,
		DryRun:           c.DryRun,
		FailLate:         c.FailLate,
		InterMessageWait: c.InterMessageWait,
	}, nil
}
