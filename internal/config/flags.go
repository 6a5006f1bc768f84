package config

import (
	"github.com/spf13/pflag"
)

// Flag names shared by the commands.
const (
	FlagConfig           = "config"
	FlagQuery            = "query"
	FlagOutputDir        = "output-dir"
	FlagLabelsPrefix     = "labels-prefix"
	FlagCredentials      = "credentials"
	FlagTokensDir        = "tokens-dir"
	FlagAccount          = "account"
	FlagDryRun           = "dry-run"
	FlagFailLate         = "fail-late"
	FlagInterMessageWait = "inter-message-wait"
	FlagMetricsAddr      = "metrics-addr"
	FlagFilename         = "filename"
	FlagMimeType         = "mime-type"
	FlagMinSize          = "min-size"
	FlagMaxSize          = "max-size"
	FlagLogLevel         = "log-level"
	FlagLogFormat        = "log-format"
)

// AddAuthFlags defines the flags locating credentials and tokens.
func AddAuthFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, "", "Path to a YAML configuration file")
	fs.String(FlagCredentials, d.CredentialsFile, "OAuth client credentials file downloaded from the Google Cloud console")
	fs.String(FlagTokensDir, d.TokensDir, "Directory holding the stored OAuth tokens")
	fs.String(FlagAccount, d.Account, "Account name the token is stored under")
	fs.String(FlagLogLevel, d.Log.Level, "Log level: debug, info, warn, error")
	fs.String(FlagLogFormat, d.Log.Format, "Log format: text, json")
}

// AddExtractFlags defines the flags of an extraction run. AddAuthFlags must
// be called as well.
func AddExtractFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP(FlagQuery, "q", "", "Gmail search query selecting the messages to process, e.g. 'has:attachment larger:5M'")
	fs.StringP(FlagOutputDir, "o", d.OutputDir, "Directory the attachments are saved to; must not exist")
	fs.String(FlagLabelsPrefix, d.LabelsPrefix, "Prefix of the labels added to original and rewritten messages")
	fs.BoolP(FlagDryRun, "n", false, "Extract attachments but do not modify the mailbox")
	fs.Bool(FlagFailLate, false, "Continue with the next message after a failure and report all failures at the end")
	fs.Duration(FlagInterMessageWait, 0, "Pause between two messages")
	fs.String(FlagMetricsAddr, "", "Serve Prometheus metrics on this address during the run, e.g. :9090")
	fs.String(FlagFilename, "", "Regular expression the whole attachment file name must match")
	fs.String(FlagMimeType, "", "Regular expression matched against the start of the attachment MIME type")
	fs.String(FlagMinSize, "", "Minimum attachment size, e.g. 500k")
	fs.String(FlagMaxSize, "", "Maximum attachment size, e.g. 20M")
}

// ApplyFlags copies the flags that were set explicitly into c. Flags not
// defined in fs are ignored.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	strs := map[string]*string{
		FlagQuery:        &c.Query,
		FlagOutputDir:    &c.OutputDir,
		FlagLabelsPrefix: &c.LabelsPrefix,
		FlagCredentials:  &c.CredentialsFile,
		FlagTokensDir:    &c.TokensDir,
		FlagAccount:      &c.Account,
		FlagMetricsAddr:  &c.MetricsAddr,
		FlagFilename:     &c.Filter.Filename,
		FlagMimeType:     &c.Filter.MimeType,
		FlagMinSize:      &c.Filter.MinSize,
		FlagMaxSize:      &c.Filter.MaxSize,
		FlagLogLevel:     &c.Log.Level,
		FlagLogFormat:    &c.Log.Format,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	bools := map[string]*bool{
		FlagDryRun:   &c.DryRun,
		FlagFailLate: &c.FailLate,
	}
	for name, dst := range bools {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if fs.Changed(FlagInterMessageWait) {
		v, err := fs.GetDuration(FlagInterMessageWait)
		if err != nil {
			return err
		}
		c.InterMessageWait = v
	}
	return nil
}

// FromFlags loads the file named by the --config flag, the environment and
// the explicitly set flags.
func FromFlags(fs *pflag.FlagSet) (*Config, error) {
	path, _ := fs.GetString(FlagConfig)
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(fs); err != nil {
		return nil, err
	}
	return cfg, nil
}
