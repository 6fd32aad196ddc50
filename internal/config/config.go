// Package config binds command-line flags and GLITCHKITCHEN_* environment
// variables into a Config.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "GLITCHKITCHEN"

// Config holds every runtime setting of the server
type Config struct {
	Port          int
	DBPath        string
	StaffPassword string
	LogLevel      string
	LogFormat     string
	BaseURL       string
	Reference     string

	ClassifierURL     string
	ClassifierKey     string
	ClassifierModel   string
	ClassifierTimeout time.Duration
	RequestTimeout    time.Duration

	RateLimit      int
	RateWindow     time.Duration
	DedupGrace     time.Duration
	SuppressWindow time.Duration

	NATSURL     string
	CORSOrigins []string
	TrustProxy  bool
	NoKeyboard  bool
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("--db must not be empty")
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("--rate-limit must be positive: %d", c.RateLimit)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("--rate-window must be positive: %s", c.RateWindow)
	}
	if c.DedupGrace < 0 {
		return fmt.Errorf("--dedup-grace must not be negative: %s", c.DedupGrace)
	}
	if c.SuppressWindow < 0 {
		return fmt.Errorf("--suppress-window must not be negative: %s", c.SuppressWindow)
	}
	if c.ClassifierTimeout <= 0 || c.RequestTimeout <= 0 {
		return errors.New("--classifier-timeout and --request-timeout must be positive")
	}
	if c.ClassifierTimeout >= c.RequestTimeout {
		return fmt.Errorf("--classifier-timeout (%s) must be shorter than --request-timeout (%s)", c.ClassifierTimeout, c.RequestTimeout)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("--log-format must be text or json: %q", c.LogFormat)
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ResolvedBaseURL returns BaseURL, or a localhost URL when unset
func (c *Config) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Port)
}

// RunFunc starts the server once the configuration is valid
type RunFunc func(ctx context.Context, cfg *Config) error

// NewCommand builds the root command. An optional .env file in the working
// directory is loaded before the environment is read.
func NewCommand(cfg *Config, version string, run RunFunc) *cobra.Command {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "glitchkitchen",
		Short:   "Game master server for The Glitch Kitchen: phase timer and recipe evaluation.",
		Args:    cobra.ExactArgs(0),
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.IntVarP(&cfg.Port, "port", "p", 8081, "HTTP server port (env: GLITCHKITCHEN_PORT)")
	fs.StringVar(&cfg.DBPath, "db", "glitchkitchen.db", "SQLite database path (env: GLITCHKITCHEN_DB)")
	fs.StringVar(&cfg.StaffPassword, "staff-password", "", "staff password, generated when empty (env: GLITCHKITCHEN_STAFF_PASSWORD)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error (env: GLITCHKITCHEN_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "log format: text or json (env: GLITCHKITCHEN_LOG_FORMAT)")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "public URL encoded in team join QR codes (env: GLITCHKITCHEN_BASE_URL)")
	fs.StringVar(&cfg.Reference, "reference", "", "reference recipe YAML, built-in recipe when empty (env: GLITCHKITCHEN_REFERENCE)")

	fs.StringVar(&cfg.ClassifierURL, "classifier-url", "", "OpenAI-compatible classifier endpoint, mock classifier when empty (env: GLITCHKITCHEN_CLASSIFIER_URL)")
	fs.StringVar(&cfg.ClassifierKey, "classifier-key", "", "classifier API key (env: GLITCHKITCHEN_CLASSIFIER_KEY)")
	fs.StringVar(&cfg.ClassifierModel, "classifier-model", "gpt-4o-mini", "classifier model name (env: GLITCHKITCHEN_CLASSIFIER_MODEL)")
	fs.DurationVar(&cfg.ClassifierTimeout, "classifier-timeout", 25*time.Second, "deadline of one classifier call (env: GLITCHKITCHEN_CLASSIFIER_TIMEOUT)")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", 60*time.Second, "deadline of one evaluation (env: GLITCHKITCHEN_REQUEST_TIMEOUT)")

	fs.IntVar(&cfg.RateLimit, "rate-limit", 3, "evaluations per client per window (env: GLITCHKITCHEN_RATE_LIMIT)")
	fs.DurationVar(&cfg.RateWindow, "rate-window", time.Minute, "rate limit window (env: GLITCHKITCHEN_RATE_WINDOW)")
	fs.DurationVar(&cfg.DedupGrace, "dedup-grace", 2*time.Second, "time a finished evaluation is shared with late duplicates (env: GLITCHKITCHEN_DEDUP_GRACE)")
	fs.DurationVar(&cfg.SuppressWindow, "suppress-window", 3*time.Second, "time peer snapshots are ignored after a local expiry (env: GLITCHKITCHEN_SUPPRESS_WINDOW)")

	fs.StringVar(&cfg.NATSURL, "nats-url", "", "NATS server for multi-instance timer sync, disabled when empty (env: GLITCHKITCHEN_NATS_URL)")
	fs.StringSliceVar(&cfg.CORSOrigins, "cors-origins", []string{"*"}, "allowed CORS origins (env: GLITCHKITCHEN_CORS_ORIGINS)")
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", false, "take client addresses from X-Real-IP / X-Forwarded-For, only behind a reverse proxy (env: GLITCHKITCHEN_TRUST_PROXY)")
	fs.BoolVar(&cfg.NoKeyboard, "no-keyboard", false, "disable keyboard shortcuts (env: GLITCHKITCHEN_NO_KEYBOARD)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, envValue(v, f))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("glitchkitchen {{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// envValue renders a bound value the way pflag parses it. Slices from the
// environment arrive comma separated.
func envValue(v *viper.Viper, f *pflag.Flag) string {
	if f.Value.Type() == "stringSlice" {
		return strings.Join(v.GetStringSlice(f.Name), ",")
	}
	return fmt.Sprintf("%v", v.Get(f.Name))
}
