/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Seednode/triviabox/questions"
	"github.com/Seednode/triviabox/stats"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	sourceOpenTDB = "opentdb"
	sourceFile    = "file"
)

type Config struct {
	allowedOrigins []string
	answerGrace    time.Duration
	bind           string
	envFile        string
	fetchTimeout   time.Duration
	joinURL        string
	maxPlayers     int
	natsSubject    string
	natsURL        string
	opentdbURL     string
	port           int
	prefix         string
	profile        bool
	questionFile   string
	questionSource string
	recordTimeout  time.Duration
	revealDuration time.Duration
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxPlayers < 1 {
		return fmt.Errorf("invalid --max-players (must be at least 1): %d", c.maxPlayers)
	}

	for name, d := range map[string]time.Duration{
		"answer-grace":    c.answerGrace,
		"fetch-timeout":   c.fetchTimeout,
		"record-timeout":  c.recordTimeout,
		"reveal-duration": c.revealDuration,
		"session-timeout": c.sessionTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid --%s (must be positive): %s", name, d)
		}
	}

	switch c.questionSource {
	case sourceOpenTDB:
	case sourceFile:
		if c.questionFile == "" {
			return errors.New("--question-file is required when --question-source=file")
		}
	default:
		return fmt.Errorf("invalid --question-source (must be %q or %q): %q", sourceOpenTDB, sourceFile, c.questionSource)
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// loadDotEnv reads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return godotenv.Load(path)
}

// applyEnv fills every flag not given on the command line from its
// TRIVIABOX_ environment variable.
func applyEnv(fs *pflag.FlagSet, v *viper.Viper) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRIVIABOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "triviabox",
		Short:         "Hosts live multiplayer trivia sessions over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			envFile := cfg.envFile
			if !cmd.Flags().Changed("env-file") {
				if fromEnv := os.Getenv("TRIVIABOX_ENV_FILE"); fromEnv != "" {
					envFile = fromEnv
				}
			}

			if err := loadDotEnv(envFile); err != nil {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}

			applyEnv(cmd.Flags(), v)

			return cfg.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringSliceVar(&cfg.allowedOrigins, "allowed-origins", []string{"*"}, "origins allowed to connect, comma-separated (env: TRIVIABOX_ALLOWED_ORIGINS)")
	fs.DurationVar(&cfg.answerGrace, "answer-grace", time.Second, "pause between the last answer and the reveal (env: TRIVIABOX_ANSWER_GRACE)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TRIVIABOX_BIND)")
	fs.StringVar(&cfg.envFile, "env-file", ".env", "dotenv file to load before reading the environment (env: TRIVIABOX_ENV_FILE)")
	fs.DurationVar(&cfg.fetchTimeout, "fetch-timeout", 10*time.Second, "time allowed for loading a batch of questions (env: TRIVIABOX_FETCH_TIMEOUT)")
	fs.StringVar(&cfg.joinURL, "join-url", "", "base URL encoded in session QR codes (env: TRIVIABOX_JOIN_URL)")
	fs.IntVar(&cfg.maxPlayers, "max-players", 8, "maximum players per session (env: TRIVIABOX_MAX_PLAYERS)")
	fs.StringVar(&cfg.natsSubject, "nats-subject", stats.DefaultSubject, "subject prefix for published results (env: TRIVIABOX_NATS_SUBJECT)")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "NATS server to publish match results to (env: TRIVIABOX_NATS_URL)")
	fs.StringVar(&cfg.opentdbURL, "opentdb-url", questions.DefaultOpenTDBURL, "base URL of the Open Trivia Database API (env: TRIVIABOX_OPENTDB_URL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TRIVIABOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TRIVIABOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TRIVIABOX_PROFILE)")
	fs.StringVar(&cfg.questionFile, "question-file", "", "YAML question bank used with --question-source=file (env: TRIVIABOX_QUESTION_FILE)")
	fs.StringVar(&cfg.questionSource, "question-source", sourceOpenTDB, "where questions come from: opentdb or file (env: TRIVIABOX_QUESTION_SOURCE)")
	fs.DurationVar(&cfg.recordTimeout, "record-timeout", 5*time.Second, "time allowed for publishing a result (env: TRIVIABOX_RECORD_TIMEOUT)")
	fs.DurationVar(&cfg.revealDuration, "reveal-duration", 3*time.Second, "time the correct answer is shown before the next question (env: TRIVIABOX_REVEAL_DURATION)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle sessions are closed (env: TRIVIABOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TRIVIABOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TRIVIABOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TRIVIABOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TRIVIABOX_VERSION)")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("triviabox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
