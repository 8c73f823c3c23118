package main

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind             string
	corsAllowOrigins []string
	hintAuthor       string
	meaningfulPool   int
	minWordLength    int
	modelDir         string
	port             int
	prefix           string
	profile          bool
	rankSize         int
	sessionTimeout   time.Duration
	tlsCert          string
	tlsKey           string
	verbose          bool
	version          bool
	vocabPath        string
	workers          int
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.meaningfulPool < 1 {
		return fmt.Errorf("invalid meaningful pool size: %d", c.meaningfulPool)
	}
	if c.rankSize < 0 {
		return fmt.Errorf("invalid vocab rank size: %d", c.rankSize)
	}
	if c.minWordLength < 1 {
		return fmt.Errorf("invalid minimum word length: %d", c.minWordLength)
	}
	if c.hintAuthor == "" {
		return errors.New("hint author name cannot be empty")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// buildWorkers resolves the ranking worker pool size, defaulting to one
// fewer than the core count so guess handling stays responsive mid-build.
func (c *Config) buildWorkers() int {
	if c.workers > 0 {
		return c.workers
	}
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PROXIMITY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "proximity",
		Short:         "A multiplayer word-proximity guessing game, served over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PROXIMITY_BIND)")
	fs.IntVar(&cfg.workers, "build-workers", 0, "concurrent ranking builds, 0 for core count minus one (env: PROXIMITY_BUILD_WORKERS)")
	fs.StringSliceVar(&cfg.corsAllowOrigins, "cors-allow-origins", []string{"*"}, "origins allowed to open websocket connections (env: PROXIMITY_CORS_ALLOW_ORIGINS)")
	fs.StringVar(&cfg.hintAuthor, "hint-author", "hint", "player name attributed to hint guesses (env: PROXIMITY_HINT_AUTHOR)")
	fs.IntVar(&cfg.meaningfulPool, "meaningful-pool-size", 2000, "number of leading vocabulary words eligible as targets (env: PROXIMITY_MEANINGFUL_POOL_SIZE)")
	fs.IntVar(&cfg.minWordLength, "min-word-length", 4, "minimum length for target words (env: PROXIMITY_MIN_WORD_LENGTH)")
	fs.StringVar(&cfg.modelDir, "model-dir", "model", "directory holding vectors.txt and lexicon.tsv (env: PROXIMITY_MODEL_DIR)")
	fs.IntVarP(&cfg.port, "port", "p", 8000, "port to listen on (env: PROXIMITY_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PROXIMITY_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PROXIMITY_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are reaped, 0 to disable (env: PROXIMITY_IDLE_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PROXIMITY_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PROXIMITY_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PROXIMITY_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PROXIMITY_VERSION)")
	fs.IntVar(&cfg.rankSize, "vocab-rank-size", 0, "number of leading vocabulary words to rank, 0 for all (env: PROXIMITY_VOCAB_RANK_SIZE)")
	fs.StringVar(&cfg.vocabPath, "vocab-path", "words.txt", "path to the newline-separated word list (env: PROXIMITY_VOCAB_PATH)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("proximity v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
