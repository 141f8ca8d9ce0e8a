package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/cinescope/auth"
	"github.com/s0up4200/cinescope/cache"
	"github.com/s0up4200/cinescope/config"
	"github.com/s0up4200/cinescope/console"
	"github.com/s0up4200/cinescope/filter"
	"github.com/s0up4200/cinescope/store"
	"github.com/s0up4200/cinescope/tmdb"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger

	// Command flags
	filterExpr  string
	preset      string
	showDetails bool

	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cinescope",
	Short: "Browse, search and review movies from TMDB",
	Long: `cinescope lists popular movies from TMDB, searches them by title or
genre, shows details with cast and trailer, and keeps your favorites and
star-rated reviews in a local or shared store.

It can also serve the same operations over HTTP and WebSocket.`,
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersion records build information shown by the version command.
func SetVersion(v, built string) {
	version = v
	buildTime = built
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

// initializeApp loads the configuration and sets up logging
func initializeApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger = setupLogger(cfg.Logging)
	if used := config.ConfigFileUsed(cfgFile); used != "" {
		logger.Debug().Str("config", used).Msg("Loaded configuration")
	}
	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !console.IsTerminal(os.Stderr),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// newCatalog builds the TMDB client with the configured cache and breaker.
// The returned cache may be nil; callers close it when done.
func newCatalog(ctx context.Context) (*tmdb.Client, cache.Cache, error) {
	if err := cfg.ValidateCatalog(); err != nil {
		return nil, nil, err
	}

	respCache, err := cache.New(ctx, cache.Options{
		Backend:       cfg.Cache.Backend,
		Size:          cfg.Cache.Size,
		RedisAddr:     cfg.Cache.Redis.Addr,
		RedisPassword: cfg.Cache.Redis.Password,
		RedisDB:       cfg.Cache.Redis.DB,
		KeyPrefix:     "cinescope:",
	})
	if err != nil {
		return nil, nil, err
	}

	opts := []tmdb.Option{
		tmdb.WithBaseURL(cfg.TMDB.BaseURL),
		tmdb.WithLanguage(cfg.TMDB.Language),
		tmdb.WithTimeout(cfg.TMDB.Timeout),
	}
	if cfg.TMDB.ReadAccessToken != "" {
		opts = append(opts, tmdb.WithBearerToken(cfg.TMDB.ReadAccessToken))
	}
	if respCache != nil {
		opts = append(opts, tmdb.WithCache(respCache, cfg.Cache.TTL))
	}
	if b := cfg.TMDB.Breaker; b.Enabled {
		opts = append(opts, tmdb.WithBreaker(tmdb.BreakerSettings{
			MaxFailures:      b.MaxFailures,
			OpenTimeout:      b.OpenTimeout,
			HalfOpenRequests: b.HalfOpenRequests,
		}))
	}

	client, err := tmdb.NewClient(cfg.TMDB.APIKey, logger, opts...)
	if err != nil {
		if respCache != nil {
			_ = respCache.Close()
		}
		return nil, nil, fmt.Errorf("failed to create TMDB client: %w", err)
	}
	return client, respCache, nil
}

// openStore opens the configured favorites and reviews store.
func openStore() (store.Store, error) {
	st, err := store.Open(store.Options{
		Driver: cfg.Store.Driver,
		DSN:    cfg.Store.DSN,
		Path:   cfg.Store.Path,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// configuredUser returns the identity CLI commands act as, or nil.
func configuredUser() *auth.User {
	if !cfg.HasUser() {
		return nil
	}
	u := cfg.Auth.User
	return &auth.User{ID: u.ID, DisplayName: u.Name, PhotoURL: u.Photo, Email: u.Email}
}

// requireUser returns the configured user or an error naming the missing setting.
func requireUser() (*auth.User, error) {
	user := configuredUser()
	if user == nil {
		return nil, fmt.Errorf("no user configured: set auth.user.id (or CINESCOPE_AUTH_USER_ID)")
	}
	return user, nil
}

// newFilterManager compiles the configured presets. genres lets expressions
// use hasGenre with genre names.
func newFilterManager(genres []tmdb.Genre) (*filter.Manager, error) {
	compiler := filter.NewExprCompiler(
		filter.WithCache(filter.DefaultCacheSize),
		filter.WithGenres(genres),
	)
	manager := filter.NewManager(filter.WithCompiler(compiler))
	if err := manager.RegisterFilters(cfg.Filter.Presets); err != nil {
		return nil, err
	}
	return manager, nil
}

// resolveFilter picks the result filter. Priority: command line filter >
// preset > default expression. It returns nil when none is set.
func resolveFilter(manager *filter.Manager) (filter.CompiledFilter, error) {
	switch {
	case filterExpr != "":
		return manager.Compile(filterExpr)
	case preset != "":
		return manager.Preset(preset)
	case cfg.Filter.DefaultExpression != "":
		return manager.Compile(cfg.Filter.DefaultExpression)
	default:
		return nil, nil
	}
}

func formatter() *console.ConsoleFormatter {
	return console.NewConsoleFormatter(cfg.Logging.Color && console.IsTerminal(os.Stdout))
}
