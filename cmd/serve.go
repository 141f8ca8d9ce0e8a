package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/s0up4200/cinescope/auth"
	"github.com/s0up4200/cinescope/server"
)

var (
	serveAddr string
	tokenTTL  time.Duration
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the movie API over HTTP and WebSocket",
	Long: `Start the HTTP API. Lists, details and review listings are public; favorites and
review changes need a bearer token issued with "cinescope token".`,
	RunE: runServe,
}

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for the configured user",
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (overrides auth.token_ttl)")
}

// newTokens returns nil when no secret is configured.
func newTokens(ttl time.Duration) (*auth.Tokens, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, ttl)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	client, respCache, err := newCatalog(ctx)
	if err != nil {
		return err
	}
	if respCache != nil {
		defer respCache.Close()
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	tokens, err := newTokens(cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	if tokens == nil {
		logger.Warn().Msg("auth.jwt_secret is not set, favorites and review changes are disabled")
	}

	genres, err := client.GetGenres(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load genres, hasGenre filters accept ids only")
	}
	filters, err := newFilterManager(genres)
	if err != nil {
		return err
	}

	opts := server.Options{
		Addr:        cfg.Server.Addr,
		CORSOrigins: cfg.Server.CORSOrigins,
		RequireAuth: cfg.Server.RequireAuth,
		Debounce:    cfg.Browse.Debounce,
	}
	if serveAddr != "" {
		opts.Addr = serveAddr
	}
	// warming only pays off when responses are cached
	if respCache != nil {
		opts.WarmSchedule = cfg.Server.WarmSchedule
	}

	return server.New(client, st, tokens, filters, logger, opts).Run(ctx)
}

func runToken(cmd *cobra.Command, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}

	ttl := cfg.Auth.TokenTTL
	if tokenTTL > 0 {
		ttl = tokenTTL
	}
	tokens, err := newTokens(ttl)
	if err != nil {
		return err
	}
	if tokens == nil {
		return auth.ErrMissingSecret
	}

	token, err := tokens.Issue(*user)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
