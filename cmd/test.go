package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s0up4200/cinescope/config"
	"github.com/s0up4200/cinescope/store"
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the connection to TMDB and the store",
	RunE:  runTest,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// no config needed
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cinescope %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(versionCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if used := config.ConfigFileUsed(cfgFile); used != "" {
		fmt.Fprintf(out, "Config: %s\n", used)
	} else {
		fmt.Fprintln(out, "Config: defaults and environment only")
	}

	fmt.Fprintf(out, "Testing connection to TMDB at %s...\n", cfg.TMDB.BaseURL)
	client, respCache, err := newCatalog(ctx)
	if err != nil {
		return err
	}
	if respCache != nil {
		defer respCache.Close()
		fmt.Fprintf(out, "- Response cache: %s (ttl %s)\n", respCache.Name(), cfg.Cache.TTL)
	} else {
		fmt.Fprintln(out, "- Response cache: disabled")
	}

	if err := client.TestConnection(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Connection successful!")

	genres, err := client.GetGenres(ctx)
	if err != nil {
		return fmt.Errorf("failed to get genres: %w", err)
	}
	fmt.Fprintf(out, "- Genres: %d\n", len(genres))

	fmt.Fprintf(out, "\nTesting %s store...\n", cfg.Store.Driver)
	err = withStore(func(st store.Store) error {
		// a read that touches the schema
		_, err := st.GetReviewsForMovie(ctx, 1)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Store ready!")

	if user := configuredUser(); user != nil {
		fmt.Fprintf(out, "\nActing as: %s (%s)\n", user.Name(), user.ID)
	} else {
		fmt.Fprintln(out, "\nNo user configured: favorites and reviews are read-only")
	}
	return nil
}
