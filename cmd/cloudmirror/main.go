// cloudmirror replicates a local directory to multiple object-storage
// targets and hands out presigned download URLs for what it uploaded.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	cfgFile  string
	logLevel string

	// replicate flags
	sourceOverride string
	reportOverride string
	noLinks        bool

	// shared by replicate and links
	expiryOverride time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cloudmirror",
		Short: "Mirror a directory to multiple object-storage targets",
		Long: `cloudmirror uploads a local directory to every storage target named in
its configuration file and prints presigned download URLs for the result.

Targets fail independently: a full bucket, a bad credential, or a dropped
connection on one provider never blocks the others. The run ends with a
per-target summary of what landed where.

  cloudmirror replicate --config cloudmirror.yaml
  cloudmirror links --expiry 24h`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "cloudmirror.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level")

	replicateCmd := &cobra.Command{
		Use:   "replicate",
		Short: "Upload the source directory to every enabled target",
		Args:  cobra.NoArgs,
		RunE:  runReplicate,
	}
	replicateCmd.Flags().StringVar(&sourceOverride, "source", "", "override the configured source directory")
	replicateCmd.Flags().StringVar(&reportOverride, "report", "", "override the configured report path")
	replicateCmd.Flags().DurationVar(&expiryOverride, "expiry", 0, "override the configured URL lifetime")
	replicateCmd.Flags().BoolVar(&noLinks, "no-links", false, "skip presigned URL generation")
	rootCmd.AddCommand(replicateCmd)

	linksCmd := &cobra.Command{
		Use:   "links",
		Short: "Regenerate presigned URLs for objects already in the buckets",
		Args:  cobra.NoArgs,
		RunE:  runLinks,
	}
	linksCmd.Flags().DurationVar(&expiryOverride, "expiry", 0, "override the configured URL lifetime")
	rootCmd.AddCommand(linksCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func setupLogging() error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	return nil
}
