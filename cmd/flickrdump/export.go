package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"flickrdump/pkg/auth"
	"flickrdump/pkg/config"
	"flickrdump/pkg/enumerator"
	"flickrdump/pkg/exporter"
	"flickrdump/pkg/fetcher"
	"flickrdump/pkg/flickr"
	"flickrdump/pkg/logger"
	"flickrdump/pkg/ratelimit"
	"flickrdump/pkg/retry"
	"flickrdump/pkg/storage"
	"flickrdump/pkg/tracker"
)

// Exit codes. Zero means every reachable item is on disk; partial means
// the run finished but some items failed and are recorded for retry.
const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

var (
	outputDir   string
	workers     int
	pageSize    int
	maxRetries  int
	userID      string
	accountName string
	skipDetails bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the full library to the output directory",
	Long: `Download every photo and video the account can see at original
quality. Each item produces two files: the binary under photos/ and a
YAML sidecar under metadata/.

The export is idempotent. Items recorded as complete are skipped, so
re-running after an interruption or a partial failure only fetches what
is still missing.`,
	Example: `  # Export your own library with defaults
  flickrdump export

  # Export to a specific directory with more workers
  flickrdump export --output /mnt/backup/flickr --workers 8

  # Export another user's visible library
  flickrdump export --user 12345678@N00

  # Use a specific stored account
  flickrdump export --account personal`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runExport())
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&outputDir, "output", "o", "", "destination directory (default ./flickr-library)")
	exportCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent downloads")
	exportCmd.Flags().IntVar(&pageSize, "page-size", 0, "items per listing page (max 500)")
	exportCmd.Flags().IntVar(&maxRetries, "max-retries", -1, "maximum retry attempts per request")
	exportCmd.Flags().StringVarP(&userID, "user", "u", "", "export this user's library instead of your own")
	exportCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	exportCmd.Flags().BoolVar(&skipDetails, "skip-details", false, "do not fetch EXIF and comments for the sidecars")
}

// Make export the default when invoked without a subcommand.
func init() {
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			os.Exit(runExport())
		}
		return cmd.Help()
	}
}

func runExport() int {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if workers > 0 {
		flags["workers"] = workers
	}
	if pageSize > 0 {
		flags["page-size"] = pageSize
	}
	if maxRetries >= 0 {
		flags["max-retries"] = maxRetries
	}
	if userID != "" {
		flags["user"] = userID
	}
	if skipDetails {
		flags["details"] = false
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		return exitFatal
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		return exitFatal
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("flickrdump starting")

	if err := resolveCredentials(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "\nTo store credentials securely, run:")
		fmt.Fprintln(os.Stderr, "  flickrdump auth login")
		fmt.Fprintln(os.Stderr, "\nOr set environment variables:")
		fmt.Fprintln(os.Stderr, "  export FLICKRDUMP_API_KEY=...")
		fmt.Fprintln(os.Stderr, "  export FLICKRDUMP_API_SECRET=...")
		fmt.Fprintln(os.Stderr, "  export FLICKRDUMP_OAUTH_TOKEN=...")
		fmt.Fprintln(os.Stderr, "  export FLICKRDUMP_OAUTH_TOKEN_SECRET=...")
		return exitFatal
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	track, err := tracker.Open(cfg.Output.Directory, log)
	if err != nil {
		log.WithError(err).Error("failed to open tracker")
		fmt.Fprintln(os.Stderr, err)
		return exitFatal
	}
	defer track.Close()

	layout, err := storage.NewLayout(cfg.Output.Directory)
	if err != nil {
		log.WithError(err).Error("failed to prepare destination")
		fmt.Fprintln(os.Stderr, err)
		return exitFatal
	}

	var limiter ratelimit.Limiter = ratelimit.NewInterval(cfg.RateLimit.MinRequestInterval)
	if cfg.RateLimit.Burst > 0 {
		limiter = ratelimit.NewTokenBucket(cfg.RateLimit.Burst, cfg.RateLimit.BurstWindow)
	}

	client := flickr.New(flickr.Credentials{
		APIKey:           cfg.Flickr.APIKey,
		APISecret:        cfg.Flickr.APISecret,
		OAuthToken:       cfg.Flickr.OAuthToken,
		OAuthTokenSecret: cfg.Flickr.OAuthTokenSecret,
	}, flickr.Options{
		UserID:     cfg.Flickr.UserID,
		Timeout:    cfg.Download.DownloadTimeout,
		Limiter:    limiter,
		MaxRetries: cfg.RateLimit.MaxRetries,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    cfg.RateLimit.RetryBaseDelay,
			MaxDelay:     cfg.RateLimit.RetryMaxDelay,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Logger: log,
	})

	enum := enumerator.New(client, track, cfg.Download.PageSize, log)
	fetch := fetcher.New(client, layout, track, cfg.Download.IncludeDetails, log)
	exp := exporter.New(enum, fetch, cfg.Download.Workers, log)

	report, runErr := exp.Run(ctx)

	printReport(report)

	switch {
	case runErr != nil:
		log.WithError(runErr).Error("export aborted")
		fmt.Fprintln(os.Stderr, "export aborted:", runErr)
		return exitFatal
	case !report.Clean():
		log.WithField("failed", report.Failed).Warn("export finished with failures")
		return exitPartial
	default:
		log.Info("export completed")
		return exitOK
	}
}

// resolveCredentials fills in cfg.Flickr from the credential store when the
// config and environment did not already provide a full set.
func resolveCredentials(cfg *config.Config) error {
	if cfg.Flickr.APIKey != "" && cfg.Flickr.OAuthToken != "" {
		return cfg.ValidateCredentials()
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			return fmt.Errorf("account not found: %s", accountName)
		}
	} else {
		account, err = manager.RetrieveDefault()
		if err != nil {
			return fmt.Errorf("no Flickr credentials found")
		}
	}

	cfg.Flickr.APIKey = account.APIKey
	cfg.Flickr.APISecret = account.APISecret
	cfg.Flickr.OAuthToken = account.OAuthToken
	cfg.Flickr.OAuthTokenSecret = account.OAuthTokenSecret

	logger.GetLogger().WithField("account", account.Name).Info("using stored credentials")

	return cfg.ValidateCredentials()
}

func printReport(r *exporter.Report) {
	fmt.Println()
	fmt.Println("Export summary")
	fmt.Printf("  total items:  %d\n", r.Total)
	fmt.Printf("  downloaded:   %d (%s)\n", r.Downloaded, formatBytes(r.Bytes))
	fmt.Printf("  skipped:      %d\n", r.Skipped)
	if r.Gone > 0 {
		fmt.Printf("  gone:         %d\n", r.Gone)
	}
	fmt.Printf("  failed:       %d\n", r.Failed)
	fmt.Printf("  elapsed:      %s\n", r.Elapsed.Round(time.Second))

	if len(r.Failures) > 0 {
		fmt.Println("\nFailed items:")
		for _, f := range r.Failures {
			fmt.Printf("  %s: %s\n", f.ID, f.Cause)
		}
		fmt.Println("\nRe-run to retry the failed items.")
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
