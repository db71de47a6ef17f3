package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atp2osm/atp2osm-import/internal/audit"
	"github.com/atp2osm/atp2osm-import/internal/catalog"
	"github.com/atp2osm/atp2osm-import/internal/config"
	"github.com/atp2osm/atp2osm-import/internal/db"
	"github.com/atp2osm/atp2osm-import/internal/logging"
	"github.com/atp2osm/atp2osm-import/internal/match"
	"github.com/atp2osm/atp2osm-import/internal/osm"
	"github.com/atp2osm/atp2osm-import/internal/pipeline"
	"github.com/atp2osm/atp2osm-import/internal/places"
	"github.com/atp2osm/atp2osm-import/internal/upload"
	"github.com/atp2osm/atp2osm-import/internal/web"
)

var (
	cfg    *config.Config
	logger *zap.SugaredLogger

	debugMode bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "atp2osm",
		Short: "Import ATP FR data into OSM",
		Long: `Reconciles the All The Places source catalog against OpenStreetMap
and publishes minimal, non-destructive tag updates as changesets.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			if logger, err = logging.New(debugMode); err != nil {
				return err
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false,
		"Enable debug mode; slower, better with a filter")

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createSetupCmd())
	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createStatsCmd())
	rootCmd.AddCommand(createWebCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runOptions are the run command flags.
type runOptions struct {
	Brand         string
	Postcode      string
	Departement   int
	FuzzyNames    bool
	Dry           bool
	Force         bool
	SkipSetup     bool
	ForceAtpSetup bool
	ForceOsmSetup bool
}

// createRunCmd creates the import run command.
func createRunCmd() *cobra.Command {
	var o runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the import pipeline",
		Long:  `Match, reconcile and publish source catalog data for the selected scope`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			if o.ForceAtpSetup || !o.SkipSetup {
				dl := catalog.NewSnapshotDownloader(cfg.Snapshot, cfg.DataDir, logger)
				if _, err := dl.Download(ctx, o.ForceAtpSetup); err != nil {
					return err
				}
			}

			conn, err := db.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			if !o.SkipSetup {
				if err := places.NewManager(conn.DB, logger).Setup(ctx, o.ForceOsmSetup); err != nil {
					return err
				}
			}

			debugDir := ""
			if debugMode {
				debugDir = cfg.DebugDir
			}

			engine := match.NewEngine(conn.DB, logger, debugDir)
			orch := upload.NewOrchestrator(osm.NewClient(cfg.OSM), cfg.OSM, logger, o.Dry)
			store := audit.NewStore(cfg.LogDir)
			runner := pipeline.NewRunner(engine, orch, store, logger)

			summary, err := runner.Run(ctx, pipeline.Options{
				Departement:     o.Departement,
				Brand:           o.Brand,
				Postcode:        o.Postcode,
				FuzzyNames:      o.FuzzyNames,
				IgnoreAuditHint: o.Force,
			})
			if err != nil {
				return err
			}

			printSummary(summary, o.Dry)
			return nil
		},
	}

	cmd.Flags().StringVarP(&o.Brand, "brand-wikidata", "b", "", "Brand wikidata filter")
	cmd.Flags().StringVarP(&o.Postcode, "postcode", "p", "", "Postcode filter")
	cmd.Flags().IntVarP(&o.Departement, "departement", "n", 0, "Departement number filter (1..95)")
	cmd.Flags().BoolVar(&o.FuzzyNames, "fuzzy-names", false, "Also accept fuzzy name similarity as a match criterion")
	cmd.Flags().BoolVar(&o.Dry, "dry", false, "Compute changes without applying")
	cmd.Flags().BoolVar(&o.Force, "force", false, "Process brands even when today's audit log already exists")
	cmd.Flags().BoolVar(&o.SkipSetup, "skip-setup", false, "Skip snapshot download and place view setup")
	cmd.Flags().BoolVar(&o.ForceAtpSetup, "force-atp-setup", false, "Force download of the latest catalog snapshot")
	cmd.Flags().BoolVar(&o.ForceOsmSetup, "force-osm-setup", false, "Force rebuild of the place view")

	return cmd
}

// createSetupCmd creates the setup-only command.
func createSetupCmd() *cobra.Command {
	var forceAtp, forceOsm bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Download the catalog snapshot and build the place view",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			dl := catalog.NewSnapshotDownloader(cfg.Snapshot, cfg.DataDir, logger)
			path, err := dl.Download(ctx, forceAtp)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Catalog snapshot at %s\n", path)

			conn, err := db.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := places.NewManager(conn.DB, logger).Setup(ctx, forceOsm); err != nil {
				return err
			}
			fmt.Println("✓ Place view ready")
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceAtp, "force-atp-setup", false, "Force download of the latest catalog snapshot")
	cmd.Flags().BoolVar(&forceOsm, "force-osm-setup", false, "Force rebuild of the place view")
	return cmd
}

// createPingCmd creates a command to test database connectivity.
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			conn, err := db.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Println("Database connection successful!")

			if count, err := catalog.New(conn.DB).Count(ctx); err != nil {
				logger.Warnf("Could not count catalog records: %v", err)
			} else {
				fmt.Printf("Catalog records loaded: %d\n", count)
			}
			if count, err := places.NewManager(conn.DB, logger).Count(ctx); err != nil {
				logger.Warnf("Could not count places: %v", err)
			} else {
				fmt.Printf("Places in view: %d\n", count)
			}
			return nil
		},
	}
}

// createStatsCmd creates the catalog statistics command.
func createStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show source catalog statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			conn, err := db.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			cat := catalog.New(conn.DB)
			brands, err := cat.ListBrands(ctx)
			if err != nil {
				return err
			}

			fmt.Println("=== Catalog Brands ===")
			fmt.Println("Brand                          | Wikidata    | Records")
			fmt.Println("-------------------------------|-------------|--------")
			for _, b := range brands {
				fmt.Printf("%-30s | %-11s | %6d\n", b.Brand, b.BrandWikidata, b.Count)
			}

			counts, err := cat.CountByDepartement(ctx)
			if err != nil {
				return err
			}
			fmt.Println("\n=== Records by Departement ===")
			for dep := catalog.MinDepartement; dep <= catalog.MaxDepartement; dep++ {
				if counts[dep] > 0 {
					fmt.Printf("%02d: %d\n", dep, counts[dep])
				}
			}
			return nil
		},
	}
}

// createWebCmd creates the dashboard server command.
func createWebCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "web",
		Short: "Serve the read-only review dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			conn, err := db.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			server := web.NewServer(cfg.WebListen, catalog.New(conn.DB), audit.NewStore(cfg.LogDir), logger)
			return server.Start(ctx)
		},
	}
}

// printSummary reports the completed run in the shape operators grep for.
func printSummary(s *pipeline.Summary, dry bool) {
	fmt.Printf("\n=== Run %s complete ===\n", s.RunID)
	if dry {
		fmt.Println("(dry run: nothing was uploaded)")
	}
	fmt.Printf("Matched pairs:     %d\n", s.Matched)
	fmt.Printf("Diffs computed:    %d\n", s.Diffed)
	fmt.Printf("Diffs published:   %d\n", s.Published)
	fmt.Printf("Diffs failed:      %d\n", s.Failed)
	if s.SkippedUpToDate > 0 {
		fmt.Printf("Skipped (already imported today): %d\n", s.SkippedUpToDate)
	}

	if len(s.Scopes) > 0 {
		fmt.Println("\nDepartement | Brand                | Matched | Diffed | Published | Failed")
		fmt.Println("------------|----------------------|---------|--------|-----------|-------")
		for _, sc := range s.Scopes {
			fmt.Printf("%11d | %-20s | %7d | %6d | %9d | %6d\n",
				sc.Departement, sc.Brand, sc.Matched, sc.Diffed, sc.Published, sc.Failed)
		}
	}

	if len(s.Stats.ByKey) > 0 {
		fmt.Println("\nModified tag keys:")
		for _, key := range s.Stats.Keys() {
			fmt.Printf("  %-15s %d\n", key, s.Stats.ByKey[key])
		}
	}

	if len(s.Changesets) > 0 {
		fmt.Println("\nChangesets:")
		for _, id := range s.Changesets {
			fmt.Printf("  %d\n", id)
		}
	}
}
