package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/config"
	"github.com/mamadbah2/milkmatrix/internal/grading"
	"github.com/mamadbah2/milkmatrix/internal/qrcode"
	"github.com/mamadbah2/milkmatrix/internal/repository/driver"
	"github.com/mamadbah2/milkmatrix/internal/repository/postgres"
	"github.com/mamadbah2/milkmatrix/internal/seed"
	healthsvc "github.com/mamadbah2/milkmatrix/internal/service/health"
	milksvc "github.com/mamadbah2/milkmatrix/internal/service/milk"
	"github.com/mamadbah2/milkmatrix/pkg/logger"
)

type options struct {
	envFile string
	verbose bool
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "dairyctl",
		Short:         "Operator tools for the dairy record service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Env file to load (default: .env when present)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Operation timeout")

	root.AddCommand(newGradeCmd())
	root.AddCommand(newExtractIDCmd())
	root.AddCommand(newSeedCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	return root
}

func newGradeCmd() *cobra.Command {
	var fat, protein, scc, bacteria float64

	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade milk composition against the quality standards",
		Long: `Grade milk composition against the quality standards.

Only the flags that are set take part in grading, e.g.
  dairyctl grade --fat 3.8 --protein 3.2 --scc 150`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p grading.Params
			flags := cmd.Flags()
			if flags.Changed("fat") {
				p.Fat = &fat
			}
			if flags.Changed("protein") {
				p.Protein = &protein
			}
			if flags.Changed("scc") {
				p.SomaticCellCount = &scc
			}
			if flags.Changed("bacteria") {
				p.BacteriaCount = &bacteria
			}
			if !p.Any() {
				return fmt.Errorf("set at least one of --fat, --protein, --scc or --bacteria")
			}

			result := grading.NewEngine(grading.DefaultStandards).Evaluate(p)
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().Float64Var(&fat, "fat", 0, "Fat content (%)")
	cmd.Flags().Float64Var(&protein, "protein", 0, "Protein content (%)")
	cmd.Flags().Float64Var(&scc, "scc", 0, "Somatic cell count (thousands/ml)")
	cmd.Flags().Float64Var(&bacteria, "bacteria", 0, "Bacteria count (CFU/ml)")
	return cmd
}

func newExtractIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract-id <payload>",
		Short: "Print the cow ID encoded in a scanned tag payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), qrcode.ExtractID(args[0]))
			return err
		},
	}
}

func newSeedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample cows, milk records and health events",
		Long: `Load five sample cows with a week of morning and evening milk records and a
few completed health events. Nothing is written when the store already has cows.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.NewCLI(opts.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(cfg.Reporting.Timezone)
			if err != nil {
				return fmt.Errorf("invalid TIMEZONE: %w", err)
			}

			ctx, cancel := contextWithTimeout(cmd, opts.timeout)
			defer cancel()

			store, err := driver.Open(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() {
				if err := store.Close(ctx); err != nil {
					log.Warn("close store", zap.Error(err))
				}
			}()

			seeder := seed.New(store,
				milksvc.NewService(store, nil, loc, log.Named("svc.milk")),
				healthsvc.NewService(store, log.Named("svc.health")),
				nil, log.Named("seed"))

			result, err := seeder.Run(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), result)
			return err
		},
	}
}

func newMigrateCmd(opts *options) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.envFile != "" {
				if err := godotenv.Load(opts.envFile); err != nil {
					return fmt.Errorf("load %s: %w", opts.envFile, err)
				}
			} else {
				_ = godotenv.Load()
			}
			if dsn == "" {
				dsn = os.Getenv("DATABASE_URL")
			}
			if dsn == "" {
				return fmt.Errorf("--dsn or DATABASE_URL must be provided")
			}

			ctx, cancel := contextWithTimeout(cmd, opts.timeout)
			defer cancel()

			db, err := postgres.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return err
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection string (default: $DATABASE_URL)")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
