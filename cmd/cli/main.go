package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gosuperior/adapters/draws"
	"gosuperior/adapters/excel"
	"gosuperior/adapters/postgres"
	"gosuperior/adapters/report"
	"gosuperior/app"
	"gosuperior/domain/core"
	"gosuperior/domain/superior"
	"gosuperior/internal"
	"gosuperior/internal/config"
	"gosuperior/internal/engine"
	"gosuperior/internal/errors"
	"gosuperior/internal/migration"
	"gosuperior/internal/testkit"
	"gosuperior/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "superior",
		Short:         "Probability of superior performance from multi-environment trial posteriors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newEstimateCmd(),
		newSimulateCmd(),
		newMigrateCmd(),
		newDeleteCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", errors.Classify(err), err)
		os.Exit(1)
	}
}

type estimateOptions struct {
	trialPath    string
	drawsPath    string
	samples      int
	sheet        string
	intensity    float64
	increase     bool
	genotypeCol  string
	envCol       string
	regionCol    string
	traitCol     string
	workers      int
	exportFormat string
	outDir       string
	reportPath   string
	persist      bool
}

func newEstimateCmd() *cobra.Command {
	var opts estimateOptions

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the probability of superior performance",
		Long: `Estimate, for every genotype, the probability of ranking among the selected
fraction within each environment, within each region and across the trial.

The trial table is CSV or XLSX with one row per plot. Posterior draws are a
long-format CSV (sample,effect,genotype,environment,region,value) or a JSON
sample set. Defaults come from the environment (SUPERIOR_INTENSITY,
SUPERIOR_INCREASE, GENOTYPE_COLUMN, ...); flags override them.

Example:
  superior estimate --trial met.csv --draws draws.csv --intensity 0.2 --region-column region --export xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, opts)
			return runEstimate(cmd.Context(), cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.trialPath, "trial", "", "Trial table (.csv or .xlsx)")
	f.StringVar(&opts.drawsPath, "draws", "", "Posterior draws (.csv or .json)")
	f.IntVar(&opts.samples, "samples", 0, "Declared number of posterior samples (0 infers it)")
	f.StringVar(&opts.sheet, "sheet", "", "Worksheet of an .xlsx trial table (default first sheet)")
	f.Float64Var(&opts.intensity, "intensity", 0.2, "Selected fraction of genotypes, in (0, 1]")
	f.BoolVar(&opts.increase, "increase", true, "Higher trait values are better")
	f.StringVar(&opts.genotypeCol, "genotype-column", "", "Genotype column name")
	f.StringVar(&opts.envCol, "environment-column", "", "Environment column name")
	f.StringVar(&opts.regionCol, "region-column", "", "Region column name (enables region probabilities)")
	f.StringVar(&opts.traitCol, "trait-column", "", "Trait column name")
	f.IntVar(&opts.workers, "workers", 0, "Worker goroutines (0 uses SUPERIOR_WORKERS)")
	f.StringVar(&opts.exportFormat, "export", "csv", "Export format: csv|xlsx|none")
	f.StringVar(&opts.outDir, "out", "", "Export directory (default EXPORT_DIR)")
	f.StringVar(&opts.reportPath, "report", "", "Write a report (.html or .md)")
	f.BoolVar(&opts.persist, "persist", false, "Store the result in DATABASE_URL")
	_ = cmd.MarkFlagRequired("trial")
	_ = cmd.MarkFlagRequired("draws")

	return cmd
}

// applyFlags lets explicitly set flags override environment configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts estimateOptions) {
	f := cmd.Flags()
	if f.Changed("intensity") {
		cfg.Selection.Intensity = opts.intensity
	}
	if f.Changed("increase") {
		cfg.Selection.Increase = opts.increase
	}
	if opts.genotypeCol != "" {
		cfg.Columns.Genotype = opts.genotypeCol
	}
	if opts.envCol != "" {
		cfg.Columns.Environment = opts.envCol
	}
	if opts.regionCol != "" {
		cfg.Columns.Region = opts.regionCol
	}
	if opts.traitCol != "" {
		cfg.Columns.Trait = opts.traitCol
	}
	if opts.workers > 0 {
		cfg.Engine.Workers = opts.workers
	}
	if opts.outDir != "" {
		cfg.Paths.ExportDir = opts.outDir
	}
}

func runEstimate(ctx context.Context, cfg *config.Config, opts estimateOptions) error {
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	var repo ports.ResultRepositoryPort
	if opts.persist {
		db, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = postgres.NewResultRepository(db)
	}

	reader := excel.NewDataReader(opts.trialPath)
	if opts.sheet != "" {
		reader = reader.WithSheet(opts.sheet)
	}
	service := app.NewProbabilityService(
		reader,
		draws.NewFileReader(opts.drawsPath, opts.samples),
		repo,
		engine.New(cfg.Engine.Workers, logger),
		cfg.Columns,
		logger,
	)

	result, err := service.Estimate(ctx, cfg.Selection.Spec())
	if err != nil {
		return err
	}

	targets, err := exportTargets(opts.exportFormat, result)
	if err != nil {
		return err
	}
	if len(targets) > 0 {
		paths, err := service.Export(ctx, result, cfg.Paths.ExportDir, targets)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println(p)
		}
	}

	if opts.reportPath != "" {
		if err := writeReport(opts.reportPath, result); err != nil {
			return err
		}
		fmt.Println(opts.reportPath)
	}

	fmt.Printf("run %s: %d genotypes x %d environments, %d regions, %d samples\n",
		result.RunID, len(result.Genotypes), len(result.Environments), len(result.Regions), result.Samples)
	return nil
}

func exportTargets(format string, result *superior.Result) ([]app.ExportTarget, error) {
	switch strings.ToLower(format) {
	case "none", "":
		return nil, nil
	case "xlsx":
		return []app.ExportTarget{{Name: "superior", Exporter: excel.NewXLSXExporter()}}, nil
	case "csv":
		var targets []app.ExportTarget
		for _, t := range excel.Tables(result) {
			targets = append(targets, app.ExportTarget{Name: string(t), Exporter: excel.NewCSVExporter(t)})
		}
		return targets, nil
	}
	return nil, errors.InvalidInput(fmt.Sprintf("unknown export format %q (csv|xlsx|none)", format))
}

func writeReport(path string, result *superior.Result) error {
	var renderer ports.RendererPort = report.HTMLRenderer{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		renderer = report.MarkdownRenderer{}
	}
	body, err := renderer.Render(result)
	if err != nil {
		return errors.Wrap(err, "failed to render report")
	}
	return os.WriteFile(path, body, 0o644)
}

func newSimulateCmd() *cobra.Command {
	cfg := testkit.DefaultMetConfig()
	var outDir string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic trial and matching posterior draws",
		Long: `Generate a synthetic multi-environment trial (trial.csv) and posterior draws
centred on its true effects (draws.csv), ready for the estimate command.

Example: superior simulate --out ./demo --genotypes 30 --environments 10 --regions 3 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cfg, outDir)
		},
	}

	f := cmd.Flags()
	f.StringVar(&outDir, "out", ".", "Output directory")
	f.IntVar(&cfg.Genotypes, "genotypes", cfg.Genotypes, "Number of genotypes")
	f.IntVar(&cfg.Environments, "environments", cfg.Environments, "Number of environments")
	f.IntVar(&cfg.Regions, "regions", cfg.Regions, "Number of regions (0 disables regions)")
	f.IntVar(&cfg.Replicates, "replicates", cfg.Replicates, "Plots per genotype and environment")
	f.IntVar(&cfg.Samples, "samples", cfg.Samples, "Posterior samples")
	f.Float64Var(&cfg.MissingRate, "missing-rate", cfg.MissingRate, "Fraction of genotype-environment cells left unobserved")
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")

	return cmd
}

func runSimulate(cfg testkit.MetGeneratorConfig, outDir string) error {
	out, err := testkit.NewMetDataGenerator(cfg).Generate()
	if err != nil {
		return errors.Wrap(errors.InvalidInput(err.Error()), "invalid simulation settings")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	appConfig, err := config.Load()
	if err != nil {
		return err
	}
	columns := appConfig.Columns
	switch {
	case cfg.Regions == 0:
		columns.Region = ""
	case columns.Region == "":
		columns.Region = "region"
	}
	trialPath := filepath.Join(outDir, "trial.csv")
	if err := writeFile(trialPath, func(f *os.File) error {
		return excel.WriteObservationsCSV(f, out.Observations, columns)
	}); err != nil {
		return err
	}
	drawsPath := filepath.Join(outDir, "draws.csv")
	if err := writeFile(drawsPath, func(f *os.File) error {
		return draws.EncodeCSV(f, out.Posterior)
	}); err != nil {
		return err
	}

	fmt.Printf("wrote %s (%d plots) and %s (%d parameters x %d samples)\n",
		trialPath, len(out.Observations), drawsPath, len(out.Posterior.Columns), out.Posterior.Samples)
	return nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the result tables in DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			runner := migration.NewRunner()
			if err := runner.Run(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Printf("schema %s applied\n", runner.Version())
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run and its cells from DATABASE_URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseRunID(args[0])
			if err != nil {
				return errors.InvalidInput(err.Error())
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
			service := app.NewProbabilityService(nil, nil, postgres.NewResultRepository(db), nil, cfg.Columns, logger)
			if err := service.DeleteRun(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("run %s deleted\n", id)
			return nil
		},
	}
}

func connect(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if !cfg.Database.Enabled() {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	return db, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
