package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/riskmap-io/riskmap/internal/config"
	"github.com/riskmap-io/riskmap/internal/criticality"
	"github.com/riskmap-io/riskmap/internal/graph"
	"github.com/riskmap-io/riskmap/internal/registry"
	"github.com/riskmap-io/riskmap/internal/scenario"
	"github.com/riskmap-io/riskmap/internal/server"
	"github.com/riskmap-io/riskmap/pkg/models"
)

var (
	version   = "dev"
	cfgFile   string
	dbPath    string
	logFormat string
	logLevel  string
	logger    *slog.Logger
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "riskmap",
		Short: "riskmap — asset criticality and dependency impact analysis",
		Long:  "Criticality scoring, dependency graph analysis, and failure impact scenarios for infrastructure assets.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLogLevel(logLevel)
			if err != nil {
				return err
			}
			opts := &slog.HandlerOptions{Level: level}
			switch logFormat {
			case "json":
				logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
			case "text":
				logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
			default:
				return fmt.Errorf("invalid --log-format %q (use: text, json)", logFormat)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./riskmap.yaml)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log output format (text, json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		scoreCmd(),
		assetsCmd(),
		relCmd(),
		graphCmd(),
		scenarioCmd(),
		dbCmd(),
		serveCmd(),
		versionCmd(),
		completionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore() (*graph.SQLiteStore, *registry.SQLiteRegistry, *config.Config) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}

	path := cfg.Storage.Path
	if dbPath != "" {
		path = dbPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		logger.Error("creating db directory", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)")
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	reg := registry.NewSQLiteRegistry(db)
	if err := reg.Init(ctx); err != nil {
		logger.Error("initializing registry", "error", err)
		os.Exit(1)
	}

	store := graph.NewSQLiteStoreDB(db, reg)
	if err := store.Init(ctx); err != nil {
		logger.Error("initializing database", "error", err)
		os.Exit(1)
	}

	return store, reg, cfg
}

// --- score ---

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <metadata-file>",
		Short: "Score asset criticality from a metadata JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if args[0] == "-" {
				raw, err = io.ReadAll(os.Stdin)
			} else {
				raw, err = os.ReadFile(args[0]) // #nosec G304 -- path from user CLI arg
			}
			if err != nil {
				return fmt.Errorf("reading metadata: %w", err)
			}

			result := criticality.Score(models.ParseMetadata(raw))
			printScore(result)
			return nil
		},
	}
	return cmd
}

func printScore(result models.ScoreResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FACTOR\tSCORE")
	for _, name := range criticality.FactorNames() {
		_, _ = fmt.Fprintf(w, "%s\t%.1f\n", name, result.FactorScores[name])
	}
	_ = w.Flush()

	fmt.Printf("\nTotal: %.2f (%s)\n", result.TotalScore, result.CriticalityLevel)
	if len(result.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, rec := range result.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
}

// --- assets ---

func assetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Asset registry management",
	}
	cmd.AddCommand(assetsLoadCmd(), assetsListCmd(), assetsScoreCmd())
	return cmd
}

func assetsLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <seed-file>",
		Short: "Load assets from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, reg, _ := openStore()
			defer store.Close() //nolint:errcheck // best-effort cleanup

			ids, err := registry.LoadSeed(cmd.Context(), reg, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Loaded %d assets\n", len(ids))
			return nil
		},
	}
}

func assetsListCmd() *cobra.Command {
	var environment, assetType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered assets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, reg, _ := openStore()
			defer store.Close() //nolint:errcheck // best-effort cleanup

			assets, err := reg.List(cmd.Context(), registry.Filter{
				Environment: environment, AssetType: assetType,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tENVIRONMENT\tTYPE\tBUSINESS UNIT")
			for _, a := range assets {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Environment, a.AssetType, a.BusinessUnit)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&environment, "environment", "", "filter by environment")
	cmd.Flags().StringVar(&assetType, "type", "", "filter by asset type")
	return cmd
}

func assetsScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score <asset-id>",
		Short: "Score a registered asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, reg, _ := openStore()
			defer store.Close() //nolint:errcheck // best-effort cleanup

			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			meta, err := reg.GetMetadata(cmd.Context(), id)
			if err != nil {
				return err
			}
			printScore(criticality.Score(meta))
			return nil
		},
	}
}

// --- rel ---

func relCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rel",
		Short: "Relationship management",
	}
	cmd.AddCommand(relAddCmd(), relListCmd(), relRemoveCmd(), relImportCmd())
	return cmd
}

func relAddCmd() *cobra.Command {
	var (
		source, target  int64
		relType         string
		strength        string
		port            int
		protocol        string
		impactPct       float64
		recoveryMinutes int
		discoveredVia   string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a relationship between two assets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, _ := openStore()
			defer store.Close() //nolint:errcheck // best-effort cleanup

			rel, err := store.Add(cmd.Context(), models.Relationship{
				SourceAssetID:       source,
				TargetAssetID:       target,
				Type:                models.RelationshipType(relType),
				Strength:            models.Strength(strength),
				Port:                port,
				Protocol:            protocol,
				ImpactPercentage:    impactPct,
				RecoveryTimeMinutes: recoveryMinutes,
				DiscoveredVia:       discoveredVia,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created relationship %s (%d -%s-> %d)\n", rel.ID, rel.SourceAssetID, rel.Type, rel.TargetAssetID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&source, "source", 0, "source asset id")
	cmd.Flags().Int64Var(&target, "target", 0, "target asset id")
	cmd.Flags().StringVar(&relType, "type", "depends_on", "relationship type")
	cmd.Flags().StringVar(&strength, "strength", "moderate", "strength (weak, moderate, strong, critical)")
	cmd.Flags().IntVar(&port, "port", 0, "network port")
	cmd.Flags().StringVar(&protocol, "protocol", "", "network protocol")
	cmd.Flags().Float64Var(&impactPct, "impact", 0, "impact percentage [0,100]")
	cmd.Flags().IntVar(&recoveryMinutes, "recovery", 0, "recovery time in minutes")
	cmd.Flags().StringVar(&discoveredVia, "via", "manual", "discovery source")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func relListCmd() *cobra.Command {
	var relType string
	var source, target int64
	var includeInactive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List relationships",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, _ := openStore()
			defer store.Close() //nolint:errcheck // best-effort cleanup

			rels, err := store.List(cmd.Context(), graph.Filter{
				Type:            models.RelationshipType(relType),
				SourceAssetID:   source,
				TargetAssetID:   target,
				IncludeInactive: includeInactive,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tSOURCE\tTYPE\tTARGET\tSTRENGTH\tACTIVE")
			for _, r := range rels {
				_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%t\n",
					r.ID, r.SourceAssetID, r.Type, r.TargetAssetID, r.Strength, r.IsActive)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&relType, "type", "", "filter by relationship type")
	cmd.Flags().Int64Var(&source, "source", 0, "filter by source asset id")
	cmd.Flags().Int64Var(&target, "target", 0, "filter by target asset id")
	cmd.Flags().BoolVar(&includeInactive, "all", false, "include soft-deleted relationships")
	return cmd
}

func relRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <relationship-id>",
		Short: "Soft-delete a relationship",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, _ := openStore()
			defer store.Close() //nolint:errcheck // best-effort cleanup

			if err := store.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed relationship %s\n", args[0])
			return nil
		},
	}
}

func relImportCmd() *cobra.Command {
	var autoReverse, skipValidation bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Bulk import relationships from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, _ := openStore()
			defer store.Close() //nolint:errcheck // best-effort cleanup

			var opts *graph.ImportOptions
			if cmd.Flags().Changed("auto-reverse") || cmd.Flags().Changed("skip-validation") {
				opts = &graph.ImportOptions{
					AutoCreateReverse: autoReverse,
					ValidateAssets:    !skipValidation,
				}
			}

			result, err := store.ImportFromFile(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			fmt.Printf("Imported %d relationships, %d errors\n", result.SuccessCount, result.ErrorCount)
			for _, e := range result.Errors {
				fmt.Printf("  record %d: %s\n", e.Index, e.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoReverse, "auto-reverse", false, "also create semantically inverse edges")
	cmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "skip asset existence checks")
	return cmd
}

// --- graph ---

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Dependency graph analysis",
	}
	cmd.AddCommand(graphSnapshotCmd(), graphExportCmd(), graphSyncCmd())
	return cmd
}

func graphSnapshotCmd() *cobra.Command {
	var maxDepth int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "snapshot <asset-id>",
		Short: "Build a dependency graph snapshot for an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, reg, cfg := openStore()
			defer store.Close() //nolint:errcheck // best-effort cleanup

			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}

			engine := graph.NewEngine(store, reg, logger, cfg.Graph.DefaultDepth)
			snap, err := engine.GetSnapshot(cmd.Context(), id, maxDepth)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			fmt.Printf("Asset %d (depth %d, edge version %d)\n\n", snap.AssetID, snap.MaxDepth, snap.EdgeVersion)
			fmt.Printf("Dependencies: %d\n", snap.TotalDependencies)
			printNodes(snap.Dependencies)
			fmt.Printf("\nDependents: %d\n", snap.TotalDependents)
			printNodes(snap.Dependents)
			fmt.Printf("\nCritical path length: %d\n", snap.CriticalPathLength)
			fmt.Printf("SPOF risk:    %.3f\n", snap.SPOFRisk)
			fmt.Printf("Cascade risk: %.3f\n", snap.CascadeRisk)
			fmt.Printf("Overall risk: %.3f\n", snap.OverallRisk)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "traversal depth 1-5 (0 = default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func printNodes(nodes []models.DependencyNode) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, n := range nodes {
		_, _ = fmt.Fprintf(w, "  L%d\tasset %d\tvia %s\t(%s)\n", n.Level, n.AssetID, n.Via, n.Strength)
	}
	_ = w.Flush()
}

func graphExportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the asset graph in various formats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, reg, _ := openStore()
			defer store.Close() //nolint:errcheck // best-effort cleanup
			ctx := cmd.Context()

			var output string
			var err error

			switch format {
			case "json":
				output, err = graph.ExportJSON(ctx, store, reg)
			case "dot":
				output, err = graph.ExportDOT(ctx, store, reg)
			case "mermaid":
				output, err = graph.ExportMermaid(ctx, store, reg)
			default:
				return fmt.Errorf("unsupported format %q (use: json, dot, mermaid)", format)
			}

			if err != nil {
				return err
			}

			fmt.Print(output)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "export format: json, dot, mermaid")
	return cmd
}

func graphSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the graph from SQLite to Memgraph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, reg, cfg := openStore()
			defer store.Close() //nolint:errcheck // best-effort cleanup

			if !cfg.Storage.Memgraph.Enabled {
				return fmt.Errorf("memgraph is not enabled in configuration (set storage.memgraph.enabled: true)")
			}

			auth := neo4j.NoAuth()
			if cfg.Storage.Memgraph.Username != "" {
				auth = neo4j.BasicAuth(cfg.Storage.Memgraph.Username, cfg.Storage.Memgraph.Password, "")
			}

			driver, err := neo4j.NewDriverWithContext(cfg.Storage.Memgraph.URI, auth)
			if err != nil {
				return fmt.Errorf("connecting to memgraph: %w", err)
			}
			defer driver.Close(context.Background()) //nolint:errcheck // best-effort cleanup

			return graph.SyncToMemgraph(cmd.Context(), store, reg, driver, logger)
		},
	}
}

// --- scenario ---

func scenarioCmd() *cobra.Command {
	var name string
	var probability float64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scenario <asset-id>",
		Short: "Generate a failure impact scenario for an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, reg, cfg := openStore()
			defer store.Close() //nolint:errcheck // best-effort cleanup

			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}

			engine := graph.NewEngine(store, reg, logger, cfg.Graph.DefaultDepth)
			gen := scenario.NewGenerator(engine, store, reg, logger, cfg.Scenario.DefaultProbability)
			scn, err := gen.GenerateWithProbability(cmd.Context(), id, name, probability)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(scn)
			}

			fmt.Printf("Scenario %q for asset %d\n\n", scn.ScenarioName, scn.AssetID)
			fmt.Printf("Affected assets: %d\n", len(scn.AffectedAssets))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for assetID, severity := range scn.AffectedAssets {
				_, _ = fmt.Fprintf(w, "  asset %d\t%s\n", assetID, severity)
			}
			_ = w.Flush()
			if len(scn.AffectedServices) > 0 {
				fmt.Printf("Affected services: %s\n", strings.Join(scn.AffectedServices, ", "))
			}
			fmt.Printf("\nEstimated downtime: %d minutes\n", scn.EstimatedDowntimeMin)
			fmt.Printf("Estimated revenue impact: %.2f\n", scn.EstimatedRevenueImpact)
			fmt.Printf("Probability: %.2f\n", scn.ScenarioProbability)
			fmt.Println("\nRecovery steps:")
			for i, step := range scn.RecoverySteps {
				fmt.Printf("  %d. %s\n", i+1, step)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "complete_failure", "scenario name (complete_failure, partial_degradation, performance_degradation)")
	cmd.Flags().Float64Var(&probability, "probability", 0, "scenario probability (0 = default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

// --- db ---

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management",
	}
	cmd.AddCommand(dbStatsCmd(), dbBackupCmd())
	return cmd
}

func dbStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, reg, cfg := openStore()
			defer store.Close() //nolint:errcheck // best-effort cleanup
			ctx := cmd.Context()

			path := cfg.Storage.Path
			if dbPath != "" {
				path = dbPath
			}

			info, err := os.Stat(path)
			var sizeStr string
			if err == nil {
				sizeStr = formatBytes(info.Size())
			} else {
				sizeStr = "unknown"
			}

			assetCount, _ := reg.Count(ctx)
			relCount, _ := store.RelationshipCount(ctx)
			byType, _ := store.CountByType(ctx)
			version, _ := store.EdgeVersion(ctx)

			_, _ = fmt.Fprintf(os.Stdout, "Database: %s (%s)\n\n", path, sizeStr)
			_, _ = fmt.Fprintf(os.Stdout, "Assets: %d\n", assetCount)
			_, _ = fmt.Fprintf(os.Stdout, "\nRelationships: %d (edge version %d)\n", relCount, version)
			for t, c := range byType {
				_, _ = fmt.Fprintf(os.Stdout, "  %-22s %d\n", t, c)
			}

			return nil
		},
	}
}

func dbBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <output-path>",
		Short: "Copy database file to a backup location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			srcPath := cfg.Storage.Path
			if dbPath != "" {
				srcPath = dbPath
			}
			dstPath := args[0]

			if _, err := os.Stat(dstPath); err == nil {
				_, _ = fmt.Fprintf(os.Stdout, "File %s already exists. Overwrite? [y/N]: ", dstPath)
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				answer = strings.TrimSpace(strings.ToLower(answer))
				if answer != "y" && answer != "yes" {
					_, _ = fmt.Fprintln(os.Stdout, "Aborted.")
					return nil
				}
			}

			if err := os.MkdirAll(filepath.Dir(dstPath), 0o750); err != nil {
				return fmt.Errorf("creating backup directory: %w", err)
			}

			src, err := os.Open(srcPath) // #nosec G304 -- path from config/flag
			if err != nil {
				return fmt.Errorf("opening source database: %w", err)
			}
			defer src.Close() //nolint:errcheck // best-effort cleanup

			dst, err := os.Create(dstPath) // #nosec G304 -- path from user CLI arg
			if err != nil {
				return fmt.Errorf("creating backup file: %w", err)
			}
			defer dst.Close() //nolint:errcheck // best-effort cleanup

			n, err := io.Copy(dst, src)
			if err != nil {
				return fmt.Errorf("copying database: %w", err)
			}

			_, _ = fmt.Fprintf(os.Stdout, "Backed up %s to %s (%s)\n", srcPath, dstPath, formatBytes(n))
			return nil
		},
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// --- serve ---

func serveCmd() *cobra.Command {
	var listen string
	var readOnly bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, reg, cfg := openStore()

			if listen == "" {
				listen = cfg.Server.Listen
			}

			engine := graph.NewEngine(store, reg, logger, cfg.Graph.DefaultDepth)
			gen := scenario.NewGenerator(engine, store, reg, logger, cfg.Scenario.DefaultProbability)
			srv := server.New(store, reg, engine, gen, logger, listen,
				readOnly || cfg.Server.ReadOnly, cfg.Server.APIToken, "")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
				_ = store.Close()
			}()

			return srv.Start()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config or :8080)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "disable mutating API endpoints")
	return cmd
}

// --- version ---

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("riskmap %s\n", version)
		},
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid --log-level %q (use: debug, info, warn, error)", s)
	}
}

func parseAssetID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid asset id %q", s)
	}
	return id, nil
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for riskmap.

To load completions:

Bash:
  $ source <(riskmap completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ riskmap completion bash > /etc/bash_completion.d/riskmap
  # macOS:
  $ riskmap completion bash > $(brew --prefix)/etc/bash_completion.d/riskmap

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  # To load completions for each session, execute once:
  $ riskmap completion zsh > "${fpath[1]}/_riskmap"
  # You will need to start a new shell for this setup to take effect.

Fish:
  $ riskmap completion fish | source
  # To load completions for each session, execute once:
  $ riskmap completion fish > ~/.config/fish/completions/riskmap.fish

PowerShell:
  PS> riskmap completion powershell | Out-String | Invoke-Expression
  # To load completions for every new session, add the output to your profile:
  PS> riskmap completion powershell >> $PROFILE
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
