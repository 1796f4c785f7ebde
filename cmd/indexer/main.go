package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	internalcommon "github.com/goran-ethernal/SecTokenIndexer/internal/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/config"
	"github.com/goran-ethernal/SecTokenIndexer/internal/contracts"
	"github.com/goran-ethernal/SecTokenIndexer/internal/db"
	"github.com/goran-ethernal/SecTokenIndexer/internal/downloader"
	"github.com/goran-ethernal/SecTokenIndexer/internal/events"
	"github.com/goran-ethernal/SecTokenIndexer/internal/fetcher"
	"github.com/goran-ethernal/SecTokenIndexer/internal/indexer"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/goran-ethernal/SecTokenIndexer/internal/metrics"
	"github.com/goran-ethernal/SecTokenIndexer/internal/migrations"
	"github.com/goran-ethernal/SecTokenIndexer/internal/nodesync"
	"github.com/goran-ethernal/SecTokenIndexer/internal/rpc"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/api"
	pkgconfig "github.com/goran-ethernal/SecTokenIndexer/pkg/config"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║         SecTokenIndexer v%s            ║
║   Security Token Platform Event Indexer   ║
╚═══════════════════════════════════════════╝
`
	metricsStopTimeout = 5 * time.Second
)

var (
	configPath    string
	resetContract string
	resetKind     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "SecTokenIndexer - security token platform event indexer",
	Long: `SecTokenIndexer follows the token, exchange and token list contracts of a
security token platform. It stores their events in SQLite, derives user
notifications and serves the indexed state through a REST API.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runIndexer,
}

var listKindsCmd = &cobra.Command{
	Use:   "list-kinds",
	Short: "List the indexed event kinds per contract type",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := events.NewRegistry(logger.NewNopLogger())
		if err != nil {
			return fmt.Errorf("failed to create event registry: %w", err)
		}

		return printKinds(cmd.OutOrStdout(), registry)
	},
}

// printKinds writes the registered kinds grouped by contract type, with the topic0 each
// kind is filtered on.
func printKinds(w io.Writer, registry *events.Registry) error {
	kinds := registry.Kinds()

	for _, contractType := range []string{
		pkgconfig.ContractTypeToken, pkgconfig.ContractTypeExchange, pkgconfig.ContractTypeTokenList,
	} {
		fmt.Fprintf(w, "%s:\n", contractType)
		for _, kind := range kinds {
			if kind.ContractType() != contractType {
				continue
			}

			topic, ok, err := contracts.EventID(contractType, kind.String())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s ABI has no %s event", contractType, kind)
			}
			fmt.Fprintf(w, "  - %-16s %s\n", kind, topic.Hex())
		}
	}

	return nil
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop the checkpoint of a watcher so its events are replayed",
	Long: `Deletes the checkpoint of a (contract, kind) pair so the next pass syncs it from
its start block again. Lock and Unlock are reset together and their locked
positions are rebuilt from scratch.`,
	Example: `  indexer reset --config config.yaml --contract 0x5FbD...0aa3 --kind Lock`,
	RunE:    runReset,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		r := &jsonschema.Reflector{FieldNameTag: "json", RequiredFromJSONSchemaTags: true}
		schema := r.Reflect(&pkgconfig.Config{})
		schema.Title = "SecTokenIndexer configuration"

		out, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}

		fmt.Println(string(out))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("SecTokenIndexer %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")

	resetCmd.Flags().StringVar(&resetContract, "contract", "", "contract address of the watcher")
	resetCmd.Flags().StringVar(&resetKind, "kind", "", "event kind of the watcher")
	_ = resetCmd.MarkFlagRequired("contract")
	_ = resetCmd.MarkFlagRequired("kind")

	configCmd.AddCommand(configSchemaCmd)
	rootCmd.AddCommand(listKindsCmd, resetCmd, configCmd, versionCmd)
}

// loggingConfig avoids handing a typed nil to the logger.
func loggingConfig(cfg *pkgconfig.Config) logger.LoggingConfig {
	if cfg.Logging == nil {
		return nil
	}

	return cfg.Logging
}

// app holds what every command needs.
type app struct {
	cfg         *pkgconfig.Config
	log         *logger.Logger
	database    *sql.DB
	rpc         *rpc.Client
	maintenance db.Maintenance
	downloader  *downloader.Downloader
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := loggingConfig(cfg)
	log := logger.NewComponentLoggerFromConfig(internalcommon.ComponentDownloader, logCfg)

	database, err := db.NewSQLiteDBFromConfig(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	log.Info("Running database migrations...")
	if err := migrations.RunMigrations(log, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Infof("Connecting to chain node %s...", cfg.Chain.RPCURL)
	ethClient, err := rpc.NewClient(ctx, cfg.Chain,
		logger.NewComponentLoggerFromConfig(internalcommon.ComponentRPC, logCfg))
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}

	maintenance := db.NewMaintenanceCoordinator(
		cfg.DB.Path,
		database,
		cfg.Maintenance,
		logger.NewComponentLoggerFromConfig(internalcommon.ComponentMaintenance, logCfg),
	)

	registry, err := events.NewRegistry(logger.NewComponentLoggerFromConfig(internalcommon.ComponentEventDecoder, logCfg))
	if err != nil {
		ethClient.Close()
		database.Close()
		return nil, fmt.Errorf("failed to create event registry: %w", err)
	}

	dl, err := downloader.New(
		cfg.Sync,
		database,
		ethClient,
		fetcher.NewLogFetcher(logger.NewComponentLoggerFromConfig(internalcommon.ComponentLogFetcher, logCfg), ethClient),
		registry,
		maintenance,
		logger.NewComponentLoggerFromConfig(internalcommon.ComponentDownloader, logCfg),
	)
	if err != nil {
		ethClient.Close()
		database.Close()
		return nil, fmt.Errorf("failed to create downloader: %w", err)
	}

	return &app{
		cfg:         cfg,
		log:         log,
		database:    database,
		rpc:         ethClient,
		maintenance: maintenance,
		downloader:  dl,
	}, nil
}

func (a *app) close() {
	a.rpc.Close()
	if err := a.database.Close(); err != nil {
		a.log.Warnf("Failed to close database: %v", err)
	}
	_ = a.log.Close()
}

func runIndexer(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg
	logCfg := loggingConfig(cfg)

	source, err := indexer.NewSource(cfg, a.database)
	if err != nil {
		return fmt.Errorf("failed to build watchers: %w", err)
	}

	nodes := nodesync.NewStore(a.database)
	coordinator := indexer.NewCoordinator(
		cfg.Sync,
		cfg.Chain,
		a.rpc,
		a.downloader,
		source,
		nodes,
		logger.NewComponentLoggerFromConfig(internalcommon.ComponentCoordinator, logCfg),
	)

	var metricsServer *metrics.Server
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics, a.log)
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return coordinator.Run(gctx) })
	g.Go(func() error { return a.maintenance.Run(gctx) })

	if cfg.NodeSync != nil && cfg.NodeSync.Enabled {
		monitor := nodesync.NewMonitor(nodes, a.rpc, cfg.Chain.RPCURL, *cfg.NodeSync,
			logger.NewComponentLoggerFromConfig(internalcommon.ComponentNodeSync, logCfg))
		g.Go(func() error { return monitor.Run(gctx) })
	}

	if cfg.API != nil && cfg.API.Enabled {
		apiServer := api.NewServer(cfg.API, a.database, a.rpc,
			logger.NewComponentLoggerFromConfig(internalcommon.ComponentAPI, logCfg))
		g.Go(func() error { return apiServer.Start(gctx) })
	}

	if metricsServer != nil {
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), metricsStopTimeout)
			defer cancel()
			return metricsServer.Stop(stopCtx)
		})
	}

	a.log.Info("Starting SecTokenIndexer...")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Errorf("SecTokenIndexer stopped: %v", err)
		return err
	}

	a.log.Info("SecTokenIndexer stopped successfully")
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(resetContract) {
		return fmt.Errorf("--contract %q is not a hex address", resetContract)
	}
	kind, err := events.ParseKind(resetKind)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	contract := common.HexToAddress(resetContract)
	if err := a.downloader.Reset(ctx, contract, kind.String()); err != nil {
		return fmt.Errorf("failed to reset %s/%s: %w", contract.Hex(), kind, err)
	}

	coupled := events.CoupledKinds(kind)
	a.log.Infof("Reset %s %v, the next pass replays from the start block", contract.Hex(), coupled)
	return nil
}
