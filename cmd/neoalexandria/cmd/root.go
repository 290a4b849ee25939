// Package cmd provides the CLI commands for neoalexandria.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/authority"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/config"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/coreapi"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/embed"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/eventbus"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/logging"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/search"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/store"
)

// Global flags, following the teacher's package-level-flag-vars-bound-in-
// NewRootCmd convention (cmd/amanmcp/cmd/root.go).
var (
	configPath   string
	storeDSN     string
	embedModel   string
	debugLogging bool
)

// app bundles the wired core the subcommands share, built once in
// PersistentPreRunE and torn down in PersistentPostRunE.
type app struct {
	cfg       *config.Config
	db        *store.DB
	resources *store.ResourceStore
	taxonomy  *store.TaxonomyStore
	authority *authority.Service
	engine    *search.Engine
	core      coreapi.Service
	bus       *eventbus.Bus
	log       *slog.Logger

	loggingCleanup func()
	embedder       embed.Embedder
}

var current *app

// NewRootCmd creates the root command for the neoalexandria CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "neoalexandria",
		Short: "Hybrid search, taxonomy, and event-bus core for a personal library",
		Long: `neoalexandria exercises the search/taxonomy/event-bus core directly
from the command line: three-way hybrid search (lexical + dense + sparse),
search-quality evaluation, taxonomy tree management, and event-bus
inspection, all against the same internal/coreapi.Service a REST layer
would sit in front of.`,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&storeDSN, "db", "", "override the configured SQLite DSN")
	root.PersistentFlags().StringVar(&embedModel, "embed-model", "", "Ollama embedding model (empty disables dense/sparse legs)")
	root.PersistentFlags().BoolVar(&debugLogging, "debug", false, "enable debug logging to ~/.neo-alexandria/logs/")

	root.PersistentPreRunE = setup
	root.PersistentPostRunE = teardown

	root.AddCommand(newSearchCmd())
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newTaxonomyCmd())
	root.AddCommand(newBusCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// setup wires the full core: config, logging, store, retrieval legs,
// authority, the event bus, and the coreapi.Service contract every
// subcommand talks to. Grounded on the teacher's
// startProfilingAndLogging + runLocalSearch wiring sequence
// (cmd/amanmcp/cmd/root.go, cmd/amanmcp/cmd/search.go), collapsed into one
// app since this core has no daemon split to fall back from.
func setup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if storeDSN != "" {
		cfg.Store.DriverDSN = storeDSN
	}

	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugLogging {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	slog.SetDefault(logger)

	db, err := store.Open(cfg.Store.DriverDSN)
	if err != nil {
		cleanup()
		return fmt.Errorf("opening store: %w", err)
	}

	resources := store.NewResourceStore(db)
	taxonomy := store.NewTaxonomyStore(db)
	lexical := store.NewLexicalIndex(db)

	authSvc, err := authority.NewService(db, cfg.Authority)
	if err != nil {
		_ = db.Close()
		cleanup()
		return fmt.Errorf("initializing authority service: %w", err)
	}

	all, err := resources.List()
	if err != nil {
		_ = db.Close()
		cleanup()
		return fmt.Errorf("listing resources: %w", err)
	}

	var denseIDs []string
	var denseVecs [][]float32
	var sparseIDs []string
	var sparseVecs []domain.SparseVector
	for _, r := range all {
		if len(r.Embedding) > 0 {
			denseIDs = append(denseIDs, r.ID)
			denseVecs = append(denseVecs, r.Embedding)
		}
		if len(r.SparseEmbedding) > 0 {
			sparseIDs = append(sparseIDs, r.ID)
			sparseVecs = append(sparseVecs, r.SparseEmbedding)
		}
	}
	dense := search.NewDenseIndex(denseIDs, denseVecs)
	sparse := search.NewSparseIndex(sparseIDs, sparseVecs)

	var embedder embed.Embedder
	var queryEmbedder *embed.QueryEmbedder
	if embedModel != "" {
		embedder, err = embed.NewEmbedder(ctx, embedModel)
		if err != nil {
			logger.Warn("embedding provider unavailable, dense/sparse legs disabled", "error", err)
		} else {
			queryEmbedder = embed.NewQueryEmbedder(embedder)
		}
	}

	engine := search.NewEngine(lexical, dense, sparse, resources, wrapEmbedder(queryEmbedder), logger)

	bus := eventbus.Default()
	core := coreapi.NewService(engine, resources, taxonomy, authSvc)

	current = &app{
		cfg:            cfg,
		db:             db,
		resources:      resources,
		taxonomy:       taxonomy,
		authority:      authSvc,
		engine:         engine,
		core:           core,
		bus:            bus,
		log:            logger,
		loggingCleanup: cleanup,
		embedder:       embedder,
	}
	return nil
}

// wrapEmbedder returns nil cleanly when no embedder was configured, so
// Engine's nil-embedder degradation path (dense/sparse legs skipped) kicks
// in instead of a typed-nil interface.
func wrapEmbedder(q *embed.QueryEmbedder) search.QueryEmbedder {
	if q == nil {
		return nil
	}
	return q
}

// teardown closes the store and flushes logging.
func teardown(*cobra.Command, []string) error {
	if current == nil {
		return nil
	}
	if current.embedder != nil {
		_ = current.embedder.Close()
	}
	if current.db != nil {
		_ = current.db.Close()
	}
	if current.loggingCleanup != nil {
		current.loggingCleanup()
	}
	current = nil
	return nil
}
