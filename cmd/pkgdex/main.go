package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	archiveadapter "github.com/custodia-labs/pkgdex/internal/adapters/driven/archive"
	"github.com/custodia-labs/pkgdex/internal/adapters/driven/embedder"
	"github.com/custodia-labs/pkgdex/internal/adapters/driven/postgres"
	"github.com/custodia-labs/pkgdex/internal/adapters/driven/pypi"
	redisadapter "github.com/custodia-labs/pkgdex/internal/adapters/driven/redis"
	"github.com/custodia-labs/pkgdex/internal/adapters/driven/vespa"
	httpadapter "github.com/custodia-labs/pkgdex/internal/adapters/driving/http"
	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
	"github.com/custodia-labs/pkgdex/internal/core/services"
	"github.com/custodia-labs/pkgdex/internal/normalizer"
	"github.com/custodia-labs/pkgdex/internal/runtime"
	"github.com/custodia-labs/pkgdex/internal/segmenter"
)

var version = "dev"

// redisPinger adapts a redis.Client to the http.Pinger interface.
type redisPinger struct{ client *redis.Client }

func (r *redisPinger) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func main() {
	app := &cli.App{
		Name:    "pkgdex",
		Usage:   "Content-addressed Python source indexer",
		Version: version,
		Commands: []*cli.Command{
			createdbCommand(),
			importProjectCommand(),
			importURLCommand(),
			importLocalArchiveCommand(),
			importLocalFileCommand(),
			lookupCommand(),
			webCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// buildAdapters wires the Postgres store, the Vespa vector index and the
// embedder from environment configuration. createdb does not use it; it
// connects to Postgres directly.
func buildAdapters(ctx context.Context, cfg runtime.Config, logger *slog.Logger) (*postgres.DB, *postgres.Store, driven.VectorIndex, driven.Embedder, error) {
	db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := postgres.NewStore(db)

	vespaCfg := vespa.DefaultConfig(cfg.VespaURL)
	vespaCfg.Namespace = cfg.VespaNamespace
	index := vespa.NewVectorIndex(vespaCfg)

	var emb driven.Embedder
	if cfg.UseLocalEmbedder || cfg.EmbedderAPIKey == "" {
		emb = embedder.NewLocalEmbedder(cfg.EmbeddingDims)
		logger.Info("using local hash-projection embedder")
	} else {
		httpEmb, err := embedder.NewHTTPEmbedder(cfg.EmbedderAPIKey, cfg.EmbedderModel, cfg.EmbedderBaseURL)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("create embedder: %w", err)
		}
		emb = httpEmb
	}

	return db, store, index, emb, nil
}

func buildIngestionService(store *postgres.Store, index driven.VectorIndex, emb driven.Embedder, logger *slog.Logger) *services.IngestionOrchestrator {
	return services.NewIngestionOrchestrator(services.IngestionOrchestratorConfig{
		Store:      store,
		Index:      index,
		Fetcher:    archiveadapter.NewFetcher(),
		Unpacker:   archiveadapter.NewUnpacker(),
		Packages:   pypi.NewClient(""),
		Normalizer: normalizer.New(),
		Segmenter:  segmenter.New(),
		Embedder:   emb,
		Logger:     logger,
	})
}

func buildLookupService(store *postgres.Store, index driven.VectorIndex, emb driven.Embedder, logger *slog.Logger) *services.LookupEngine {
	return services.NewLookupEngine(services.LookupEngineConfig{
		Store:      store,
		Index:      index,
		Normalizer: normalizer.New(),
		Segmenter:  segmenter.New(),
		Embedder:   emb,
		Logger:     logger,
	})
}

func createdbCommand() *cli.Command {
	return &cli.Command{
		Name:  "createdb",
		Usage: "Create or migrate the schema",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "Truncate every table before (re)creating the schema"},
		},
		Action: func(c *cli.Context) error {
			cfg := runtime.LoadConfig()
			logger := slog.Default()
			ctx := context.Background()

			db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close()

			if c.Bool("clear") {
				if err := db.ClearAll(ctx); err != nil {
					return fmt.Errorf("clear tables: %w", err)
				}
				logger.Info("cleared all tables")
			}

			if err := db.InitSchema(ctx); err != nil {
				return fmt.Errorf("init schema: %w", err)
			}
			logger.Info("schema ready")
			return nil
		},
	}
}

func importProjectCommand() *cli.Command {
	return &cli.Command{
		Name:      "import-project",
		Usage:     "Ingest every known distribution of one or more PyPI projects",
		ArgsUsage: "<project...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "shard", Usage: "Shard selector, e.g. \"0-2,5\""},
			&cli.IntFlag{Name: "of-shards", Usage: "Total number of shards"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("at least one project name is required", 1)
			}
			shard, err := services.ParseShardSpec(c.String("shard"), c.Int("of-shards"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			cfg := runtime.LoadConfig()
			logger := slog.Default()
			ctx := context.Background()

			db, store, index, emb, err := buildAdapters(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			orchestrator := buildIngestionService(store, index, emb, logger)
			return orchestrator.IngestProject(ctx, c.Args().Slice(), shard)
		},
	}
}

func importURLCommand() *cli.Command {
	return &cli.Command{
		Name:      "import-url",
		Usage:     "Ingest one archive from a URL",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one url is required", 1)
			}
			cfg := runtime.LoadConfig()
			logger := slog.Default()
			ctx := context.Background()

			db, store, index, emb, err := buildAdapters(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			orchestrator := buildIngestionService(store, index, emb, logger)
			archive, err := orchestrator.IngestURL(ctx, c.Args().First(), "")
			if err != nil {
				return err
			}
			return printJSON(archive)
		},
	}
}

func importLocalArchiveCommand() *cli.Command {
	return &cli.Command{
		Name:      "import-local-archive",
		Usage:     "Ingest one archive already present on disk",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one path is required", 1)
			}
			cfg := runtime.LoadConfig()
			logger := slog.Default()
			ctx := context.Background()

			db, store, index, emb, err := buildAdapters(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			orchestrator := buildIngestionService(store, index, emb, logger)
			archive, err := orchestrator.IngestLocalArchive(ctx, c.Args().First())
			if err != nil {
				return err
			}
			return printJSON(archive)
		},
	}
}

func importLocalFileCommand() *cli.Command {
	return &cli.Command{
		Name:      "import-local-file",
		Usage:     "Ingest one source file outside of any archive",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("exactly one path is required", 1)
			}
			cfg := runtime.LoadConfig()
			logger := slog.Default()
			ctx := context.Background()

			db, store, index, emb, err := buildAdapters(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			orchestrator := buildIngestionService(store, index, emb, logger)
			hash, err := orchestrator.IngestLocalFile(ctx, c.Args().First())
			if err != nil {
				return err
			}
			return printJSON(map[string]string{"normalized_hash": hash})
		},
	}
}

func lookupCommand() *cli.Command {
	return &cli.Command{
		Name:  "lookup",
		Usage: "Query the three-tier lookup index",
		Subcommands: []*cli.Command{
			{
				Name:      "local-file",
				Usage:     "Look up a file on disk",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("exactly one path is required", 1)
					}
					content, err := os.ReadFile(c.Args().First())
					if err != nil {
						return err
					}

					cfg := runtime.LoadConfig()
					logger := slog.Default()
					ctx := context.Background()

					db, store, index, emb, err := buildAdapters(ctx, cfg, logger)
					if err != nil {
						return err
					}
					defer db.Close()

					engine := buildLookupService(store, index, emb, logger)
					result, err := engine.LookupFile(ctx, content)
					if err != nil {
						return err
					}
					return printJSON(result)
				},
			},
			{
				Name:      "normalized-hash",
				Usage:     "Decompose a normalized file by previously-seen normalized files",
				ArgsUsage: "<hex hash>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("exactly one hash is required", 1)
					}
					cfg := runtime.LoadConfig()
					logger := slog.Default()
					ctx := context.Background()

					db, store, index, emb, err := buildAdapters(ctx, cfg, logger)
					if err != nil {
						return err
					}
					defer db.Close()

					engine := buildLookupService(store, index, emb, logger)
					coverage, err := engine.Decompose(ctx, c.Args().First())
					if err != nil {
						return err
					}
					return printJSON(coverage)
				},
			},
			{
				Name:      "snippet-hash",
				Usage:     "List the normalized files containing a snippet",
				ArgsUsage: "<hex hash>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("exactly one hash is required", 1)
					}
					cfg := runtime.LoadConfig()
					logger := slog.Default()
					ctx := context.Background()

					db, store, index, emb, err := buildAdapters(ctx, cfg, logger)
					if err != nil {
						return err
					}
					defer db.Close()

					engine := buildLookupService(store, index, emb, logger)
					owners, err := engine.NormalizedFilesContaining(ctx, c.Args().First())
					if err != nil {
						return err
					}
					return printJSON(owners)
				},
			},
		},
	}
}

func webCommand() *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Run the HTTP façade",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "Listen port (overrides PORT)"},
		},
		Action: func(c *cli.Context) error {
			cfg := runtime.LoadConfig()
			if c.IsSet("port") {
				cfg.HTTPPort = c.Int("port")
			}
			logger := slog.Default()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				logger.Info("shutdown signal received")
				cancel()
			}()

			db, store, index, emb, err := buildAdapters(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.InitSchema(ctx); err != nil {
				return fmt.Errorf("init schema: %w", err)
			}

			var redisPing httpadapter.Pinger
			if cfg.RedisURL != "" {
				opts, err := redis.ParseURL(cfg.RedisURL)
				if err != nil {
					return fmt.Errorf("parse REDIS_URL: %w", err)
				}
				client := redis.NewClient(opts)
				defer client.Close()
				lock := redisadapter.NewLock(client)
				if err := lock.Ping(ctx); err != nil {
					logger.Warn("redis unreachable, continuing without distributed lock", "error", err)
				} else {
					redisPing = &redisPinger{client: client}
				}
			}

			ingestion := buildIngestionService(store, index, emb, logger)
			lookup := buildLookupService(store, index, emb, logger)

			server := httpadapter.NewServer(httpadapter.Config{Host: cfg.HTTPHost, Port: cfg.HTTPPort}, ingestion, lookup, redisPing, logger)
			return server.Start(ctx)
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
