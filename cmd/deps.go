package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/roommate-matcher/internal/ai"
	"github.com/spigell/roommate-matcher/internal/ai/gemini"
	"github.com/spigell/roommate-matcher/internal/combiner"
	"github.com/spigell/roommate-matcher/internal/logger"
	"github.com/spigell/roommate-matcher/internal/ranking"
	"github.com/spigell/roommate-matcher/internal/repository"
	"github.com/spigell/roommate-matcher/internal/scoring"
	"github.com/spigell/roommate-matcher/internal/secrets"
	"github.com/spigell/roommate-matcher/internal/server"
)

// deps holds the wired components shared by the commands.
type deps struct {
	ranker  *ranking.Ranker
	checks  []server.Check
	closers []func() error
}

func (d *deps) Close() {
	for idx := len(d.closers) - 1; idx >= 0; idx-- {
		_ = d.closers[idx]()
	}
}

func buildDeps(ctx context.Context, config *Config, log *zap.Logger) (*deps, error) {
	d := &deps{}

	repo, blocks, err := d.buildStorage(ctx, config.Storage, log)
	if err != nil {
		d.Close()
		return nil, err
	}

	scorer := scoring.NewScorer(log)

	var enhancer ranking.EnhancedScorer
	if config.AI.Enabled {
		analyzer, err := newNotesAnalyzer(ctx, config.AI, log)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("building notes analyzer: %w", err)
		}
		enhancer = combiner.New(scorer, analyzer, log)
	} else if config.Matching.Enhanced {
		log.Warn("enhanced scoring requested but ai is disabled, using deterministic scores",
			zap.String("hint", "set ai.enabled to true"),
		)
	}

	d.ranker = ranking.New(repo, blocks, scorer, enhancer, ranking.Config{
		EnhancedScoring: config.Matching.Enhanced,
		MinThreshold:    &config.Matching.MinScore,
		IncludeTestPool: config.Matching.IncludeTestPool,
		Workers:         config.Matching.Workers,
		NotesTimeout:    config.Matching.NotesTimeout,
	}, log)

	return d, nil
}

func (d *deps) buildStorage(ctx context.Context, cfg *StorageConfig, log *zap.Logger) (repository.ProfileRepository, repository.BlockChecker, error) {
	var (
		repo   repository.ProfileRepository
		blocks repository.BlockChecker
	)

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		store := repository.NewMemory()
		if seed := strings.TrimSpace(cfg.SeedFile); seed != "" {
			loaded, err := repository.LoadFile(seed)
			if err != nil {
				return nil, nil, err
			}
			store = loaded
		} else {
			log.Warn("memory storage without seed file, the profile pool is empty",
				zap.String("hint", "set storage.seed-file"),
			)
		}
		repo, blocks = store, store
	case "postgres":
		db, err := openPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		d.closers = append(d.closers, db.Close)
		d.checks = append(d.checks, server.Check{Name: "postgres", Ping: db.PingContext})

		store := repository.NewPostgres(db)
		repo, blocks = store, store
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}

	if cfg.Redis != nil && strings.TrimSpace(cfg.Redis.Address) != "" {
		redisBlocks := repository.NewRedisBlocks(repository.NewRedisClient(repository.RedisOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
		if err := redisBlocks.Ping(ctx); err != nil {
			_ = redisBlocks.Close()
			return nil, nil, err
		}
		d.closers = append(d.closers, redisBlocks.Close)
		d.checks = append(d.checks, server.Check{Name: "redis", Ping: redisBlocks.Ping})
		blocks = redisBlocks
		log.Info("using redis block lists", zap.String("address", cfg.Redis.Address))
	}

	log.Info("storage ready", zap.String("driver", driver))
	return repo, blocks, nil
}

func openPostgres(ctx context.Context, cfg *PostgresConfig) (*sqlx.DB, error) {
	if cfg == nil {
		cfg = &PostgresConfig{}
	}

	dsn, err := secrets.Load(secrets.Source{
		Name:  "postgres dsn",
		File:  cfg.DSNFile,
		Env:   "DATABASE_URL",
		Value: cfg.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set storage.postgres.dsn-file, DATABASE_URL or ROOMMATE_STORAGE_POSTGRES_DSN)", err)
	}

	return repository.Connect(ctx, dsn)
}

func newNotesAnalyzer(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.NotesAnalyzer, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
		Value: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := logger.WithAI(log, "gemini", cfg.Gemini.Model).With(
		zap.Int("ai_max_retries", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	limited := ai.NewLimiter(generator, cfg.MaxConcurrency)

	return gemini.NewAnalyzer(limited, logger.WithAI(log, "gemini", limited.Model()), cfg.Gemini.MaxLogLength), nil
}

func closeQuietly(d *deps, log *zap.Logger) {
	if d == nil {
		return
	}
	d.Close()
	_ = log.Sync()
}

// setup builds the logger and reads the configuration shared by every command.
func setup() (*Config, *zap.Logger, error) {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}

	config, err := getConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("getting a config: %w", err)
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return config, log, nil
}

func redacted(config *Config) Config {
	out := *config
	if config.AI != nil && config.AI.Gemini != nil && config.AI.Gemini.APIKey != "" {
		aiCfg := *config.AI
		gem := *config.AI.Gemini
		gem.APIKey = "***"
		aiCfg.Gemini = &gem
		out.AI = &aiCfg
	}
	if config.Storage != nil && config.Storage.Postgres != nil && config.Storage.Postgres.DSN != "" {
		storage := *config.Storage
		pg := *config.Storage.Postgres
		pg.DSN = "***"
		storage.Postgres = &pg
		out.Storage = &storage
	}
	if config.Storage != nil && config.Storage.Redis != nil && config.Storage.Redis.Password != "" {
		storage := *out.Storage
		rd := *config.Storage.Redis
		rd.Password = "***"
		storage.Redis = &rd
		out.Storage = &storage
	}
	return out
}
