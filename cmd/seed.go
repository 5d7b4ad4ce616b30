package cmd

import (
	"context"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/roommate-matcher/internal/repository"
)

var seedCmd = &cobra.Command{
	Use:   "seed <seed-file>",
	Short: "Load a YAML seed file into PostgreSQL",
	Long: `Load profiles, bans and blocks from a YAML seed file into PostgreSQL.
Bans and blocks go to Redis instead when storage.redis.address is set.`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		seedStorage(args[0])
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func seedStorage(path string) {
	ctx := context.Background()

	config, logger, err := setup()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	seed, err := repository.ReadSeed(path)
	if err != nil {
		logger.Fatal("reading seed", zap.Error(err))
	}

	db, err := openPostgres(ctx, config.Storage.Postgres)
	if err != nil {
		logger.Fatal("connecting to postgres", zap.Error(err))
	}
	defer db.Close()

	store := repository.NewPostgres(db)
	var blocks repository.BlockWriter = store

	if redisCfg := config.Storage.Redis; redisCfg != nil && strings.TrimSpace(redisCfg.Address) != "" {
		redisBlocks := repository.NewRedisBlocks(repository.NewRedisClient(repository.RedisOptions{
			Address:  redisCfg.Address,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		}))
		defer redisBlocks.Close()
		if err := redisBlocks.Ping(ctx); err != nil {
			logger.Fatal("connecting to redis", zap.Error(err))
		}
		blocks = redisBlocks
	}

	stats, err := seed.Import(ctx, store, blocks, logger)
	if err != nil {
		logger.Fatal("importing seed", zap.Error(err), zap.Int("profiles_written", stats.Profiles))
	}

	logger.Info("seed imported",
		zap.String("file", path),
		zap.Int("profiles", stats.Profiles),
		zap.Int("skipped", stats.Skipped),
		zap.Int("bans", stats.Bans),
		zap.Int("blocks", stats.Blocks),
	)
}
