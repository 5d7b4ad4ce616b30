package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/roommate-matcher/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL schema migrations",
	Run: func(cmd *cobra.Command, _ []string) {
		target, _ := cmd.Flags().GetUint("version")
		migrateSchema(target)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Uint("version", 0, "migrate to this schema version, 0 means latest")
}

func migrateSchema(target uint) {
	ctx := context.Background()

	config, logger, err := setup()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	db, err := openPostgres(ctx, config.Storage.Postgres)
	if err != nil {
		logger.Fatal("connecting to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := repository.Migrate(db, target, logger); err != nil {
		logger.Fatal("migrating schema", zap.Error(err))
	}
}
