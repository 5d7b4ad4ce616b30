package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var compareCmd = &cobra.Command{
	Use:   "compare <user-email> <user-email>",
	Short: "Score a single pair of users",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		enhanced, _ := cmd.Flags().GetBool("enhanced")
		compare(args[0], args[1], enhanced)
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().BoolP("enhanced", "e", false, "adjust the score with the notes analysis")
}

func compare(userA, userB string, enhanced bool) {
	ctx := context.Background()

	config, logger, err := setup()
	if err != nil {
		log.Fatal(err)
	}

	d, err := buildDeps(ctx, config, logger)
	if err != nil {
		logger.Fatal("building dependencies", zap.Error(err))
	}
	defer closeQuietly(d, logger)

	score, err := d.ranker.Compare(ctx, userA, userB, enhanced)
	if err != nil {
		logger.Fatal("comparing users", zap.Error(err))
	}

	if score == nil {
		logger.Info("not a match", zap.String("user_a", userA), zap.String("user_b", userB))
		return
	}

	if err := printJSON(score); err != nil {
		logger.Fatal("printing score", zap.Error(err))
	}
}
