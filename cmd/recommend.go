package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/roommate-matcher/internal/ranking"
	"github.com/spigell/roommate-matcher/internal/scoring"
)

const PromptExit = "exit"

var recommendCmd = &cobra.Command{
	Use:   "recommend <user-email>",
	Short: "Print ranked roommate recommendations for a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		recommend(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("region", "r", "", "only consider candidates in this housing region")
	recommendCmd.Flags().Float64P("min-score", "m", 0, "lowest score to include (default from matching.min-score)")
	recommendCmd.Flags().IntP("limit", "l", 0, "maximum number of recommendations, 0 means all")
	recommendCmd.Flags().BoolP("enhanced", "e", false, "adjust scores with the notes analysis (default from matching.enhanced)")
	recommendCmd.Flags().BoolP("interactive", "i", false, "browse the results interactively")
}

func recommend(cmd *cobra.Command, userID string) {
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

	opts, err := recommendOptions(cmd)
	if err != nil {
		logger.Fatal("parsing flags", zap.Error(err))
	}

	scores, err := d.ranker.Recommend(ctx, userID, opts)
	if err != nil {
		logger.Fatal("computing recommendations", zap.Error(err), zap.String("user", userID))
	}

	if len(scores) == 0 {
		logger.Info("exiting", zap.String("reason", "no compatible candidates found"))
		return
	}

	interactive, _ := cmd.Flags().GetBool("interactive")
	if !interactive {
		if err := printJSON(scores); err != nil {
			logger.Fatal("printing recommendations", zap.Error(err))
		}
		return
	}

	if err := browse(scores); err != nil && !errors.Is(err, promptui.ErrInterrupt) {
		logger.Fatal("exiting", zap.Error(err))
	}
}

func recommendOptions(cmd *cobra.Command) (ranking.RecommendOptions, error) {
	flags := cmd.Flags()

	var opts ranking.RecommendOptions
	var err error

	if opts.Region, err = flags.GetString("region"); err != nil {
		return opts, err
	}
	if opts.Limit, err = flags.GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.Limit < 0 {
		return opts, fmt.Errorf("limit must not be negative, got %d", opts.Limit)
	}

	if flags.Changed("min-score") {
		value, err := flags.GetFloat64("min-score")
		if err != nil {
			return opts, err
		}
		opts.MinScore = &value
	}

	if flags.Changed("enhanced") {
		value, err := flags.GetBool("enhanced")
		if err != nil {
			return opts, err
		}
		opts.Enhanced = &value
	}

	return opts, nil
}

// browse lets the user pick recommendations one by one and prints the details of each.
func browse(scores []*scoring.CompatibilityScore) error {
	items := make([]string, 0, len(scores)+1)
	for _, score := range scores {
		items = append(items, fmt.Sprintf("%s %.1f", score.CandidateID, score.Score))
	}
	items = append(items, PromptExit)

	for {
		selector := promptui.Select{
			Label: "Choose a candidate and press ENTER",
			Items: items,
			Size:  10,
		}

		idx, selected, err := selector.Run()
		if err != nil {
			return err
		}
		if selected == PromptExit {
			return nil
		}

		if err := printJSON(scores[idx]); err != nil {
			return err
		}
	}
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
