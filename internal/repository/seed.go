package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/roommate-matcher/internal/profile"
)

// ImportStats counts what Seed.Import wrote.
type ImportStats struct {
	Profiles int
	Skipped  int
	Bans     int
	Blocks   int
}

// Import writes the seed into persistent storage. Eligible profiles that fail validation are
// skipped; drafts are stored as they are since they are incomplete by nature.
func (s *Seed) Import(ctx context.Context, profiles ProfileWriter, blocks BlockWriter, log *zap.Logger) (ImportStats, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var stats ImportStats
	for _, p := range s.Profiles {
		if err := profile.Prepare(p); err != nil {
			if p.Eligible() {
				log.Warn("skipping invalid seed profile", zap.String("user", p.UserEmail), zap.Error(err))
				stats.Skipped++
				continue
			}
			log.Debug("storing incomplete draft", zap.String("user", p.UserEmail), zap.Error(err))
		}

		if err := profiles.SaveProfile(ctx, p); err != nil {
			return stats, err
		}
		stats.Profiles++
	}

	for _, id := range s.Banned {
		if err := blocks.Ban(ctx, id); err != nil {
			return stats, fmt.Errorf("ban %q: %w", id, err)
		}
		stats.Bans++
	}
	for _, block := range s.Blocks {
		if err := blocks.Block(ctx, block.Target, block.By); err != nil {
			return stats, fmt.Errorf("block %q by %q: %w", block.Target, block.By, err)
		}
		stats.Blocks++
	}

	return stats, nil
}
