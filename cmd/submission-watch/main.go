// Command submission-watch follows the caller's submissions for a set of
// bounties and logs every status change the server reports.
//
//	BOUNTY_API_URL=https://api.example BOUNTY_TOKEN=... submission-watch <bountyId>...
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learnhub/bounty-pipeline/internal/config"
	"learnhub/bounty-pipeline/internal/syncpoll"

	"github.com/joho/godotenv"
)

const fetchTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("could not load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	apiURL, token := os.Getenv("BOUNTY_API_URL"), os.Getenv("BOUNTY_TOKEN")
	bountyIDs := os.Args[1:]
	if apiURL == "" || token == "" || len(bountyIDs) == 0 {
		logger.Error("usage: BOUNTY_API_URL=... BOUNTY_TOKEN=... submission-watch <bountyId>...")
		os.Exit(2)
	}

	poller, err := syncpoll.New(syncpoll.Config{
		Fetcher:   syncpoll.NewHTTPFetcher(apiURL, token, fetchTimeout),
		BountyIDs: bountyIDs,
		Interval:  cfg.Sync.PollInterval,
		Logger:    logger,
		OnChange: func(_ map[string]syncpoll.View, changes []syncpoll.Change) {
			for _, c := range changes {
				if c.After == nil {
					logger.Info("submission gone", "bounty_id", c.BountyID)
					continue
				}
				logger.Info("submission status",
					"bounty_id", c.BountyID,
					"submission_id", c.After.ID,
					"status", c.After.Status,
					"awarded_xp", c.After.AwardedXP,
					"notice", c.After.Notice,
				)
			}
		},
	})
	if err != nil {
		logger.Error("could not create poller", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := poller.Start(ctx); err != nil {
		logger.Error("could not start poller", "error", err)
		os.Exit(1)
	}
	<-ctx.Done()
	poller.Stop()
}
