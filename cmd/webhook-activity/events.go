package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vincentbai/webhook-activity/internal/activity"
	"github.com/vincentbai/webhook-activity/internal/config"
	"github.com/vincentbai/webhook-activity/internal/models"
)

var (
	eventsSince string
	eventsLimit int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent activity straight from the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if eventsLimit <= 0 {
			return fmt.Errorf("--limit must be positive")
		}

		var since *time.Time
		if eventsSince != "" {
			t, err := activity.ParseTimestamp(eventsSince)
			if err != nil {
				return err
			}
			since = &t
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		service := activity.NewService(store,
			activity.WithLogger(cfg.Log.NewLogger(os.Stderr)),
			activity.WithStoreTimeout(cfg.Store.Timeout),
		)
		records, err := service.Recent(ctx, since, eventsLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(os.Stdout, records)
		}
		printActivities(os.Stdout, records, time.Now())
		return nil
	},
}

func init() {
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "only records created after this ISO-8601 timestamp")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", activity.RecentLimit, "maximum number of records")
}

func printActivities(w io.Writer, records []models.ActivityEvent, now time.Time) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No activity found.")
		return
	}
	for _, r := range records {
		fmt.Fprintf(w, "%-12s %-14s %s (%s)\n", r.Action, r.ID, r.Message, humanize.RelTime(r.CreatedAt, now, "ago", "from now"))
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
