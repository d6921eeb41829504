package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vincentbai/webhook-activity/internal/normalize"
)

var normalizeEvent string

var normalizeCmd = &cobra.Command{
	Use:   "normalize [payload.json]",
	Short: "Normalize a webhook payload without storing it",
	Long: `Reads a GitHub webhook payload from a file (or stdin when omitted or "-")
and prints the activity record it would produce.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := io.Reader(os.Stdin)
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		return runNormalize(in, os.Stdout, normalizeEvent, time.Now())
	},
}

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeEvent, "event", "e", "push", "X-GitHub-Event value")
}

func runNormalize(in io.Reader, out io.Writer, eventType string, now time.Time) error {
	payload, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	event, err := normalize.Normalize(eventType, payload, now.UTC().Truncate(time.Microsecond))
	if err != nil {
		return err
	}
	if event == nil {
		fmt.Fprintf(out, "ignored: %q delivery produces no activity\n", eventType)
		return nil
	}
	if jsonOutput {
		return printJSON(out, event)
	}
	fmt.Fprintln(out, event.Message)
	return nil
}
