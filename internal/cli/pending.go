package cli

import (
	"fmt"
	"io"
	"time"

	"lowkey_bot/internal/domain/notification"
	"lowkey_bot/internal/infra/config"
	"lowkey_bot/internal/infra/queue"

	"github.com/spf13/cobra"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List reminders waiting in the local queue",
	RunE:  runPending,
}

// runPending reads only the queue file and never connects to the database.
func runPending(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load application configuration: %w", err)
	}
	q, err := queue.Open(cfg.QueuePath, cfg.ReminderCapacity)
	if err != nil {
		return fmt.Errorf("could not open reminder queue: %w", err)
	}
	defer q.Close()

	pending, err := q.ListPending(cmd.Context())
	if err != nil {
		return err
	}
	printPending(cmd.OutOrStdout(), pending, q.Capacity(), cfg.Location)
	return nil
}

func printPending(w io.Writer, pending []notification.Reservation, capacity int, loc *time.Location) {
	fmt.Fprintf(w, "%d of %d reminder slot(s) in use\n", len(pending), capacity)
	for _, r := range pending {
		fmt.Fprintf(w, "  %s  %-40s %s\n", r.FireAt.In(loc).Format("2006-01-02 15:04"), r.Identifier, r.DisplayText)
	}
}
