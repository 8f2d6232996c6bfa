package cli

import (
	"fmt"
	"io"

	"lowkey_bot/internal/app"

	"github.com/spf13/cobra"
)

var refreshContactID string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute the reminder budget once and exit",
	Long:  "Runs a full refresh of every contact, or an incremental refresh of one contact with --contact.",
	RunE:  runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshContactID, "contact", "", "refresh only this contact ID")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	var report *app.RefreshReport
	if refreshContactID != "" {
		report, err = rt.refresher.RefreshContact(cmd.Context(), refreshContactID)
	} else {
		report, err = rt.refresher.FullRefresh(cmd.Context())
	}
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func printReport(w io.Writer, r *app.RefreshReport) {
	if !r.PermissionGranted {
		fmt.Fprintf(w, "reminders are paused: %d reminder(s) would have been admitted, none reserved\n", len(r.Result.Admitted))
		return
	}
	fmt.Fprintf(w, "admitted %d, reserved %d, failed %d, advanced %d contact(s)\n",
		len(r.Result.Admitted), r.Reserved, r.Failed, len(r.Advanced))
	for _, a := range r.Result.Admitted {
		fmt.Fprintf(w, "  %-40s %s  score %.3f\n", a.Identifier, a.At.Format("2006-01-02 15:04 MST"), a.Score)
	}
}
