package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"lowkey_bot/internal/app"
	"lowkey_bot/internal/domain/allocation"
	"lowkey_bot/internal/domain/notification"
	"lowkey_bot/internal/infra/config"
)

func TestPrintReport(t *testing.T) {
	at := time.Date(2025, time.March, 5, 10, 0, 0, 0, time.UTC)
	report := &app.RefreshReport{
		PermissionGranted: true,
		Result: allocation.Result{Admitted: []allocation.Admission{{
			Candidate:  allocation.Candidate{ContactID: "A", At: at, Score: 0.63},
			Identifier: "A-0",
		}}},
		Reserved: 1,
		Advanced: []string{"A"},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()
	for _, want := range []string{"admitted 1, reserved 1, failed 0, advanced 1", "A-0", "2025-03-05 10:00 UTC", "score 0.630"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	report.PermissionGranted = false
	printReport(&buf, report)
	if !strings.Contains(buf.String(), "paused") {
		t.Errorf("paused output = %q", buf.String())
	}
}

func TestPrintPending(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	pending := []notification.Reservation{{
		Identifier:  "A-0",
		ContactID:   "A",
		DisplayText: "Time to reach out to Alex",
		FireAt:      time.Date(2025, time.March, 5, 10, 0, 0, 0, time.UTC),
	}}

	var buf bytes.Buffer
	printPending(&buf, pending, 64, loc)
	out := buf.String()
	for _, want := range []string{"1 of 64 reminder slot(s) in use", "2025-03-05 12:00", "Time to reach out to Alex"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAllocationOptionsFollowConfig(t *testing.T) {
	cfg := testConfig()
	opts := allocationOptions(cfg)
	if opts.Horizon != 36*time.Hour || opts.Hour != 9 || opts.Location != cfg.Location {
		t.Fatalf("options = %+v", opts)
	}
	if opts.Jitter == nil {
		t.Fatalf("jitter not set")
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "refresh": false, "pending": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
	if refreshCmd.Flags().Lookup("contact") == nil {
		t.Errorf("refresh has no --contact flag")
	}
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		ReminderHorizon:  36 * time.Hour,
		ReminderHour:     9,
		ReminderCapacity: 16,
		Location:         time.UTC,
	}
}
