package telegram

import (
	"fmt"
	"strings"
	"time"

	"lowkey_bot/internal/app"
	"lowkey_bot/internal/domain/contact"
	"lowkey_bot/internal/domain/notification"
)

const timeLayout = "Mon 02 Jan 15:04"

var errUsage = fmt.Errorf("invalid command format")

const (
	usageAddContact    = "Usage: /add_contact <relationship> <cadence> <name>"
	usageEditContact   = "Usage: /edit_contact <id> <relationship> <cadence>"
	usageRenameContact = "Usage: /rename_contact <id> <name>"
	usageRemoveContact = "Usage: /remove_contact <id>"
)

// addContactArgs splits "/add_contact <relationship> <cadence> <name…>".
// The name may contain spaces.
func addContactArgs(args []string) (relationship, cadence, name string, err error) {
	if len(args) < 3 {
		return "", "", "", errUsage
	}
	return args[0], args[1], strings.Join(args[2:], " "), nil
}

func editContactArgs(args []string) (id, relationship, cadence string, err error) {
	if len(args) != 3 {
		return "", "", "", errUsage
	}
	return args[0], args[1], args[2], nil
}

func renameContactArgs(args []string) (id, name string, err error) {
	if len(args) < 2 {
		return "", "", errUsage
	}
	return args[0], strings.Join(args[1:], " "), nil
}

func formatContact(c *contact.Contact, loc *time.Location) string {
	last := "never"
	if c.LastReminded.Valid {
		last = c.LastReminded.Time.In(loc).Format(timeLayout)
	}
	return fmt.Sprintf("• %s (%s, %s)\n  id: %s\n  last reminder: %s",
		c.Name, c.Relationship.DisplayName(), c.Cadence.DisplayName(), c.ID, last)
}

func formatContacts(contacts []*contact.Contact, loc *time.Location) string {
	if len(contacts) == 0 {
		return "No contacts yet. Add one with /add_contact."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your contacts (%d):\n", len(contacts))
	for _, c := range contacts {
		b.WriteString("\n")
		b.WriteString(formatContact(c, loc))
	}
	return b.String()
}

func formatUpcoming(pending []notification.Reservation, loc *time.Location) string {
	if len(pending) == 0 {
		return "No reminders scheduled."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Upcoming reminders (%d):\n", len(pending))
	for _, r := range pending {
		fmt.Fprintf(&b, "\n• %s  %s", r.FireAt.In(loc).Format(timeLayout), r.DisplayText)
	}
	return b.String()
}

func formatRefreshReport(r *app.RefreshReport) string {
	switch {
	case r == nil:
		return "Reminders will be scheduled at the next refresh."
	case !r.PermissionGranted:
		return "Reminders are paused, so nothing was scheduled. Use /resume to turn them back on."
	case r.Failed > 0:
		return fmt.Sprintf("Scheduled %d reminder(s); %d could not be scheduled.", r.Reserved, r.Failed)
	default:
		return fmt.Sprintf("Scheduled %d reminder(s).", r.Reserved)
	}
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Lowkey nudges you to stay in touch with the people who matter.\n\n")
	b.WriteString(usageAddContact + "\n")
	b.WriteString(usageEditContact + "\n")
	b.WriteString(usageRenameContact + "\n")
	b.WriteString(usageRemoveContact + "\n")
	b.WriteString("/contacts - list your contacts\n")
	b.WriteString("/upcoming [id] - show scheduled reminders\n")
	b.WriteString("/refresh - reschedule every reminder now\n")
	b.WriteString("/pause, /resume - turn reminders off or on\n\n")

	rels := make([]string, 0, len(contact.Relationships))
	for _, r := range contact.Relationships {
		rels = append(rels, string(r))
	}
	cads := make([]string, 0, len(contact.Cadences))
	for _, c := range contact.Cadences {
		cads = append(cads, string(c))
	}
	fmt.Fprintf(&b, "Relationships: %s\n", strings.Join(rels, ", "))
	fmt.Fprintf(&b, "Cadences: %s", strings.Join(cads, ", "))
	return b.String()
}
