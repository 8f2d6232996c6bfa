package allocation

import (
	"time"

	"lowkey_bot/internal/domain/contact"
)

const newContactBoost = 2.0

// Score ranks one candidate instant for c. Higher is more deserving of a slot.
// The result is always positive.
func Score(c *contact.Contact, at, now time.Time) float64 {
	boost := 1.0
	if c.NeverReminded() {
		boost = newContactBoost
	}
	return c.Relationship.Weight() * c.Cadence.FrequencyMultiplier() * boost * urgency(at.Sub(now))
}

func urgency(lead time.Duration) float64 {
	switch {
	case lead <= time.Hour:
		return 1.0
	case lead <= 6*time.Hour:
		return 0.9
	case lead <= 24*time.Hour:
		return 0.7
	default:
		return 0.5
	}
}
