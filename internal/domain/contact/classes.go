package contact

import (
	"fmt"
	"strings"
	"time"
)

var ErrUnknownRelationship = fmt.Errorf("unknown relationship type")
var ErrUnknownCadence = fmt.Errorf("unknown nudge cadence")

// Relationship is the closed set of relationship classes.
type Relationship string

const (
	RelationshipRomantic Relationship = "romantic"
	RelationshipSpouse   Relationship = "spouse"
	RelationshipParent   Relationship = "parent"
	RelationshipChild    Relationship = "child"
	RelationshipSibling  Relationship = "sibling"
	RelationshipFriend   Relationship = "friend"
	RelationshipOther    Relationship = "other"
)

// Relationships lists every relationship class in display order.
var Relationships = []Relationship{
	RelationshipRomantic,
	RelationshipSpouse,
	RelationshipParent,
	RelationshipChild,
	RelationshipFriend,
	RelationshipSibling,
	RelationshipOther,
}

var relationshipWeights = map[Relationship]float64{
	RelationshipRomantic: 1.0,
	RelationshipSpouse:   1.0,
	RelationshipParent:   0.9,
	RelationshipChild:    0.9,
	RelationshipSibling:  0.7,
	RelationshipFriend:   0.5,
	RelationshipOther:    0.3,
}

// Weight is the fixed priority weight of the class. Unknown values get the lowest weight.
func (r Relationship) Weight() float64 {
	if w, ok := relationshipWeights[r]; ok {
		return w
	}
	return relationshipWeights[RelationshipOther]
}

func (r Relationship) DisplayName() string {
	switch r {
	case RelationshipRomantic:
		return "Romantic Partner"
	case RelationshipSpouse:
		return "Spouse"
	case RelationshipParent:
		return "Parent"
	case RelationshipChild:
		return "Child"
	case RelationshipSibling:
		return "Sibling"
	case RelationshipFriend:
		return "Friend"
	default:
		return "Other"
	}
}

// ParseRelationship accepts any casing and ignores '-', '_' and spaces.
func ParseRelationship(s string) (Relationship, error) {
	key := normalizeClassName(s)
	for _, r := range Relationships {
		if normalizeClassName(string(r)) == key {
			return r, nil
		}
	}
	if key == "partner" {
		return RelationshipRomantic, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRelationship, s)
}

// Cadence is the closed set of reminder frequencies a contact can choose.
type Cadence string

const (
	CadenceFewPerDay     Cadence = "few_per_day"
	CadenceDaily         Cadence = "daily"
	CadenceAlternateDays Cadence = "alternate_days"
	CadenceFewPerWeek    Cadence = "few_per_week"
	CadenceWeekly        Cadence = "weekly"
	CadenceMonthly       Cadence = "monthly"
	CadenceQuarterly     Cadence = "quarterly"
)

// Cadences lists every cadence from most to least frequent.
var Cadences = []Cadence{
	CadenceFewPerDay,
	CadenceDaily,
	CadenceAlternateDays,
	CadenceFewPerWeek,
	CadenceWeekly,
	CadenceMonthly,
	CadenceQuarterly,
}

var frequencyMultipliers = map[Cadence]float64{
	CadenceFewPerDay:     1.0,
	CadenceDaily:         0.9,
	CadenceAlternateDays: 0.7,
	CadenceFewPerWeek:    0.6,
	CadenceWeekly:        0.4,
	CadenceMonthly:       0.2,
	CadenceQuarterly:     0.1,
}

// FrequencyMultiplier decreases with cadence rarity. Unknown values get the lowest multiplier.
func (c Cadence) FrequencyMultiplier() float64 {
	if m, ok := frequencyMultipliers[c]; ok {
		return m
	}
	return frequencyMultipliers[CadenceQuarterly]
}

// After returns the earliest instant a contact with this cadence is due again
// when it was last reminded at t.
func (c Cadence) After(t time.Time) time.Time {
	switch c {
	case CadenceFewPerDay:
		return t.Add(6 * time.Hour)
	case CadenceDaily:
		return t.Add(24 * time.Hour)
	case CadenceAlternateDays:
		return t.Add(48 * time.Hour)
	case CadenceFewPerWeek:
		return t.Add(72 * time.Hour)
	case CadenceWeekly:
		return t.AddDate(0, 0, 7)
	case CadenceMonthly:
		return t.AddDate(0, 1, 0)
	default: // quarterly and anything unrecognised
		return t.AddDate(0, 3, 0)
	}
}

func (c Cadence) DisplayName() string {
	switch c {
	case CadenceFewPerDay:
		return "A Few Times a Day"
	case CadenceDaily:
		return "Daily"
	case CadenceAlternateDays:
		return "Every Other Day"
	case CadenceFewPerWeek:
		return "A Few Times a Week"
	case CadenceWeekly:
		return "Weekly"
	case CadenceMonthly:
		return "Monthly"
	default:
		return "Quarterly"
	}
}

// ParseCadence accepts any casing and ignores '-', '_' and spaces.
func ParseCadence(s string) (Cadence, error) {
	key := normalizeClassName(s)
	for _, c := range Cadences {
		if normalizeClassName(string(c)) == key {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCadence, s)
}

func normalizeClassName(s string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}
