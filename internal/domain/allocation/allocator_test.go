package allocation

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"testing"
	"time"

	"lowkey_bot/internal/domain/contact"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreFactors(t *testing.T) {
	t.Parallel()
	now := wednesdayMorning
	tests := []struct {
		name    string
		contact contact.Contact
		lead    time.Duration
		want    float64
	}{
		{
			name:    "new spouse daily within the hour",
			contact: contact.Contact{Relationship: contact.RelationshipSpouse, Cadence: contact.CadenceDaily},
			lead:    30 * time.Minute,
			want:    1.0 * 0.9 * 2.0 * 1.0,
		},
		{
			name: "known sibling weekly in five hours",
			contact: contact.Contact{Relationship: contact.RelationshipSibling, Cadence: contact.CadenceWeekly,
				LastReminded: reminded(now.AddDate(0, 0, -9))},
			lead: 5 * time.Hour,
			want: 0.7 * 0.4 * 1.0 * 0.9,
		},
		{
			name: "known friend monthly tomorrow",
			contact: contact.Contact{Relationship: contact.RelationshipFriend, Cadence: contact.CadenceMonthly,
				LastReminded: reminded(now.AddDate(0, -1, 0))},
			lead: 24 * time.Hour,
			want: 0.5 * 0.2 * 1.0 * 0.7,
		},
		{
			name: "known other quarterly in two days",
			contact: contact.Contact{Relationship: contact.RelationshipOther, Cadence: contact.CadenceQuarterly,
				LastReminded: reminded(now.AddDate(0, -4, 0))},
			lead: 47 * time.Hour,
			want: 0.3 * 0.1 * 1.0 * 0.5,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Score(&tt.contact, now.Add(tt.lead), now)
			if !almostEqual(got, tt.want) {
				t.Fatalf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUrgencyBoundaries(t *testing.T) {
	t.Parallel()
	tests := []struct {
		lead time.Duration
		want float64
	}{
		{time.Hour, 1.0},
		{time.Hour + time.Minute, 0.9},
		{6 * time.Hour, 0.9},
		{6*time.Hour + time.Minute, 0.7},
		{24 * time.Hour, 0.7},
		{25 * time.Hour, 0.5},
	}
	for _, tt := range tests {
		if got := urgency(tt.lead); got != tt.want {
			t.Errorf("urgency(%v) = %v, want %v", tt.lead, got, tt.want)
		}
	}
}

func TestAllocateSpouseBeatsDistantContact(t *testing.T) {
	t.Parallel()
	now := wednesdayMorning
	a := &contact.Contact{ID: "A", Relationship: contact.RelationshipSpouse, Cadence: contact.CadenceDaily}
	b := &contact.Contact{ID: "B", Relationship: contact.RelationshipOther, Cadence: contact.CadenceQuarterly,
		LastReminded: reminded(now.AddDate(0, -6, 0))}

	res := Allocate([]*contact.Contact{b, a}, now, DefaultOptions(), 1)
	if len(res.Admitted) != 1 {
		t.Fatalf("admitted %d candidates, want 1", len(res.Admitted))
	}
	if got := res.Admitted[0]; got.ContactID != "A" || got.Identifier != "A-0" {
		t.Fatalf("admitted %+v, want A-0", got)
	}
	if !reflect.DeepEqual(res.Advance, []string{"A"}) {
		t.Fatalf("Advance = %v, want [A]", res.Advance)
	}
}

func TestAllocateZeroCapacity(t *testing.T) {
	t.Parallel()
	contacts := []*contact.Contact{
		{ID: "x", Relationship: contact.RelationshipFriend, Cadence: contact.CadenceDaily},
	}
	res := Allocate(contacts, wednesdayMorning, DefaultOptions(), 0)
	if !res.Empty() || len(res.Advance) != 0 {
		t.Fatalf("Allocate with capacity 0 = %+v, want empty", res)
	}
}

func TestAllocateNoContacts(t *testing.T) {
	t.Parallel()
	res := Allocate(nil, wednesdayMorning, DefaultOptions(), DefaultCapacity)
	if !res.Empty() || len(res.Advance) != 0 {
		t.Fatalf("Allocate(nil) = %+v, want empty", res)
	}
}

func manyContacts(n int) []*contact.Contact {
	out := make([]*contact.Contact, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &contact.Contact{
			ID:           fmt.Sprintf("c%02d", i),
			Relationship: contact.Relationships[i%len(contact.Relationships)],
			Cadence:      contact.Cadences[i%len(contact.Cadences)],
		})
	}
	return out
}

func TestAllocateRespectsCapacityAndKeepsTopScores(t *testing.T) {
	t.Parallel()
	now := wednesdayMorning
	contacts := manyContacts(40)
	opts := DefaultOptions()

	var pool []float64
	for _, c := range contacts {
		for _, cand := range CandidatesFor(c, now, opts) {
			pool = append(pool, cand.Score)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(pool)))

	for _, capacity := range []int{1, 5, DefaultCapacity, len(pool) + 10} {
		res := Allocate(contacts, now, opts, capacity)
		if len(res.Admitted) > capacity {
			t.Fatalf("capacity %d: admitted %d", capacity, len(res.Admitted))
		}
		want := capacity
		if want > len(pool) {
			want = len(pool)
		}
		if len(res.Admitted) != want {
			t.Fatalf("capacity %d: admitted %d, want %d", capacity, len(res.Admitted), want)
		}
		var got, best float64
		for i, adm := range res.Admitted {
			got += adm.Score
			best += pool[i]
			if i > 0 && adm.Score > res.Admitted[i-1].Score {
				t.Fatalf("capacity %d: admissions not ordered by score at %d", capacity, i)
			}
		}
		if !almostEqual(got, best) {
			t.Fatalf("capacity %d: admitted total %v, best possible %v", capacity, got, best)
		}
	}
}

func TestAllocateIsDeterministic(t *testing.T) {
	t.Parallel()
	now := wednesdayMorning
	contacts := manyContacts(25)

	first := Allocate(contacts, now, DefaultOptions(), 16)
	second := Allocate(contacts, now, DefaultOptions(), 16)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("two passes differ:\n%+v\n%+v", first, second)
	}
}

func TestAllocateNeverStarvesNewContacts(t *testing.T) {
	t.Parallel()
	// Monday afternoon so few-per-week contacts need the fallback slot.
	now := time.Date(2025, time.March, 3, 15, 0, 0, 0, time.UTC)
	contacts := manyContacts(len(contact.Cadences) * 2)

	res := Allocate(contacts, now, DefaultOptions(), 1000)
	admitted := make(map[string]bool, len(res.Advance))
	for _, id := range res.Advance {
		admitted[id] = true
	}
	for _, c := range contacts {
		if !admitted[c.ID] {
			t.Fatalf("new contact %s (%s) got no admission", c.ID, c.Cadence)
		}
	}
}

func TestAllocateHigherBestScoreWinsSingleSlot(t *testing.T) {
	t.Parallel()
	now := wednesdayMorning
	known := reminded(now.AddDate(0, 0, -10))
	a := &contact.Contact{ID: "A", Relationship: contact.RelationshipParent, Cadence: contact.CadenceWeekly, LastReminded: known}
	b := &contact.Contact{ID: "B", Relationship: contact.RelationshipFriend, Cadence: contact.CadenceWeekly, LastReminded: known}

	res := Allocate([]*contact.Contact{b, a}, now, DefaultOptions(), 1)
	if len(res.Admitted) != 1 || res.Admitted[0].ContactID != "A" {
		t.Fatalf("admitted %+v, want contact A", res.Admitted)
	}
}

func TestAllocateTiesKeepInputOrder(t *testing.T) {
	t.Parallel()
	now := wednesdayMorning
	a := &contact.Contact{ID: "A", Relationship: contact.RelationshipFriend, Cadence: contact.CadenceWeekly}
	b := &contact.Contact{ID: "B", Relationship: contact.RelationshipFriend, Cadence: contact.CadenceWeekly}

	res := Allocate([]*contact.Contact{b, a}, now, DefaultOptions(), 1)
	if len(res.Admitted) != 1 || res.Admitted[0].ContactID != "B" {
		t.Fatalf("admitted %+v, want the first contact in input order", res.Admitted)
	}
}

func TestAllocateIdentifiersAreOrdinalPerContact(t *testing.T) {
	t.Parallel()
	now := wednesdayMorning
	c := &contact.Contact{ID: "solo", Relationship: contact.RelationshipChild, Cadence: contact.CadenceFewPerDay}

	res := Allocate([]*contact.Contact{c}, now, DefaultOptions(), 3)
	want := []string{"solo-0", "solo-1", "solo-2"}
	if len(res.Admitted) != len(want) {
		t.Fatalf("admitted %d, want %d", len(res.Admitted), len(want))
	}
	for i, adm := range res.Admitted {
		if adm.Identifier != want[i] {
			t.Fatalf("identifier %d = %s, want %s", i, adm.Identifier, want[i])
		}
	}
	if !reflect.DeepEqual(res.Advance, []string{"solo"}) {
		t.Fatalf("Advance = %v, want [solo]", res.Advance)
	}
}
