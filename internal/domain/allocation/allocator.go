package allocation

import (
	"fmt"
	"sort"
	"time"

	"lowkey_bot/internal/domain/contact"
)

// Candidate is a proposed reminder for one contact.
type Candidate struct {
	ContactID string
	At        time.Time
	Score     float64
}

// Admission is a candidate that won a slot, with the reservation identifier it
// must be published under.
type Admission struct {
	Candidate
	Identifier string
}

// Result is the outcome of one allocation pass.
type Result struct {
	Admitted []Admission // Highest score first; never longer than the capacity
	Advance  []string    // Contacts with at least one admission, in order of first admission
}

// Empty reports whether nothing was admitted.
func (r Result) Empty() bool { return len(r.Admitted) == 0 }

// ReservationIdentifier builds the publisher identifier for the ordinal-th
// admission of a contact within a pass.
func ReservationIdentifier(contactID string, ordinal int) string {
	return fmt.Sprintf("%s-%d", contactID, ordinal)
}

// CandidatesFor generates and scores the candidates of a single contact.
func CandidatesFor(c *contact.Contact, now time.Time, opts Options) []Candidate {
	instants := Generate(c, now, opts)
	out := make([]Candidate, 0, len(instants))
	for _, at := range instants {
		out = append(out, Candidate{ContactID: c.ID, At: at, Score: Score(c, at, now)})
	}
	return out
}

// Allocate pools the candidates of every contact, ranks them by score and
// admits the best ones until capacity is used up.
//
// Admission has no interaction cost between candidates, so taking the top
// scores greedily maximises the total admitted score. Ties keep generation
// order (contacts in input order, instants chronologically), which makes the
// result a pure function of its inputs.
func Allocate(contacts []*contact.Contact, now time.Time, opts Options, capacity int) Result {
	var res Result
	if capacity <= 0 || len(contacts) == 0 {
		return res
	}

	var pool []Candidate
	for _, c := range contacts {
		if c == nil {
			continue
		}
		pool = append(pool, CandidatesFor(c, now, opts)...)
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Score > pool[j].Score
	})
	if len(pool) > capacity {
		pool = pool[:capacity]
	}

	ordinals := make(map[string]int, len(contacts))
	for _, cand := range pool {
		n, seen := ordinals[cand.ContactID]
		if !seen {
			res.Advance = append(res.Advance, cand.ContactID)
		}
		res.Admitted = append(res.Admitted, Admission{
			Candidate:  cand,
			Identifier: ReservationIdentifier(cand.ContactID, n),
		})
		ordinals[cand.ContactID] = n + 1
	}
	return res
}
