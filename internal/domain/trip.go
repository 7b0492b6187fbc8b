// Package domain contains the core data types for the trip thread bot.
// This package has zero external dependencies and is imported by every other
// internal package (codec, cache, service, handler).
package domain

import (
	"fmt"
	"strings"
)

// Participant identifies one of the two people sharing a trip's costs.
// The set is closed: PartyA and PartyB are the only valid values.
type Participant int

const (
	PartyA Participant = iota
	PartyB
)

// Participants lists every participant in display order.
var Participants = [...]Participant{PartyA, PartyB}

// Other returns the participant on the other side of the split.
func (p Participant) Other() Participant {
	if p == PartyA {
		return PartyB
	}
	return PartyA
}

// ID returns the stable identifier of p ("partyA" or "partyB").
func (p Participant) ID() string {
	if p == PartyA {
		return "partyA"
	}
	return "partyB"
}

// Spending holds each participant's running total, indexed by Participant.
// It is an array rather than a map so Record stays comparable.
type Spending [len(Participants)]Amount

// Total returns the combined spending of both participants.
func (s Spending) Total() Amount {
	var total Amount
	for _, a := range s {
		total += a
	}
	return total
}

// Record is the full state of one trip thread.
// Empty strings mean "not set yet"; the codec writes them as a placeholder.
type Record struct {
	LodgingAddress string
	StartDate      string // free-form, never parsed as a date
	EndDate        string // free-form, never parsed as a date
	Notes          string // append-only, entries separated by "\n"
	Spending       Spending
}

// NewRecord returns the record every trip starts from: no details, and
// both spending totals at exactly zero.
func NewRecord() Record {
	return Record{}
}

// Field names a settable scalar field of a Record.
type Field string

const (
	FieldLodgingAddress Field = "lodging_address"
	FieldStartDate      Field = "start_date"
	FieldEndDate        Field = "end_date"
	FieldNotes          Field = "notes"
)

// Label returns the human-readable name of the field.
func (f Field) Label() string {
	switch f {
	case FieldLodgingAddress:
		return "Lodging address"
	case FieldStartDate:
		return "Start date"
	case FieldEndDate:
		return "End date"
	case FieldNotes:
		return "Notes"
	}
	return string(f)
}

// WithField returns a copy of r with field set to value. Scalar fields are
// overwritten; notes are appended on a new line unless they are still empty.
// Returns ErrUnknownField for any other field name; r is returned unchanged.
func (r Record) WithField(field Field, value string) (Record, error) {
	switch field {
	case FieldLodgingAddress:
		r.LodgingAddress = value
	case FieldStartDate:
		r.StartDate = value
	case FieldEndDate:
		r.EndDate = value
	case FieldNotes:
		if r.Notes == "" {
			r.Notes = value
		} else {
			r.Notes = r.Notes + "\n" + value
		}
	default:
		return r, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return r, nil
}

// WithSpending returns a copy of r with delta added to p's running total.
func (r Record) WithSpending(p Participant, delta Amount) Record {
	r.Spending[p] += delta
	return r
}

// Roster maps participants to display names and resolves user-supplied
// references to a participant.
type Roster struct {
	names [len(Participants)]string
}

// NewRoster builds a Roster from the display names of PartyA and PartyB.
func NewRoster(partyA, partyB string) Roster {
	return Roster{names: [len(Participants)]string{partyA, partyB}}
}

// Name returns the display name of p.
func (r Roster) Name(p Participant) string {
	return r.names[p]
}

// Lookup resolves key to a participant. It matches display names
// case-insensitively, as well as the stable IDs and the short forms "a"/"b".
func (r Roster) Lookup(key string) (Participant, bool) {
	key = strings.TrimSpace(key)
	for _, p := range Participants {
		if strings.EqualFold(key, r.names[p]) || strings.EqualFold(key, p.ID()) {
			return p, true
		}
	}
	switch strings.ToLower(key) {
	case "a":
		return PartyA, true
	case "b":
		return PartyB, true
	}
	return 0, false
}
