// Package codec converts a trip record to and from the text of its pinned
// anchor message. The message text is the only durable copy of a trip, so
// Encode and Decode must stay in lockstep: Decode(Encode(r)) == r for every
// valid record, and Decode must keep reading messages written by older
// revisions of the template.
package codec

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkordes/tripbot/internal/domain"
)

// Template literals. Changing any of these changes the persisted format;
// keep the old spelling decodable.
const (
	// Header is the first line of every trip message.
	Header = "🧳 **Trip Info**"

	// Placeholder stands in for any field that has not been set yet.
	Placeholder = "<update>"

	lodgingLabel   = "**Lodging:** "
	startLabel     = "**Start Date:** "
	endLabel       = "**End Date:** "
	spendingHeader = "**Spending:**"
	notesHeader    = "**Notes:**"
)

// MaxMessageLength is the platform's limit on message content, in characters.
const MaxMessageLength = 2000

// Codec encodes and decodes trip messages for one roster of participants.
// The participants' display names label the spending lines; a message
// written under other names is read by line position.
type Codec struct {
	roster domain.Roster
}

// New returns a Codec for the given roster.
func New(roster domain.Roster) *Codec {
	return &Codec{roster: roster}
}

// Roster returns the roster the codec was built with.
func (c *Codec) Roster() domain.Roster {
	return c.roster
}

// Encode renders r as the body of an anchor message. The output is
// deterministic: equal records always produce identical text.
func (c *Codec) Encode(r domain.Record) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')
	b.WriteString(lodgingLabel + orPlaceholder(r.LodgingAddress) + "\n")
	b.WriteString(startLabel + orPlaceholder(r.StartDate) + "\n")
	b.WriteString(endLabel + orPlaceholder(r.EndDate) + "\n")
	b.WriteString(spendingHeader + "\n")
	for _, p := range domain.Participants {
		b.WriteString(c.spendingLabel(p) + r.Spending[p].String() + "\n")
	}
	b.WriteString(notesHeader + "\n")
	b.WriteString(orPlaceholder(r.Notes))
	return b.String()
}

// IsTripMessage reports whether text starts with the trip message header.
func IsTripMessage(text string) bool {
	return strings.HasPrefix(text, Header)
}

// Decoded is the result of decoding a trip message.
type Decoded struct {
	Record domain.Record

	// Defaulted lists fields that could not be parsed, or whose line is
	// missing from a section that should hold it, and fell back to their
	// default value.
	Defaulted []string
}

// Decode parses the text of an anchor message. It returns false when text is
// not a trip message at all. A trip message never fails to decode: each
// field is extracted on its own, and a missing or malformed field takes its
// default instead of rejecting the whole message.
func (c *Codec) Decode(text string) (Decoded, bool) {
	if !IsTripMessage(text) {
		return Decoded{}, false
	}

	doc := parseDocument(text)
	var out Decoded
	for _, rule := range c.rules() {
		if !rule.apply(doc, &out.Record) {
			out.Defaulted = append(out.Defaulted, rule.name)
		}
	}
	return out, true
}

// Check reports whether r can be stored: it must survive an Encode/Decode
// round trip unchanged and its encoding must fit in one message.
// The returned error wraps domain.ErrValidation.
func (c *Codec) Check(r domain.Record) error {
	scalars := []struct {
		field domain.Field
		value string
	}{
		{domain.FieldLodgingAddress, r.LodgingAddress},
		{domain.FieldStartDate, r.StartDate},
		{domain.FieldEndDate, r.EndDate},
	}
	for _, s := range scalars {
		if strings.ContainsAny(s.value, "\r\n") {
			return fmt.Errorf("%w: %s must be a single line", domain.ErrValidation, s.field.Label())
		}
		if err := checkText(s.field, s.value); err != nil {
			return err
		}
	}
	if err := checkText(domain.FieldNotes, r.Notes); err != nil {
		return err
	}
	for _, p := range domain.Participants {
		if got, err := domain.ParseAmount(r.Spending[p].String()); err != nil || got != r.Spending[p] {
			return fmt.Errorf("%w: %s's total of %s is too large to record", domain.ErrValidation, c.roster.Name(p), r.Spending[p])
		}
	}
	if n := utf8.RuneCountInString(c.Encode(r)); n > MaxMessageLength {
		return fmt.Errorf("%w: trip info would be %d characters, the limit is %d", domain.ErrValidation, n, MaxMessageLength)
	}
	return nil
}

func checkText(field domain.Field, value string) error {
	if value == Placeholder {
		return fmt.Errorf("%w: %s cannot be %q", domain.ErrValidation, field.Label(), Placeholder)
	}
	if value != strings.TrimSpace(value) {
		return fmt.Errorf("%w: %s has leading or trailing whitespace", domain.ErrValidation, field.Label())
	}
	return nil
}

func (c *Codec) spendingLabel(p domain.Participant) string {
	return "- " + c.roster.Name(p) + ": "
}

func orPlaceholder(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

func fromPlaceholder(s string) string {
	if s == Placeholder {
		return ""
	}
	return s
}
