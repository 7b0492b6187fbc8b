package codec

import (
	"strings"

	"github.com/pkordes/tripbot/internal/domain"
)

// document is a trip message split into the part above the notes section
// (searched line by line for field anchors) and the notes body. spending
// holds the "- " lines directly under the spending header, in order.
type document struct {
	head        []string
	notes       string
	hasNotes    bool
	spending    []string
	hasSpending bool
}

func parseDocument(text string) document {
	d := document{head: strings.Split(text, "\n")}
	for i, line := range d.head {
		if strings.TrimRight(line, "\r") != notesHeader {
			continue
		}
		d.notes = strings.TrimSpace(strings.Join(d.head[i+1:], "\n"))
		d.hasNotes = true
		d.head = d.head[:i]
		break
	}

	for i, line := range d.head {
		if strings.TrimRight(line, "\r") != spendingHeader {
			continue
		}
		d.hasSpending = true
		for _, item := range d.head[i+1:] {
			if !strings.HasPrefix(item, "- ") {
				break
			}
			d.spending = append(d.spending, item)
		}
		break
	}
	return d
}

// lineValue returns the trimmed rest of the first head line that starts
// with label.
func (d document) lineValue(label string) (string, bool) {
	for _, line := range d.head {
		if rest, ok := strings.CutPrefix(line, label); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// fieldRule extracts one field. apply returns false only when the field
// was present but unusable; a missing field keeps its zero value and
// counts as success.
type fieldRule struct {
	name  string
	apply func(d document, r *domain.Record) bool
}

func textRule(name, label string, set func(r *domain.Record, v string)) fieldRule {
	return fieldRule{
		name: name,
		apply: func(d document, r *domain.Record) bool {
			if v, ok := d.lineValue(label); ok {
				set(r, fromPlaceholder(v))
			}
			return true
		},
	}
}

// spendingRule reads the total of p from the line labelled with p's display
// name. When no line carries that label, the line at p's position under the
// spending header is used instead, unless it belongs to another participant;
// this keeps totals readable after a participant is renamed. A spending
// section without a usable line for p reports p as defaulted.
func (c *Codec) spendingRule(pos int, p domain.Participant) fieldRule {
	label := c.spendingLabel(p)
	return fieldRule{
		name: "spending." + p.ID(),
		apply: func(d document, r *domain.Record) bool {
			v, ok := d.lineValue(label)
			if !ok {
				v, ok = c.positionalSpending(d, pos)
			}
			if !ok {
				return !d.hasSpending
			}
			amount, err := domain.ParseAmount(strings.TrimLeft(v, "$€£"))
			if err != nil {
				r.Spending[p] = 0
				return false
			}
			r.Spending[p] = amount
			return true
		},
	}
}

func (c *Codec) positionalSpending(d document, pos int) (string, bool) {
	if pos >= len(d.spending) {
		return "", false
	}
	line := d.spending[pos]
	for _, other := range domain.Participants {
		if strings.HasPrefix(line, c.spendingLabel(other)) {
			return "", false
		}
	}
	_, v, ok := strings.Cut(strings.TrimPrefix(line, "- "), ": ")
	return strings.TrimSpace(v), ok
}

var notesRule = fieldRule{
	name: "notes",
	apply: func(d document, r *domain.Record) bool {
		if d.hasNotes {
			r.Notes = fromPlaceholder(d.notes)
		}
		return true
	},
}

// rules returns one independent extraction rule per record field.
// Order does not matter: no rule reads another rule's output.
func (c *Codec) rules() []fieldRule {
	rules := []fieldRule{
		textRule("lodging_address", lodgingLabel, func(r *domain.Record, v string) { r.LodgingAddress = v }),
		textRule("start_date", startLabel, func(r *domain.Record, v string) { r.StartDate = v }),
		textRule("end_date", endLabel, func(r *domain.Record, v string) { r.EndDate = v }),
		notesRule,
	}
	for i, p := range domain.Participants {
		rules = append(rules, c.spendingRule(i, p))
	}
	return rules
}
