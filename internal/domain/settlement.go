package domain

import "fmt"

// Settlement is the result of closing out a trip's spending.
// When Even is true, Debtor, Creditor and Owed carry no meaning.
type Settlement struct {
	Spending Spending
	Total    Amount
	Split    Amount // each participant's fair share, rounded down to the cent
	Even     bool
	Debtor   Participant
	Creditor Participant
	Owed     Amount
}

// Settle splits the combined spending evenly between both participants.
// The participant who spent less owes the other half the difference,
// rounded half up to the cent.
func Settle(s Spending) Settlement {
	total := s.Total()
	out := Settlement{
		Spending: s,
		Total:    total,
		Split:    total / 2,
	}

	diff := s[PartyA] - s[PartyB]
	if diff == 0 {
		out.Even = true
		return out
	}

	out.Creditor = PartyA
	if diff < 0 {
		out.Creditor = PartyB
	}
	out.Debtor = out.Creditor.Other()
	out.Owed = (diff.Abs() + 1) / 2
	return out
}

// Outcome renders who owes whom, e.g. "Rachel owes Alfredo 20.00", or
// "even" when nobody owes anything.
func (s Settlement) Outcome(r Roster) string {
	if s.Even {
		return "even"
	}
	return fmt.Sprintf("%s owes %s %s", r.Name(s.Debtor), r.Name(s.Creditor), s.Owed)
}

// Summary renders the message posted to the parent channel once a trip is settled.
func (s Settlement) Summary(r Roster, tripName string) string {
	head := fmt.Sprintf("Trip %q settled. Total spent: %s (%s %s, %s %s).",
		tripName, s.Total,
		r.Name(PartyA), s.Spending[PartyA],
		r.Name(PartyB), s.Spending[PartyB],
	)
	if s.Even {
		return head + " Everyone is even."
	}
	return head + " " + s.Outcome(r) + "."
}
