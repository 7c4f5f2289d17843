package core

// DefaultDueSoonDays is the width of the due-soon window.
const DefaultDueSoonDays = 7

// DueSoon returns the subscriptions whose next due date falls in
// [today, today+days], preserving input order. Records with an unparseable
// date and overdue records are excluded.
func DueSoon(subs []Subscription, today Date, days int) []Subscription {
	start := today
	end := today.AddDays(days)
	var out []Subscription
	for _, s := range subs {
		if s.NextDue.IsZero() {
			continue
		}
		if s.NextDue.Before(start.Time) || s.NextDue.After(end.Time) {
			continue
		}
		out = append(out, s)
	}
	return out
}
