package core

// Snapshot is one full read of the ledger, split into decoded records and the
// rows that were skipped as malformed.
type Snapshot struct {
	Subscriptions []Subscription
	Skipped       []SkippedRow
}

// SkippedRow records why a stored row was left out of the ledger.
type SkippedRow struct {
	Index  int
	Reason string
}

// Summary is the derived state shown on the dashboard.
type Summary struct {
	Count        int
	MonthlyTotal float64
	YearlyTotal  float64
	DueSoon      []Subscription
	Unparsed     int // records whose price fell back to 0
	Skipped      int
}

// NewSnapshot decodes raw rows, skipping malformed ones.
func NewSnapshot(rows []Row) Snapshot {
	snap := Snapshot{Subscriptions: make([]Subscription, 0, len(rows))}
	for _, r := range rows {
		s, err := FromRow(r)
		if err != nil {
			snap.Skipped = append(snap.Skipped, SkippedRow{Index: r.Index, Reason: err.Error()})
			continue
		}
		snap.Subscriptions = append(snap.Subscriptions, s)
	}
	return snap
}

// Summarize computes count, totals and the due-soon set relative to today.
func Summarize(snap Snapshot, today Date, dueSoonDays int) Summary {
	monthly := MonthlyTotal(snap.Subscriptions)
	sum := Summary{
		Count:        len(snap.Subscriptions),
		MonthlyTotal: monthly,
		YearlyTotal:  monthly * 12,
		DueSoon:      DueSoon(snap.Subscriptions, today, dueSoonDays),
		Skipped:      len(snap.Skipped),
	}
	for _, s := range snap.Subscriptions {
		if s.PriceErr != nil {
			sum.Unparsed++
		}
	}
	return sum
}

// Names returns the distinct subscription names in first-seen order.
func (s Snapshot) Names() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(s.Subscriptions))
	for _, sub := range s.Subscriptions {
		if _, ok := seen[sub.Name]; ok {
			continue
		}
		seen[sub.Name] = struct{}{}
		out = append(out, sub.Name)
	}
	return out
}
