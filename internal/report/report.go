// Package report renders the ledger for terminals and JSON consumers.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"abonnements/internal/core"
)

// NothingDue is shown when no subscription falls in the due-soon window.
const NothingDue = "Rien à signaler."

// JSONOutput is the root JSON output object
type JSONOutput struct {
	Subscriptions []JSONSubscription `json:"subscriptions"`
	Summary       JSONSummary        `json:"summary"`
	Skipped       []JSONSkipped      `json:"skipped,omitempty"`
}

// JSONSummary contains aggregate statistics
type JSONSummary struct {
	Count        int                `json:"count"`
	MonthlyTotal float64            `json:"monthly_total"`
	YearlyTotal  float64            `json:"yearly_total"`
	Currency     string             `json:"currency"`
	DueSoonDays  int                `json:"due_soon_days"`
	DueSoon      []JSONSubscription `json:"due_soon"`
	Unparsed     int                `json:"unparsed_prices"`
	Today        string             `json:"today"`
}

// JSONSubscription is the JSON output format for a subscription
type JSONSubscription struct {
	Index        int     `json:"index"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	PriceValid   bool    `json:"price_valid"`
	RawPrice     string  `json:"raw_price,omitempty"`
	Period       string  `json:"period"`
	NextDue      string  `json:"next_due,omitempty"`
	MonthlyShare float64 `json:"monthly_share"`
}

type JSONSkipped struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

func toJSONSubscription(s core.Subscription) JSONSubscription {
	js := JSONSubscription{
		Index:        s.Index,
		Name:         s.Name,
		Price:        s.Price,
		PriceValid:   s.PriceErr == nil,
		Period:       string(s.Period),
		NextDue:      s.NextDue.String(),
		MonthlyShare: core.MonthlyContribution(s),
	}
	if s.PriceErr != nil {
		js.RawPrice = s.RawPrice
	}
	return js
}

// NewJSONSummary converts a summary. DueSoon is never null.
func NewJSONSummary(sum core.Summary, today core.Date, dueSoonDays int, currency string) JSONSummary {
	due := make([]JSONSubscription, 0, len(sum.DueSoon))
	for _, s := range sum.DueSoon {
		due = append(due, toJSONSubscription(s))
	}
	return JSONSummary{
		Count:        sum.Count,
		MonthlyTotal: sum.MonthlyTotal,
		YearlyTotal:  sum.YearlyTotal,
		Currency:     currency,
		DueSoonDays:  dueSoonDays,
		DueSoon:      due,
		Unparsed:     sum.Unparsed,
		Today:        today.String(),
	}
}

// NewJSONOutput builds the full JSON document for a snapshot.
func NewJSONOutput(snap core.Snapshot, sum core.Summary, today core.Date, dueSoonDays int, currency string) JSONOutput {
	subs := make([]JSONSubscription, 0, len(snap.Subscriptions))
	for _, s := range snap.Subscriptions {
		subs = append(subs, toJSONSubscription(s))
	}
	out := JSONOutput{
		Subscriptions: subs,
		Summary:       NewJSONSummary(sum, today, dueSoonDays, currency),
	}
	for _, sk := range snap.Skipped {
		out.Skipped = append(out.Skipped, JSONSkipped{Index: sk.Index, Reason: sk.Reason})
	}
	return out
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// DueSoonLine is the one-line alert for a subscription due soon.
func DueSoonLine(s core.Subscription, m core.Money) string {
	return fmt.Sprintf("%s : %s le %s", s.Name, m.Format(s.Price), s.NextDue.String())
}

// PrintTable writes every subscription, the monthly total and the due-soon
// alerts.
func PrintTable(w io.Writer, snap core.Snapshot, sum core.Summary, m core.Money) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Name", "Price", "Period", "Next due", "Monthly"})

	for _, s := range snap.Subscriptions {
		price := m.Format(s.Price)
		if s.PriceErr != nil {
			price = text.FgRed.Sprintf("%s?", s.RawPrice)
		}
		due := s.NextDue.String()
		if due == "" {
			due = text.FgHiBlack.Sprint(s.RawDue)
		}
		t.AppendRow(table.Row{s.Index, s.Name, price, string(s.Period), due, m.Format(core.MonthlyContribution(s))})
	}

	t.AppendSeparator()
	t.AppendFooter(table.Row{"", "", "", "", text.Bold.Sprint("Total"), text.Bold.Sprint(m.Format(sum.MonthlyTotal))})

	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	t.Render()

	for _, sk := range snap.Skipped {
		fmt.Fprintf(w, "skipped row %d: %s\n", sk.Index, sk.Reason)
	}
	fmt.Fprintln(w)
	PrintDueSoon(w, sum, m)
}

// PrintSummary writes the count, totals and due-soon alerts.
func PrintSummary(w io.Writer, sum core.Summary, m core.Money) {
	fmt.Fprintf(w, "Abonnements : %d\n", sum.Count)
	fmt.Fprintf(w, "Total mensuel : %s\n", m.Format(sum.MonthlyTotal))
	fmt.Fprintf(w, "Total annuel : %s\n", m.Format(sum.YearlyTotal))
	if sum.Unparsed > 0 {
		fmt.Fprintf(w, "Prix illisibles comptés à 0 : %d\n", sum.Unparsed)
	}
	fmt.Fprintln(w)
	PrintDueSoon(w, sum, m)
}

func PrintDueSoon(w io.Writer, sum core.Summary, m core.Money) {
	if len(sum.DueSoon) == 0 {
		fmt.Fprintln(w, NothingDue)
		return
	}
	for _, s := range sum.DueSoon {
		fmt.Fprintln(w, text.FgYellow.Sprint("! ")+DueSoonLine(s, m))
	}
}
