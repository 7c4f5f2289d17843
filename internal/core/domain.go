package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Monthly Period = "Monthly"
	Yearly  Period = "Yearly"
)

// MaxNameLength bounds the stored name in bytes.
const MaxNameLength = 200

// DateLayout is the serialized form of NextDue in every backend.
const DateLayout = "2006-01-02"

type (
	// Period is the billing period of a subscription. Values other than
	// Monthly are aggregated as yearly.
	Period string

	Date struct {
		time.Time
	}

	// Row is one raw record as exchanged with a ledger store. Index is the
	// 1-based position among data rows (header excluded).
	Row struct {
		Index   int
		Name    string
		Price   string
		Period  string
		NextDue string
	}

	Subscription struct {
		Index    int
		Name     string
		Price    float64
		PriceErr error // non-nil when the stored price could not be parsed
		Period   Period
		NextDue  Date // zero when the stored date could not be parsed
		RawPrice string
		RawDue   string
	}

	// Draft is the input of an add operation.
	Draft struct {
		Name    string
		Price   float64
		Period  Period
		NextDue Date
	}
)

var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrRecordNotFound   = errors.New("record not found")
	ErrMalformedRow     = errors.New("malformed row")

	ErrEmptyName     = errors.New("empty name")
	ErrNameTooLong   = errors.New("name too long")
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidDate   = errors.New("invalid date")
	ErrNegativePrice = errors.New("negative price")
	ErrEmptyPrice    = errors.New("empty price")
	ErrInvalidPrice  = errors.New("invalid price")
)

var periodAliases = map[string]Period{
	"monthly": Monthly,
	"mensuel": Monthly,
	"month":   Monthly,
	"yearly":  Yearly,
	"annuel":  Yearly,
	"year":    Yearly,
	"annual":  Yearly,
}

// ParsePeriod maps English and French spellings onto the canonical values.
// Unknown text is returned unchanged and reported as invalid.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if p, ok := periodAliases[strings.ToLower(s)]; ok {
		return p, nil
	}
	return Period(s), fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

func (p Period) IsMonthly() bool {
	return p == Monthly
}

func (p Period) Valid() bool {
	return p == Monthly || p == Yearly
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
}

// ParseDate accepts ISO dates plus the day-first layouts a spreadsheet
// configured for a French locale produces.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if len(d.Name) > MaxNameLength {
		return fmt.Errorf("%w: max %d bytes", ErrNameTooLong, MaxNameLength)
	}
	if !finite(d.Price) {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, d.Price)
	}
	if d.Price < 0 {
		return ErrNegativePrice
	}
	if !d.Period.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPeriod, d.Period)
	}
	if d.NextDue.IsZero() {
		return fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	return nil
}

// ToRow encodes a draft in the canonical text representation.
func (d Draft) ToRow() Row {
	return Row{
		Name:    strings.TrimSpace(d.Name),
		Price:   FormatPrice(d.Price),
		Period:  string(d.Period),
		NextDue: d.NextDue.String(),
	}
}

// FromRow decodes a raw row. Only a row without a name is malformed; an
// empty or unparseable price counts as 0 and an unparseable date is kept on
// the record, both flagged so the views that need them can tell.
func FromRow(r Row) (Subscription, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return Subscription{}, fmt.Errorf("%w: row %d: missing name", ErrMalformedRow, r.Index)
	}
	res := ParsePrice(r.Price)
	period, _ := ParsePeriod(r.Period)
	due, _ := ParseDate(r.NextDue)
	return Subscription{
		Index:    r.Index,
		Name:     name,
		Price:    res.OrZero(),
		PriceErr: res.Err,
		Period:   period,
		NextDue:  due,
		RawPrice: r.Price,
		RawDue:   r.NextDue,
	}, nil
}

// NormalizeName is the comparison form of a subscription name.
func NormalizeName(s string) string {
	return strings.TrimSpace(s)
}

// Row re-encodes a decoded record in canonical form. A price or date that
// did not parse keeps its stored text.
func (s Subscription) Row() Row {
	r := Row{
		Index:   s.Index,
		Name:    s.Name,
		Price:   s.RawPrice,
		Period:  string(s.Period),
		NextDue: s.RawDue,
	}
	if s.PriceErr == nil {
		r.Price = FormatPrice(s.Price)
	}
	if !s.NextDue.IsZero() {
		r.NextDue = s.NextDue.String()
	}
	return r
}
