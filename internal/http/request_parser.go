// Package http serves the subscription dashboard and its JSON API.
//
// This file turns form posts and JSON bodies into drafts. Parsing failures
// are reported with the same core sentinels the ledger uses for validation,
// so handlers map both to 422 the same way.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"abonnements/internal/core"
)

// maxBodyBytes caps JSON and form bodies; a subscription is four short fields.
const maxBodyBytes = 16 << 10

// draftForm holds the raw submitted values so a rejected form can be
// re-rendered with what the user typed.
type draftForm struct {
	Name    string `json:"name"`
	Price   string `json:"price"`
	Period  string `json:"period"`
	NextDue string `json:"next_due"`
}

func formFromValues(v url.Values) draftForm {
	return draftForm{
		Name:    sanitizeInput(v.Get("name")),
		Price:   sanitizeInput(v.Get("price")),
		Period:  sanitizeInput(v.Get("period")),
		NextDue: sanitizeInput(v.Get("next_due")),
	}
}

// Draft converts the raw values. The price accepts the same spellings as
// stored cells ("9,99", "9.99 €").
func (f draftForm) Draft() (core.Draft, error) {
	price := core.ParsePrice(f.Price)
	if !price.OK() {
		return core.Draft{}, price.Err
	}
	period, err := core.ParsePeriod(f.Period)
	if err != nil {
		return core.Draft{}, err
	}
	due, err := core.ParseDate(f.NextDue)
	if err != nil {
		return core.Draft{}, err
	}
	d := core.Draft{
		Name:    f.Name,
		Price:   price.Value,
		Period:  period,
		NextDue: due,
	}
	if err := d.Validate(); err != nil {
		return core.Draft{}, err
	}
	return d, nil
}

// parseDraftForm reads an application/x-www-form-urlencoded add request.
func parseDraftForm(w http.ResponseWriter, r *http.Request) (draftForm, core.Draft, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return draftForm{}, core.Draft{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	form := formFromValues(r.PostForm)
	d, err := form.Draft()
	return form, d, err
}

// jsonDraft accepts the price as a JSON number or a string.
type jsonDraft struct {
	Name    string          `json:"name"`
	Price   json.RawMessage `json:"price"`
	Period  string          `json:"period"`
	NextDue string          `json:"next_due"`
}

// parseDraftJSON reads a POST /api/subscriptions body.
func parseDraftJSON(w http.ResponseWriter, r *http.Request) (core.Draft, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	var body jsonDraft
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return core.Draft{}, fmt.Errorf("%w: empty body", errBadRequest)
		}
		return core.Draft{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	form := draftForm{
		Name:    sanitizeInput(body.Name),
		Price:   rawPrice(body.Price),
		Period:  sanitizeInput(body.Period),
		NextDue: sanitizeInput(body.NextDue),
	}
	return form.Draft()
}

func rawPrice(m json.RawMessage) string {
	if len(m) == 0 || string(m) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return sanitizeInput(s)
	}
	var f float64
	if err := json.Unmarshal(m, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.TrimSpace(string(m))
}

// parseIndex reads the 1-based row position from a path value or form field.
func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || i < 1 {
		return 0, fmt.Errorf("%w: invalid row index %q", errBadRequest, s)
	}
	return i, nil
}
