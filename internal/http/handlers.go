package http

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"abonnements/internal/core"
	applog "abonnements/internal/log"
	"abonnements/internal/report"
)

// Flash messages are passed by key so the redirect never echoes user input.
var flashMessages = map[string]string{
	"added":   "Sauvegardé !",
	"deleted": "Fait !",
}

type rowView struct {
	Index   int
	Name    string
	Price   string
	Period  string
	NextDue string
	Monthly string
	Invalid bool
}

type pageData struct {
	Count        int
	MonthlyTotal string
	YearlyTotal  string
	DueSoonDays  int
	DueSoon      []string
	NothingDue   string
	Rows         []rowView
	Names        []string
	Skipped      int
	Unparsed     int
	Today        string
	Currency     string

	Notice string
	Error  string
	Form   draftForm
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"periodLabel": func(p string) string { return periodLabel(core.Period(p)) },
	}
}

func (s *Server) newPageData(sum core.Summary, snap core.Snapshot) pageData {
	data := pageData{
		Count:        sum.Count,
		MonthlyTotal: s.money.Format(sum.MonthlyTotal),
		YearlyTotal:  s.money.Format(sum.YearlyTotal),
		DueSoonDays:  s.ledger.DueSoonDays(),
		NothingDue:   report.NothingDue,
		Names:        snap.Names(),
		Skipped:      len(snap.Skipped),
		Unparsed:     sum.Unparsed,
		Today:        s.ledger.Today().String(),
		Currency:     s.money.Code,
		Form:         draftForm{Period: string(core.Monthly), NextDue: s.ledger.Today().String()},
	}
	for _, sub := range sum.DueSoon {
		data.DueSoon = append(data.DueSoon, report.DueSoonLine(sub, s.money))
	}
	for _, sub := range snap.Subscriptions {
		rv := rowView{
			Index:   sub.Index,
			Name:    sub.Name,
			Period:  periodLabel(sub.Period),
			NextDue: sub.NextDue.String(),
			Monthly: s.money.Format(core.MonthlyContribution(sub)),
		}
		if sub.PriceErr != nil {
			rv.Price = sub.RawPrice
			rv.Invalid = true
		} else {
			rv.Price = s.money.Format(sub.Price)
		}
		if rv.NextDue == "" {
			rv.NextDue = sub.RawDue
		}
		data.Rows = append(data.Rows, rv)
	}
	return data
}

// renderIndex re-reads the ledger and renders the dashboard. A failed read
// still renders the page with the error and an empty ledger.
func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, mutate func(*pageData)) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	var data pageData
	sum, snap, err := s.ledger.Summary(ctx)
	if err != nil {
		logFailure(r, applog.OpList, err)
		data = s.newPageData(core.Summary{}, core.Snapshot{})
		data.Error = userMessage(err)
		if status < http.StatusBadRequest {
			status = statusFor(err)
		}
	} else {
		data = s.newPageData(sum, snap)
	}
	if mutate != nil {
		mutate(&data)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldOperation, applog.OpRender,
			applog.FieldError, err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	notice := flashMessages[r.URL.Query().Get("flash")]
	s.renderIndex(w, r, http.StatusOK, func(d *pageData) {
		d.Notice = notice
	})
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, key string) {
	http.Redirect(w, r, "/?"+url.Values{"flash": {key}}.Encode(), http.StatusSeeOther)
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	form, draft, err := parseDraftForm(w, r)
	if err == nil {
		ctx, cancel := s.storeContext(r)
		_, err = s.ledger.Add(ctx, draft)
		cancel()
	}
	if err != nil {
		logFailure(r, applog.OpCreate, err)
		s.renderIndex(w, r, statusFor(err), func(d *pageData) {
			d.Error = userMessage(err)
			d.Form = form
		})
		return
	}
	redirectWithFlash(w, r, "added")
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.renderIndex(w, r, http.StatusBadRequest, func(d *pageData) {
			d.Error = userMessage(errBadRequest)
		})
		return
	}

	ctx, cancel := s.storeContext(r)
	err := s.ledger.Delete(ctx, sanitizeInput(r.PostForm.Get("name")))
	cancel()
	if err != nil {
		logFailure(r, applog.OpDelete, err)
		s.renderIndex(w, r, statusFor(err), func(d *pageData) {
			d.Error = userMessage(err)
		})
		return
	}
	redirectWithFlash(w, r, "deleted")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks templates and performs one store read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := http.StatusOK

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	if _, err := s.ledger.List(ctx); err != nil {
		checks["store"] = "failed: " + userMessage(err)
		status = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, apiError{Error: "Trop de requêtes, réessayez dans une minute."})
}

func (s *Server) summary(ctx context.Context) (report.JSONOutput, error) {
	sum, snap, err := s.ledger.Summary(ctx)
	if err != nil {
		return report.JSONOutput{}, err
	}
	return report.NewJSONOutput(snap, sum, s.ledger.Today(), s.ledger.DueSoonDays(), s.money.Code), nil
}

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	out, err := s.summary(ctx)
	if err != nil {
		logFailure(r, applog.OpList, err)
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	out, err := s.summary(ctx)
	if err != nil {
		logFailure(r, applog.OpRead, err)
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out.Summary)
}

func (s *Server) handleAPICreate(w http.ResponseWriter, r *http.Request) {
	draft, err := parseDraftJSON(w, r)
	if err != nil {
		logFailure(r, applog.OpCreate, err)
		writeAPIError(w, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	ref, err := s.ledger.Add(ctx, draft)
	if err != nil {
		logFailure(r, applog.OpCreate, err)
		writeAPIError(w, err)
		return
	}

	row := draft.ToRow()
	writeJSON(w, http.StatusCreated, map[string]string{
		"ref":      ref,
		"name":     row.Name,
		"price":    row.Price,
		"period":   row.Period,
		"next_due": row.NextDue,
	})
}

func (s *Server) handleAPIDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	if err := s.ledger.Delete(ctx, sanitizeInput(r.PathValue("name"))); err != nil {
		logFailure(r, applog.OpDelete, err)
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIDeleteAt(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r.PathValue("index"))
	if err != nil {
		writeAPIError(w, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	if err := s.ledger.DeleteAt(ctx, index); err != nil {
		logFailure(r, applog.OpDelete, err)
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
