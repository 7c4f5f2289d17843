package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"abonnements/internal/core"
	applog "abonnements/internal/log"
	"abonnements/internal/middleware/ratelimit"
	"abonnements/internal/middleware/security"
	"abonnements/internal/middleware/trace"
	"abonnements/internal/services"
	appweb "abonnements/web"
)

// DefaultStoreTimeout bounds every store round trip made by a handler.
const DefaultStoreTimeout = 7 * time.Second

// Options tunes a Server. Zero values select the defaults.
type Options struct {
	Money             core.Money
	StoreTimeout      time.Duration
	RequestsPerMinute int
	Logger            *applog.Logger
}

type Server struct {
	http.Server
	templates    *template.Template
	ledger       *services.Ledger
	money        core.Money
	storeTimeout time.Duration

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, templates and middleware, returning a
// ready-to-run http.Server. Every request reads the store through ledger.
func NewServer(addr string, ledger *services.Ledger, opts Options) *Server {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	if opts.Money.Code == "" {
		opts.Money = core.NewMoney("EUR", "fr-FR")
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	detector := security.NewDetector()
	s := &Server{
		ledger:       ledger,
		money:        opts.Money,
		storeTimeout: opts.StoreTimeout,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		detector:     detector,
		tracer:       trace.NewMiddleware(detector.ExtractClientIP),
		started:      time.Now(),
	}

	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /subscriptions", s.handleCreateForm)
	mux.HandleFunc("POST /subscriptions/delete", s.handleDeleteForm)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/subscriptions", s.handleAPIList)
	mux.HandleFunc("GET /api/summary", s.handleAPISummary)
	mux.HandleFunc("POST /api/subscriptions", s.handleAPICreate)
	mux.HandleFunc("DELETE /api/subscriptions/{name}", s.handleAPIDelete)
	mux.HandleFunc("DELETE /api/rows/{index}", s.handleAPIDeleteAt)

	var h http.Handler = mux
	h = applog.Middleware(opts.Logger)(h)
	h = s.limiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)(h)
	h = security.NoStore(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      opts.StoreTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// storeContext derives the per-call deadline for one store operation.
func (s *Server) storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.storeTimeout)
}

// Shutdown stops the background limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
