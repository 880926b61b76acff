// Package health serves liveness and readiness probes.
//
// GET /healthz (alias /health) answers 200 while the process serves HTTP.
// GET /readyz runs every [Checker] concurrently and answers 503 when a
// required one fails. Failing optional checkers report "degraded" with 200.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds each readiness check.
const DefaultTimeout = 5 * time.Second

// Report statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// Checker probes one dependency. Check must honour ctx.
type Checker struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool // failure degrades instead of failing readiness
}

// Pinger is implemented by the knowledge stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker requires the knowledge store to answer a ping.
func StoreChecker(p Pinger) Checker {
	return Checker{Name: "store", Check: p.Ping}
}

// Embedder embeds one text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingsChecker embeds a probe text. It is optional: search falls back
// to substring matching without embeddings.
func EmbeddingsChecker(e Embedder) Checker {
	return Checker{Name: "embeddings", Optional: true, Check: func(ctx context.Context) error {
		vec, err := e.Embed(ctx, "health")
		if err == nil && len(vec) == 0 {
			err = errors.New("empty embedding")
		}
		return err
	}}
}

// Report is the JSON body of both probes.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probes. The checker list is fixed by [New].
type Handler struct {
	checkers []Checker
	timeout  time.Duration
}

// New returns a Handler evaluating checkers on every readiness request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...), timeout: DefaultTimeout}
}

// Register mounts the probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /health", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, Report{Status: StatusOK})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Evaluate(r.Context())
	code := http.StatusOK
	if rep.Status == StatusFail {
		code = http.StatusServiceUnavailable
	}
	writeReport(w, code, rep)
}

// Evaluate runs all checkers in parallel, each under its own timeout.
func (h *Handler) Evaluate(ctx context.Context) Report {
	errs := make([]error, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Go(func() {
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			errs[i] = c.Check(cctx)
		})
	}
	wg.Wait()

	rep := Report{Status: StatusOK, Checks: make(map[string]string, len(h.checkers))}
	for i, c := range h.checkers {
		switch err := errs[i]; {
		case err == nil:
			rep.Checks[c.Name] = StatusOK
		case c.Optional:
			rep.Checks[c.Name] = StatusDegraded + ": " + err.Error()
			if rep.Status == StatusOK {
				rep.Status = StatusDegraded
			}
		default:
			rep.Checks[c.Name] = StatusFail + ": " + err.Error()
			rep.Status = StatusFail
		}
	}
	return rep
}

func writeReport(w http.ResponseWriter, code int, rep Report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}
