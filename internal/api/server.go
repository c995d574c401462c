package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"eve-hubcompare/internal/catalog"
	"eve-hubcompare/internal/config"
	"eve-hubcompare/internal/engine"
	"eve-hubcompare/internal/logger"
	"eve-hubcompare/internal/market"
	"eve-hubcompare/internal/metrics"
	"eve-hubcompare/internal/refresh"
)

// Core is the part of the refresh coordinator the HTTP layer needs.
type Core interface {
	Read() (market.Snapshot, time.Duration, bool)
	Refresh(ctx context.Context, clientID string, force bool) refresh.Result
	RefreshInBackground(ctx context.Context, clientID string, force bool) refresh.Result
	Status() refresh.Status
	Clear() error
}

// Server is the HTTP API over the snapshot cache and trade simulator.
type Server struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	core    Core
	router  *chi.Mux
}

// NewServer creates a Server with the given config, catalog and coordinator.
func NewServer(cfg *config.Config, cat *catalog.Catalog, core Core) *Server {
	s := &Server{cfg: cfg, catalog: cat, core: core, router: chi.NewRouter()}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	s.router.Use(loggingMiddleware)
	s.router.Use(corsMiddleware)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", s.handleSnapshot)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/status", s.handleStatus)
		r.Post("/cache/clear", s.handleClear)
		r.Get("/trades", s.handleTrades)
		r.Get("/no-undock", s.handleNoUndock)
		r.Get("/fees", s.handleFees)
		r.Get("/off-hub", s.handleOffHub)
	})
	s.router.Handle("/metrics", metrics.Handler())
	return s
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.With("API", logger.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).Round(time.Microsecond).String(),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func ageSeconds(age time.Duration, ok bool) *float64 {
	if !ok {
		return nil
	}
	s := age.Seconds()
	return &s
}

// clientID identifies the caller for refresh throttling: an explicit
// X-Client-ID header, else the remote IP.
func clientID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Client-ID")); id != "" {
		if len(id) > 64 {
			id = id[:64]
		}
		return "id:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

// GET /api/snapshot
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, age, ok := s.core.Read()
	writeJSON(w, map[string]interface{}{
		"snapshot":          snap,
		"cache_age_seconds": ageSeconds(age, ok),
		"ready":             snap.Ready(),
	})
}

// POST /api/refresh?background=1&force=1
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id := clientID(r)
	force := queryBool(r, "force")
	var res refresh.Result
	if queryBool(r, "background") {
		res = s.core.RefreshInBackground(r.Context(), id, force)
	} else {
		res = s.core.Refresh(r.Context(), id, force)
	}
	writeJSON(w, res)
}

// GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.core.Status())
}

// POST /api/cache/clear (Authorization: Bearer <admin token>)
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	want := s.cfg.Server.AdminToken
	if want == "" {
		writeError(w, http.StatusForbidden, "cache clearing is disabled")
		return
	}
	got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.core.Clear(); err != nil {
		logger.Error("API", fmt.Sprintf("clear cache: %v", err))
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	writeJSON(w, map[string]bool{"cleared": true})
}

// simParams builds simulator parameters from configured defaults overridden
// by query values.
func (s *Server) simParams(r *http.Request) (engine.SimParams, error) {
	t := s.cfg.Trading
	q := r.URL.Query()
	p := engine.SimParams{
		BuyMode:       engine.Mode(t.BuyMode),
		SellMode:      engine.Mode(t.SellMode),
		AllowedHubs:   t.AllowedHubs,
		Fees:          engine.FeeTables(t, s.catalog),
		MinMarginPct:  t.MinMarginPercent,
		QuantityLimit: t.QuantityLimit,
	}
	if v := q.Get("buy"); v != "" {
		p.BuyMode = engine.Mode(v)
	}
	if v := q.Get("sell"); v != "" {
		p.SellMode = engine.Mode(v)
	}
	for _, m := range []engine.Mode{p.BuyMode, p.SellMode} {
		if m != engine.ModeBuy && m != engine.ModeSell {
			return p, fmt.Errorf("invalid mode %q", m)
		}
	}
	if v := q.Get("hubs"); v != "" {
		p.AllowedHubs = nil
		for _, name := range strings.Split(v, ",") {
			h, ok := s.catalog.Hub(strings.TrimSpace(name))
			if !ok {
				return p, fmt.Errorf("unknown hub %q", name)
			}
			p.AllowedHubs = append(p.AllowedHubs, h.Name)
		}
	}
	if v := q.Get("min_margin"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("invalid min_margin: %w", err)
		}
		p.MinMarginPct = f
	}
	if v := q.Get("qty"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return p, fmt.Errorf("invalid qty %q", v)
		}
		p.QuantityLimit = n
	}
	return p, nil
}

// GET /api/trades?buy=&sell=&hubs=&min_margin=&qty=
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	p, err := s.simParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, age, ok := s.core.Read()
	writeJSON(w, map[string]interface{}{
		"opportunities":     engine.ScanOpportunities(snap, s.catalog, p),
		"buy_mode":          p.BuyMode,
		"sell_mode":         p.SellMode,
		"min_margin":        p.MinMarginPct,
		"cache_age_seconds": ageSeconds(age, ok),
	})
}

// GET /api/no-undock
func (s *Server) handleNoUndock(w http.ResponseWriter, r *http.Request) {
	snap, age, ok := s.core.Read()
	fees := engine.FeeTables(s.cfg.Trading, s.catalog)
	writeJSON(w, map[string]interface{}{
		"hubs":              s.catalog.HubNames(),
		"rows":              engine.NoUndockTable(snap, s.catalog, fees),
		"cache_age_seconds": ageSeconds(age, ok),
	})
}

// GET /api/fees
func (s *Server) handleFees(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, engine.FeeTables(s.cfg.Trading, s.catalog))
}

// queryAmount parses a non-negative decimal, accepting a comma separator.
func queryAmount(r *http.Request, key string) (float64, bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
	if err != nil || f < 0 {
		return 0, true, fmt.Errorf("invalid %s %q", key, v)
	}
	return f, true, nil
}

// GET /api/off-hub?buy=&sell=&fee=&tax=&buy_fee=&sell_fee=&sell_tax=
// fee and tax are percentages.
func (s *Server) handleOffHub(w http.ResponseWriter, r *http.Request) {
	vals := make(map[string]float64, 4)
	for _, key := range []string{"buy", "sell", "fee", "tax"} {
		f, set, err := queryAmount(r, key)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !set && (key == "buy" || key == "sell") {
			writeError(w, http.StatusBadRequest, key+" is required")
			return
		}
		vals[key] = f
	}
	var margin *float64
	if m, ok := engine.OffHubMargin(vals["buy"], vals["sell"], vals["fee"]/100, vals["tax"]/100,
		queryBool(r, "buy_fee"), queryBool(r, "sell_fee"), queryBool(r, "sell_tax")); ok {
		margin = &m
	}
	writeJSON(w, map[string]interface{}{
		"margin_pct": margin,
		"quantity":   engine.OffHubQuantity,
	})
}
