package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"chainbal/internal/application"
	"chainbal/internal/domain"
	"chainbal/internal/fault"

	"golang.org/x/time/rate"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type ServerConfig struct {
	// RateLimit is requests per second across all query routes; 0 disables it.
	RateLimit float64
}

type Server struct {
	cfg       ServerConfig
	reader    application.SnapshotReader
	history   application.HistoryStore
	metrics   *Metrics
	limiter   *rate.Limiter
	buildInfo BuildInfo
}

// NewServer builds the HTTP API. history may be nil, in which case /history
// answers 404.
func NewServer(cfg ServerConfig, reader application.SnapshotReader, history application.HistoryStore, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if reader == nil {
		return nil, errors.New("snapshot reader is required")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}
	return &Server{cfg: cfg, reader: reader, history: history, metrics: metrics, limiter: limiter, buildInfo: buildInfo}, nil
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /head", s.limit(s.handleHead))
	mux.HandleFunc("GET /balances", s.limit(s.handleBalances))
	mux.HandleFunc("GET /history", s.limit(s.handleHistory))
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /version", s.handleVersion)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.metrics.IncRateLimited()
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.history != nil {
		if err := s.history.Ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "db not ready")
			return
		}
	}
	head, err := s.reader.ChainHead(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "rpc not ready")
		return
	}
	s.metrics.OnHead(head)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	head, err := s.reader.ChainHead(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	s.metrics.OnHead(head)
	respondJSON(w, http.StatusOK, head)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		respondError(w, http.StatusBadRequest, "address is required")
		return
	}
	snapshot, err := s.reader.Balances(r.Context(), address)
	if err != nil {
		respondFault(w, err)
		return
	}
	s.metrics.ObservePrice(snapshot.Price.Available)
	respondJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusNotFound, "history is not enabled")
		return
	}
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		respondError(w, http.StatusBadRequest, "address is required")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.history.BalanceHistory(r.Context(), address, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if records == nil {
		records = []domain.BalanceRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeMetrics(w, s.metrics.Snapshot())
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	// the watcher records one head per poll
	if head, ok, err := s.history.LatestHead(ctx); err == nil && ok {
		writeRecordedHead(w, head)
	}
}

func writeRecordedHead(w io.Writer, head domain.ChainHead) {
	fmt.Fprintf(w, "chainbal_recorded_best_block %d\n", head.BestNumber)
	fmt.Fprintf(w, "chainbal_recorded_finalized_block %d\n", head.FinalizedNumber)
	fmt.Fprintf(w, "chainbal_recorded_head_timestamp_seconds %d\n", head.ObservedAt.Unix())
}

func writeMetrics(w io.Writer, snap Snapshot) {
	fmt.Fprintf(w, "chainbal_uptime_seconds %.0f\n", time.Since(snap.StartTime).Seconds())
	fmt.Fprintf(w, "chainbal_best_block %d\n", snap.BestBlock)
	fmt.Fprintf(w, "chainbal_finalized_block %d\n", snap.FinalizedBlock)
	lag := uint64(0)
	if snap.BestBlock >= snap.FinalizedBlock {
		lag = snap.BestBlock - snap.FinalizedBlock
	}
	fmt.Fprintf(w, "chainbal_finality_lag_blocks %d\n", lag)
	// only a process that polls itself has poll series
	if !snap.LastPoll.IsZero() {
		fmt.Fprintf(w, "chainbal_last_poll_timestamp_seconds %d\n", snap.LastPoll.Unix())
		fmt.Fprintf(w, "chainbal_last_poll_changed %d\n", snap.LastPollChanged)
		fmt.Fprintf(w, "chainbal_last_poll_failed %d\n", snap.LastPollFailed)
	}
	for _, method := range sortedKeys(snap.RPCCalls) {
		fmt.Fprintf(w, "chainbal_rpc_calls_total{method=%q} %d\n", method, snap.RPCCalls[method])
		fmt.Fprintf(w, "chainbal_rpc_seconds_total{method=%q} %.6f\n", method, snap.RPCSeconds[method])
	}
	for _, kind := range sortedKeys(snap.RPCErrors) {
		fmt.Fprintf(w, "chainbal_rpc_errors_total{kind=%q} %d\n", kind, snap.RPCErrors[kind])
	}
	for _, kind := range sortedKeys(snap.CacheHits) {
		fmt.Fprintf(w, "chainbal_cache_hits_total{kind=%q} %d\n", kind, snap.CacheHits[kind])
	}
	for _, kind := range sortedKeys(snap.CacheMisses) {
		fmt.Fprintf(w, "chainbal_cache_misses_total{kind=%q} %d\n", kind, snap.CacheMisses[kind])
	}
	fmt.Fprintf(w, "chainbal_price_unavailable_total %d\n", snap.PriceUnavailable)
	fmt.Fprintf(w, "chainbal_rate_limited_total %d\n", snap.RateLimited)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return application.DefaultHistoryLimit, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New("invalid limit")
	}
	return value, nil
}

// statusFor maps an error kind to the status the client sees.
func statusFor(err error) int {
	switch fault.Kind(err) {
	case "address":
		return http.StatusBadRequest
	case "transport", "rpc", "decode":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondFault(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	respondJSON(w, status, map[string]string{"error": message, "kind": fault.Kind(err)})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
