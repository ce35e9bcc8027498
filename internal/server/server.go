package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/example/go-ctcdecode/internal/config"
	"github.com/example/go-ctcdecode/internal/decoder"
	"github.com/example/go-ctcdecode/internal/lm"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Decoder turns an emission matrix into ranked token hypotheses. Both
// decoder.GreedyDecoder and decoder.BeamSearchDecoder satisfy it.
type Decoder interface {
	Decode(emissions []float32, steps, vocab int) ([]decoder.DecoderOutput, error)
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxEmissionFloats int
	workers           int
	requestTimeout    time.Duration
	logger            *slog.Logger
}

func defaultOptions() options {
	return options{
		maxEmissionFloats: 8 << 20, // 8M float32s (~32MB)
		workers:           2,
		requestTimeout:    60 * time.Second,
		logger:            slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxEmissionFloats sets the maximum accepted emissions length for POST /decode.
func WithMaxEmissionFloats(n int) Option {
	return func(o *options) { o.maxEmissionFloats = n }
}

// WithWorkers sets the maximum number of concurrent decode calls.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request decode deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	dec  Decoder
	opts options
	sem  chan struct{} // semaphore for worker pool
	log  *slog.Logger

	decMu sync.Mutex // serializes Decode calls on the shared dec
}

// NewHandler returns an http.Handler that serves /health and POST /decode.
func NewHandler(dec Decoder, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		dec:  dec,
		opts: opts,
		log:  opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/decode", h.handleDecode)

	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}

	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

type decodeRequest struct {
	Emissions []float32 `json:"emissions"`
	Steps     int       `json:"steps"`
	Vocab     int       `json:"vocab"`
}

type decodeHypothesis struct {
	Tokens    []int32   `json:"tokens"`
	Timesteps []int     `json:"timesteps"`
	AMScores  []float32 `json:"am_scores"`
	LMScores  []float32 `json:"lm_scores"`
	Score     float32   `json:"score"`
}

type decodeResponse struct {
	Hypotheses []decodeHypothesis `json:"hypotheses"`
}

func (h *handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	var req decodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.Steps <= 0 || req.Vocab <= 0 {
		writeError(w, http.StatusBadRequest, "steps and vocab must be positive")
		return
	}

	if len(req.Emissions) != req.Steps*req.Vocab {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("emissions length %d does not match steps*vocab=%d", len(req.Emissions), req.Steps*req.Vocab))

		return
	}

	if len(req.Emissions) > h.opts.maxEmissionFloats {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("emissions exceed maximum size of %d floats", h.opts.maxEmissionFloats))

		return
	}

	if !h.acquireWorker(r.Context(), w) {
		return
	}

	if h.sem != nil {
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	outputs, err := h.decodeCtx(ctx, req)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.log.WarnContext(r.Context(), "decode timed out",
				slog.Int("steps", req.Steps),
				slog.Int("vocab", req.Vocab),
				slog.Int64("duration_ms", durationMS),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusGatewayTimeout, "decode timed out")

			return
		}

		h.log.ErrorContext(r.Context(), "decode failed",
			slog.Int("steps", req.Steps),
			slog.Int("vocab", req.Vocab),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	h.log.InfoContext(r.Context(), "decode complete",
		slog.Int("steps", req.Steps),
		slog.Int("vocab", req.Vocab),
		slog.Int64("duration_ms", durationMS),
		slog.Int("hypotheses", len(outputs)),
	)

	resp := decodeResponse{Hypotheses: make([]decodeHypothesis, len(outputs))}
	for i, o := range outputs {
		resp.Hypotheses[i] = decodeHypothesis{
			Tokens:    o.Tokens,
			Timesteps: o.Timesteps,
			AMScores:  o.AMScores,
			LMScores:  o.LMScores,
			Score:     o.Score,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeCtx runs the decoder on a goroutine so a context deadline can abort
// the HTTP response even though decoder.Decoder itself takes no context.
func (h *handler) decodeCtx(ctx context.Context, req decodeRequest) ([]decoder.DecoderOutput, error) {
	type result struct {
		outputs []decoder.DecoderOutput
		err     error
	}

	resCh := make(chan result, 1)

	go func() {
		h.decMu.Lock()
		outputs, err := h.dec.Decode(req.Emissions, req.Steps, req.Vocab)
		h.decMu.Unlock()
		resCh <- result{outputs, err}
	}()

	select {
	case res := <-resCh:
		return res.outputs, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// acquireWorker tries to acquire a worker slot from the semaphore.
// Returns true on success. On failure (context cancelled) it writes an HTTP
// error and returns false. When sem is nil (no throttling) it returns true
// immediately.
func (h *handler) acquireWorker(ctx context.Context, w http.ResponseWriter) bool {
	if h.sem == nil {
		return true
	}

	select {
	case h.sem <- struct{}{}:
		return true
	default:
		h.log.Info("request queued for worker slot")

		select {
		case h.sem <- struct{}{}:
			return true
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return false
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Warn("encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server — wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	dec             Decoder
	shutdownTimeout time.Duration
}

// New returns a Server that decodes requests with dec. If dec is nil, Start
// constructs a greedy or null-LM beam-search decoder from cfg.Decoder,
// according to cfg.Decoder.Backend.
func New(cfg config.Config, dec Decoder) *Server {
	return &Server{
		cfg:             cfg,
		dec:             dec,
		shutdownTimeout: 30 * time.Second,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) Start(ctx context.Context) error {
	dec, err := s.resolveDecoder()
	if err != nil {
		return err
	}

	workers := s.cfg.Server.Workers
	if workers <= 0 {
		workers = 2
	}

	h := NewHandler(dec,
		WithWorkers(workers),
		WithMaxEmissionFloats(s.cfg.Server.MaxEmissionFloats),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		if err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}

	return nil
}

// resolveDecoder builds a decoder from cfg.Decoder when the caller did not
// supply one. The HTTP path always fuses the null LM; n-gram fusion is only
// wired through the decode/bench CLI commands, which build their own
// decoder.BeamSearchDecoder[fslm.StateId].
func (s *Server) resolveDecoder() (Decoder, error) {
	if s.dec != nil {
		return s.dec, nil
	}

	dc := s.cfg.Decoder
	if dc.BlankID < 0 {
		return nil, errors.New("decoder.blank_id must be configured")
	}

	switch strings.ToLower(dc.Backend) {
	case config.DecoderBackendGreedy:
		return decoder.NewGreedyDecoder(int32(dc.BlankID)), nil
	case config.DecoderBackendBeamSearch, "":
		opts := decoder.BeamSearchDecoderOptions{
			BeamSize:      dc.BeamSize,
			BeamSizeToken: dc.BeamSizeToken,
			BeamThreshold: float32(dc.BeamThreshold),
			LMWeight:      float32(dc.LMWeight),
		}

		return decoder.NewBeamSearchDecoder[lm.ZeroState](opts, int32(dc.BlankID), lm.ZeroLM{}), nil
	default:
		return nil, fmt.Errorf("unsupported decoder backend %q", dc.Backend)
	}
}
