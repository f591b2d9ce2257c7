// Package api exposes the capacity controller over HTTP: attestation
// submission, the read surface, id export and signed admin envelopes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"ReserveGate/internal/attestation"
	"ReserveGate/internal/audit"
	"ReserveGate/internal/capacity"
	"ReserveGate/internal/logger"
	"ReserveGate/internal/quorum"
	"ReserveGate/internal/replay"
	"ReserveGate/internal/roles"
	"ReserveGate/internal/storage"
)

const (
	// maxBodySize is the maximum request body size in bytes.
	maxBodySize = 4 << 20 // 4 MB, room for migration snapshots

	// envelopeCacheSize bounds the admin envelope replay cache.
	envelopeCacheSize = 4096

	// maxEventsLimit caps GET /events.
	maxEventsLimit = 1000
)

// Controller is the capacity controller surface served over HTTP.
type Controller interface {
	ProcessAttestation(ctx context.Context, att *attestation.Attestation, sigs []quorum.Signature) (*big.Int, error)
	Status(ctx context.Context) (*capacity.Status, error)
	IsAttestationUsed(id attestation.Hash) (bool, error)
	ExportUsed() ([]byte, error)
	HasRole(role roles.Role, account common.Address) bool

	SetDailyLimit(ctx context.Context, caller common.Address, limit *big.Int) error
	SetCollateralRatio(ctx context.Context, caller common.Address, ratioBps uint32) (*big.Int, error)
	SetThreshold(ctx context.Context, caller common.Address, threshold uint32) error
	GrantRole(ctx context.Context, caller common.Address, role roles.Role, account common.Address) error
	RevokeRole(ctx context.Context, caller common.Address, role roles.Role, account common.Address) error
	MigrateAttestations(ctx context.Context, caller common.Address, ids []attestation.Hash, predecessor replay.Lookup) (int, error)
	Pause(ctx context.Context, caller common.Address) error
	RequestUnpause(ctx context.Context, caller common.Address) error
	ExecuteUnpause(ctx context.Context, caller common.Address) error
	EmergencyReduceCap(ctx context.Context, caller common.Address, newCap *big.Int, reason string) (*big.Int, error)
}

// EventReader lists recent events, newest first.
type EventReader interface {
	Recent(ctx context.Context, kind audit.Kind, limit int) ([]audit.Event, error)
}

// envelopeKey identifies an executed envelope. The signer is part of the key
// because the digest does not cover it.
type envelopeKey struct {
	digest [32]byte
	caller common.Address
}

// Server is the HTTP API server.
type Server struct {
	addr      string                            // addr is the HTTP listen address
	ctrl      Controller                        // ctrl executes every request
	events    EventReader                       // events serves GET /events; nil disables it
	domain    attestation.Domain                // domain binds admin envelopes to this deployment
	clock     func() time.Time                  // clock checks envelope freshness
	envelopes *lru.Cache[envelopeKey, struct{}] // envelopes holds recently executed envelopes
	seen      *storage.Storage                  // seen persists executed envelopes; nil keeps them in memory only
	server    *http.Server                      // server is the underlying HTTP server
}

// New creates a server. events may be nil.
func New(addr string, ctrl Controller, events EventReader, domain attestation.Domain) *Server {
	envelopes, _ := lru.New[envelopeKey, struct{}](envelopeCacheSize)

	return &Server{
		addr:      addr,
		ctrl:      ctrl,
		events:    events,
		domain:    domain,
		clock:     time.Now,
		envelopes: envelopes,
	}
}

// SetClock replaces the clock used for envelope freshness.
func (s *Server) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /attestations", s.handleSubmit)
	mux.HandleFunc("GET /attestations/{id}", s.handleUsed)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /export", s.handleExport)
	mux.HandleFunc("POST /admin", s.handleAdmin)

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s:\n%w", s.addr, err)
	}

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("http api started", "addr", ln.Addr().String())
		errc <- s.server.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server:\n%w", err)

	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// handleSubmit handles POST /attestations.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !readJSON(w, r, &req) {
		return
	}

	att, err := attestation.FromWire(req.Attestation)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid attestation: %v", err))
		return
	}

	sigs, err := parseSignatures(req.Signatures)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid signatures: %v", err))
		return
	}

	capacityAfter, err := s.ctrl.ProcessAttestation(r.Context(), att, sigs)
	if err != nil {
		writeClassified(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SubmitResponse{
		ID:       att.ID.String(),
		Capacity: capacityAfter.String(),
	})
}

// handleUsed handles GET /attestations/{id}.
func (s *Server) handleUsed(w http.ResponseWriter, r *http.Request) {
	id, err := attestation.ParseHash(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid id: %v", err))
		return
	}

	used, err := s.ctrl.IsAttestationUsed(id)
	if err != nil {
		writeClassified(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UsedResponse{ID: id.String(), Used: used})
}

// handleStatus handles GET /status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.Status(r.Context())
	if err != nil {
		writeClassified(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusToWire(st))
}

// handleHealth handles GET /health. The process is live when it answers;
// healthy reports collateralization.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.Status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"healthy":        st.Healthy,
		"healthRatioBps": st.HealthRatioBps.String(),
		"paused":         st.Paused,
	})
}

// handleEvents handles GET /events?kind=&limit=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event journal not available")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxEventsLimit)
	}

	events, err := s.events.Recent(r.Context(), audit.Kind(r.URL.Query().Get("kind")), limit)
	if err != nil {
		logger.Error("read events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	if events == nil {
		events = []audit.Event{}
	}

	writeJSON(w, http.StatusOK, EventsResponse{Events: events})
}

// handleExport handles GET /export: the compressed used-id snapshot.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.ctrl.ExportUsed()
	if err != nil {
		writeClassified(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// readJSON decodes a size-limited JSON body, writing 400 on failure.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return false
	}

	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return false
	}

	return true
}

// StatusFor maps a controller error class to an HTTP status.
func StatusFor(class capacity.Class) int {
	switch class {
	case capacity.ClassValidation:
		return http.StatusBadRequest
	case capacity.ClassAuthorization:
		return http.StatusForbidden
	case capacity.ClassReplay:
		return http.StatusConflict
	case capacity.ClassRateLimit:
		return http.StatusTooManyRequests
	case capacity.ClassLifecycle:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// writeClassified writes a controller error with the status of its class.
func writeClassified(w http.ResponseWriter, err error) {
	class := capacity.ClassOf(err)
	status := StatusFor(class)

	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Class: class.String()})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
