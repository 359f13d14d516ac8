package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kunal-drall/powergrid-network/pkg/governance"
	"github.com/kunal-drall/powergrid-network/pkg/token"
)

// Server exposes the governance engine over HTTP.
type Server struct {
	governance *governance.Service
	tokens     *token.System
	port       int
	router     *mux.Router
	server     *http.Server
	log        *zap.Logger
}

// NewServer creates a new API server.
func NewServer(gov *governance.Service, tokens *token.System, port int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		governance: gov,
		tokens:     tokens,
		port:       port,
		log:        log,
	}
	s.setupRoutes()
	return s
}

// enableCORS enables CORS for all routes
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestID tags every request with an id for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		s.log.Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.Use(enableCORS)
	s.router.Use(s.requestID)

	// Proposal routes
	s.router.HandleFunc("/api/proposals", s.createProposal).Methods("POST")
	s.router.HandleFunc("/api/proposals", s.listProposals).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}", s.getProposal).Methods("GET")
	s.router.HandleFunc("/api/proposals/{id}/vote", s.castVote).Methods("POST")
	s.router.HandleFunc("/api/proposals/{id}/queue", s.queueProposal).Methods("POST")
	s.router.HandleFunc("/api/proposals/{id}/execute", s.executeProposal).Methods("POST")
	s.router.HandleFunc("/api/proposals/{id}/votes/{voter}", s.getVote).Methods("GET")

	// Parameter routes
	s.router.HandleFunc("/api/params", s.getParams).Methods("GET")
	s.router.HandleFunc("/api/params", s.setParams).Methods("POST")

	// Treasury routes
	s.router.HandleFunc("/api/treasury", s.getTreasury).Methods("GET")
	s.router.HandleFunc("/api/treasury/deposit", s.depositToTreasury).Methods("POST")

	// Admin routes
	s.router.HandleFunc("/api/admin/pause", s.pause).Methods("POST")
	s.router.HandleFunc("/api/admin/unpause", s.unpause).Methods("POST")
	s.router.HandleFunc("/api/admin/guardians", s.listGuardians).Methods("GET")
	s.router.HandleFunc("/api/admin/guardians", s.addGuardian).Methods("POST")
	s.router.HandleFunc("/api/admin/guardians/{address}", s.removeGuardian).Methods("DELETE")

	// Health check
	s.router.HandleFunc("/api/health", s.getHealthCheck).Methods("GET")
}

// Router returns the configured router, mainly for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	s.log.Info("api server listening", zap.Int("port", s.port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps governance errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, governance.ErrProposalNotFound):
		return http.StatusNotFound
	case errors.Is(err, governance.ErrUnauthorized),
		errors.Is(err, governance.ErrPaused):
		return http.StatusForbidden
	case errors.Is(err, governance.ErrAlreadyVoted),
		errors.Is(err, governance.ErrAlreadyExecuted),
		errors.Is(err, governance.ErrVotingClosed),
		errors.Is(err, governance.ErrVotingNotEnded),
		errors.Is(err, governance.ErrNotQueued),
		errors.Is(err, governance.ErrTimelockNotElapsed),
		errors.Is(err, governance.ErrExecutionFailed):
		return http.StatusConflict
	case errors.Is(err, governance.ErrInvalidParameter),
		errors.Is(err, governance.ErrInsufficientVotingPower),
		errors.Is(err, governance.ErrZeroVotingPower),
		errors.Is(err, governance.ErrInsufficientBalance):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func proposalID(r *http.Request) (uint64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: proposal id %q", governance.ErrInvalidParameter, raw)
	}
	return id, nil
}

type proposalView struct {
	*governance.Proposal
	Status governance.ProposalStatus `json:"status"`
}

func (s *Server) view(p *governance.Proposal) proposalView {
	status, err := s.governance.StatusOf(p)
	if err != nil {
		status = ""
	}
	return proposalView{Proposal: p, Status: status}
}

func (s *Server) createProposal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller      string                  `json:"caller"`
		Kind        governance.ProposalKind `json:"kind"`
		Description string                  `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request payload", governance.ErrInvalidParameter))
		return
	}

	id, err := s.governance.CreateProposal(req.Caller, req.Kind, req.Description)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{"proposal_id": id})
}

func (s *Server) listProposals(w http.ResponseWriter, r *http.Request) {
	var proposals []*governance.Proposal
	var err error
	if r.URL.Query().Get("executable") == "true" {
		proposals, err = s.governance.ListExecutableProposals()
	} else {
		proposals, err = s.governance.ListProposals(r.URL.Query().Get("active") == "true")
	}
	if err != nil {
		respondError(w, err)
		return
	}
	views := make([]proposalView, 0, len(proposals))
	for _, p := range proposals {
		views = append(views, s.view(p))
	}
	respondJSON(w, http.StatusOK, views)
}

func (s *Server) getProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	proposal, err := s.governance.GetProposal(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.view(proposal))
}

func (s *Server) castVote(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req struct {
		Caller  string `json:"caller"`
		Support bool   `json:"support"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request payload", governance.ErrInvalidParameter))
		return
	}
	if err := s.governance.Vote(req.Caller, id, req.Support, req.Reason); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "vote recorded"})
}

func (s *Server) queueProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request payload", governance.ErrInvalidParameter))
		return
	}
	queuedAt, err := s.governance.QueueProposal(req.Caller, id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"queued_at": queuedAt,
		"ready_at":  governance.ReadyAt(queuedAt, s.governance.Params().TimelockSeconds),
	})
}

func (s *Server) executeProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request payload", governance.ErrInvalidParameter))
		return
	}
	if err := s.governance.ExecuteProposal(req.Caller, id); err != nil {
		respondError(w, err)
		return
	}
	proposal, err := s.governance.GetProposal(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.view(proposal))
}

func (s *Server) getVote(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	voter := mux.Vars(r)["voter"]
	vote, err := s.governance.GetVote(id, voter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"has_voted": vote != nil,
		"vote":      vote,
	})
}

func (s *Server) getParams(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.governance.Params())
}

func (s *Server) setParams(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string            `json:"caller"`
		Params governance.Params `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request payload", governance.ErrInvalidParameter))
		return
	}
	if err := s.governance.SetParams(req.Caller, req.Params); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.governance.Params())
}

func (s *Server) getTreasury(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]uint64{"balance": s.tokens.Balance()})
}

func (s *Server) depositToTreasury(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request payload", governance.ErrInvalidParameter))
		return
	}
	if err := s.tokens.DepositToTreasury(req.Caller, req.Amount); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]uint64{"balance": s.tokens.Balance()})
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request payload", governance.ErrInvalidParameter))
		return
	}
	if err := s.governance.EmergencyPause(req.Caller); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "system paused"})
}

func (s *Server) unpause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request payload", governance.ErrInvalidParameter))
		return
	}
	if err := s.governance.EmergencyUnpause(req.Caller); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "system unpaused"})
}

func (s *Server) listGuardians(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"owner":     s.governance.Access().Owner(),
		"guardians": s.governance.Access().Guardians(),
	})
}

func (s *Server) addGuardian(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller   string `json:"caller"`
		Guardian string `json:"guardian"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request payload", governance.ErrInvalidParameter))
		return
	}
	if err := s.governance.AddGuardian(req.Caller, req.Guardian); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "guardian added"})
}

func (s *Server) removeGuardian(w http.ResponseWriter, r *http.Request) {
	guardian := mux.Vars(r)["address"]
	var req struct {
		Caller string `json:"caller"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request payload", governance.ErrInvalidParameter))
		return
	}
	if err := s.governance.RemoveGuardian(req.Caller, guardian); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "guardian removed"})
}

func (s *Server) getHealthCheck(w http.ResponseWriter, r *http.Request) {
	count, err := s.governance.ProposalCount()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"paused":         s.governance.Access().Paused(),
		"proposal_count": count,
	})
}
