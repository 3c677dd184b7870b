package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	pollengine "pollcast/contexts/live-polls/poll-engine"
	pollsdomainerrors "pollcast/contexts/live-polls/poll-engine/domain/errors"
	pollshttp "pollcast/contexts/live-polls/poll-engine/transport/http"

	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger"
	_ "pollcast/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	polls  pollengine.Module
}

func New(polls pollengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		polls:  polls,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/polls", s.handleCreatePoll)
	s.mux.HandleFunc("GET /v1/polls", s.handleListOpenPolls)
	s.mux.HandleFunc("POST /v1/polls/{poll_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /v1/polls/{poll_id}/results", s.handlePollResults)
	s.mux.HandleFunc("GET /v1/leaderboard", s.handleLeaderboard)
	s.mux.HandleFunc("GET /v1/leaderboard/stream", s.handleLeaderboardStream)
	s.mux.HandleFunc("DELETE /v1/admin/polls/{poll_id}", s.handleDeletePoll)
}

func (s *Server) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var req pollshttp.CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePollsError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.polls.Handler.SubmitPollHandler(r.Context(), req)
	if err != nil {
		writePollsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req pollshttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePollsError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	pollID := r.PathValue("poll_id")
	resp, err := s.polls.Handler.SubmitVoteHandler(r.Context(), pollID, req)
	if err != nil {
		writePollsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handlePollResults(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("poll_id")
	resp, err := s.polls.Handler.PollResultsHandler(r.Context(), pollID)
	if err != nil {
		writePollsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListOpenPolls(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polls.Handler.OpenPollsHandler(r.Context())
	if err != nil {
		writePollsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polls.Handler.LeaderboardHandler(r.Context())
	if err != nil {
		writePollsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeletePoll(w http.ResponseWriter, r *http.Request) {
	if err := s.polls.Handler.DeletePollHandler(r.Context(), r.PathValue("poll_id")); err != nil {
		writePollsDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLeaderboardStream registers the request as a leaderboard observer.
// The observer receives the current snapshot immediately and every refreshed
// snapshot after that, until the client disconnects.
func (s *Server) handleLeaderboardStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writePollsError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	snapshot, err := s.polls.Leaderboard.Current(r.Context())
	if err != nil {
		writePollsDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	conn := &sseConn{id: uuid.NewString(), writer: w, flusher: flusher}
	s.polls.Hub.Register(r.Context(), conn, snapshot)

	<-r.Context().Done()
	conn.close()
	s.polls.Hub.Unregister(conn.id)
}

// sseConn adapts one server-sent-events response to the observer port.
type sseConn struct {
	id      string
	writer  http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	closed bool
}

func (c *sseConn) ID() string { return c.id }

func (c *sseConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *sseConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("observer connection closed")
	}
	if _, err := c.writer.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := c.writer.Write(payload); err != nil {
		return err
	}
	if _, err := c.writer.Write([]byte("\n\n")); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

func (c *sseConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func writePollsDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pollsdomainerrors.ErrQuestionRequired):
		writePollsError(w, http.StatusBadRequest, "question_required", err.Error())
	case errors.Is(err, pollsdomainerrors.ErrNotEnoughOptions):
		writePollsError(w, http.StatusBadRequest, "not_enough_options", err.Error())
	case errors.Is(err, pollsdomainerrors.ErrExpiryNotFuture):
		writePollsError(w, http.StatusBadRequest, "expiry_not_future", err.Error())
	case errors.Is(err, pollsdomainerrors.ErrInvalidVoteInput):
		writePollsError(w, http.StatusBadRequest, "invalid_vote_input", err.Error())
	case errors.Is(err, pollsdomainerrors.ErrDuplicateQuestion):
		writePollsError(w, http.StatusConflict, "duplicate_question", err.Error())
	case errors.Is(err, pollsdomainerrors.ErrDuplicateVote):
		writePollsError(w, http.StatusConflict, "duplicate_vote", err.Error())
	case errors.Is(err, pollsdomainerrors.ErrPollNotFound):
		writePollsError(w, http.StatusNotFound, "poll_not_found", err.Error())
	case errors.Is(err, pollsdomainerrors.ErrOptionNotFound):
		writePollsError(w, http.StatusNotFound, "option_not_found", err.Error())
	case errors.Is(err, pollsdomainerrors.ErrPollExpired):
		writePollsError(w, http.StatusGone, "poll_expired", err.Error())
	case errors.Is(err, pollsdomainerrors.ErrStorageUnavailable),
		errors.Is(err, pollsdomainerrors.ErrDeliveryFailed):
		writePollsError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	default:
		writePollsError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePollsError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pollshttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
