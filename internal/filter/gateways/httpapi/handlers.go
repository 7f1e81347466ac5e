package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haukened/keyword-filter/internal/filter/domain"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Blocked     bool   `json:"blocked"`
	Category    string `json:"category"`
	MatchedRule string `json:"matched_rule"`
	Stop        bool   `json:"stop"`
}

type commandRequest struct {
	Command string `json:"command"`
}

type commandResponse struct {
	Replies []string `json:"replies"`
	Error   string   `json:"error,omitempty"`
}

type rulesResponse struct {
	Prefixes []string `json:"block_prefixes"`
	Keywords []string `json:"block_keywords"`
	Suffixes []string `json:"block_suffixes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", s.handleMessage)
	mux.HandleFunc("POST /v1/commands", s.handleCommand)
	mux.HandleFunc("GET /v1/rules", s.handleRules)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !s.decode(w, r, &req) {
		return
	}
	v := s.checker.Check(req.Message)
	s.writeJSON(w, http.StatusOK, messageResponse{
		Blocked:     v.IsBlocked(),
		Category:    v.Category.String(),
		MatchedRule: v.MatchedRule,
		Stop:        v.IsBlocked(),
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if !s.decode(w, r, &req) {
		return
	}
	reply, err := s.commands.HandleLine(req.Command)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrUnknownCommand) {
			status = http.StatusBadRequest
		}
		s.writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	resp := commandResponse{Replies: reply.Lines}
	if resp.Replies == nil {
		resp.Replies = []string{}
	}
	status := http.StatusOK
	if reply.Err != nil {
		status = http.StatusInternalServerError
		resp.Error = reply.Err.Error()
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	rs := s.rules.List()
	s.writeJSON(w, http.StatusOK, rulesResponse{
		Prefixes: nonNil(rs.Prefixes),
		Keywords: nonNil(rs.Keywords),
		Suffixes: nonNil(rs.Suffixes),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, m := range s.metrics {
		m.WritePrometheus(w)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.logger.Debug(map[string]any{
			"path":  r.URL.Path,
			"error": err,
		}, "Rejected malformed request body")
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn(map[string]any{"error": err}, "Failed to write response")
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
