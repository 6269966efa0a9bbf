package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/vizly/internal/database"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/executor"
)

const maxBodyBytes = 1 << 20

// executeRequest is the body of POST /v1/connections/{id}/execute.
type executeRequest struct {
	SQL            string `json:"sql"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxRows        int    `json:"max_rows"`
	Export         bool   `json:"export"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listConnections(w http.ResponseWriter, _ *http.Request) {
	conns := s.cfg.Catalog.List()
	if conns == nil {
		conns = []*database.Connection{}
	}
	writeData(w, conns)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}

	var body executeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err))
		return
	}
	if body.TimeoutSeconds < 0 || body.MaxRows < 0 {
		writeError(w, errs.New(errs.ErrKindInvalidInput, "timeout_seconds and max_rows must not be negative"))
		return
	}

	res, err := s.cfg.Executor.Execute(r.Context(), executor.Request{
		Connection: conn,
		SQL:        body.SQL,
		Timeout:    time.Duration(body.TimeoutSeconds) * time.Second,
		MaxRows:    body.MaxRows,
		Export:     body.Export,
		Privileged: privileged(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, res)
}

func (s *Server) schema(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	snap, err := s.cfg.Schema.Inspect(r.Context(), conn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, snap)
}

func (s *Server) test(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.connection(w, r)
	if !ok {
		return
	}
	probe, err := s.cfg.Executor.TestConnection(r.Context(), conn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, probe)
}

// connection resolves the {id} path parameter, writing the error response
// itself when it cannot.
func (s *Server) connection(w http.ResponseWriter, r *http.Request) (*database.Connection, bool) {
	conn, err := s.cfg.Catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return conn, true
}

func privileged(r *http.Request) bool {
	return r.Header.Get(RoleHeader) == "admin"
}

// statusFor maps an error's class onto an HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch errs.ClassOf(err) {
	case errs.ClassBadInput:
		return http.StatusBadRequest
	case errs.ClassNotFound:
		return http.StatusNotFound
	case errs.ClassUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeData(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: v})
}

// writeError sends only the sanitized message; the cause stays in the logs.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), envelope{Status: "error", Message: errs.PublicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
