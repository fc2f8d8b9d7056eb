package server

import (
	"net/http"

	"github.com/entrhq/taskrelay/pkg/batch"
	"github.com/entrhq/taskrelay/pkg/logging"
	"github.com/entrhq/taskrelay/pkg/relay"
)

// handleHealth answers the bare health check used by tooling to detect a
// running relay.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"name":    "taskrelay",
		"version": Version,
	})
}

// submitBody is the single-command request shape.
type submitBody struct {
	Tool      string                 `json:"tool"`
	Args      map[string]interface{} `json:"args,omitempty"`
	Target    interface{}            `json:"target,omitempty"`
	ID        string                 `json:"id,omitempty"`
	SubtaskID string                 `json:"subtaskId,omitempty"`
}

// handleSubmit accepts a single command, answers relay-local tools
// synchronously, and otherwise blocks until the executor's result or the
// configured deadline. A timeout is a 200 with an error body: the command
// outcome is unknown, not definitely failed.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body submitBody
	if err := s.decodeBody(w, r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	if body.Tool == "" {
		writeErr(w, http.StatusBadRequest, "missing required field: tool")
		return
	}
	if !s.toolPermitted(body.Tool) {
		writeErr(w, http.StatusForbidden, "tool not permitted: "+body.Tool)
		return
	}

	cmd := &relay.Command{
		ID:        body.ID,
		Tool:      body.Tool,
		Args:      body.Args,
		Target:    body.Target,
		SubtaskID: body.SubtaskID,
	}

	res := s.relay.Execute(r.Context(), cmd, s.cfg.CommandTimeout.Std())
	writeJSON(w, http.StatusOK, res)
}

// handlePoll hands the pending command to the executor, clearing the slot.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	cmd, ok := s.relay.Poll()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

// handleResult accepts the executor's result and delivers it to the waiter
// registered for its id. The response reports whether anyone was still
// waiting.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	var res relay.Result
	if err := s.decodeBody(w, r, &res); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if res.ID == "" {
		writeErr(w, http.StatusBadRequest, "missing required field: id")
		return
	}

	delivered := s.relay.PostResult(&res)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"received":  true,
		"delivered": delivered,
	})
}

// handleBatch runs an ordered command list, fail-fast.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batch.Request
	if err := s.decodeBody(w, r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, step := range req.Commands {
		if step.Tool != "" && !s.toolPermitted(step.Tool) {
			writeErr(w, http.StatusForbidden, "tool not permitted: "+step.Tool)
			return
		}
	}

	resp := s.seq.Run(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// handleAppendLog accepts a free-form log entry from callers or the
// executor.
func (s *Server) handleAppendLog(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeErr(w, http.StatusNotFound, "log sink disabled")
		return
	}

	var entry logging.Entry
	if err := s.decodeBody(w, r, &entry); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if entry.Message == "" {
		writeErr(w, http.StatusBadRequest, "missing required field: message")
		return
	}

	s.sink.Append(entry)
	writeJSON(w, http.StatusOK, map[string]interface{}{"received": true})
}

// handleQueryLogs returns stored entries filtered by level, tool glob
// pattern, and limit.
func (s *Server) handleQueryLogs(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeErr(w, http.StatusNotFound, "log sink disabled")
		return
	}

	q := r.URL.Query()
	filter := logging.EntryFilter{
		Level: q.Get("level"),
		Tool:  q.Get("tool"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := parsePositiveInt(limit)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid limit: "+limit)
			return
		}
		filter.Limit = n
	}

	entries, err := s.sink.Filter(filter)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}
