package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"mockmes/internal/command"
	"mockmes/internal/fault"
	"mockmes/internal/routing"
	"mockmes/internal/sfc"
	"mockmes/internal/status"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string     `json:"error"`
	Kind  fault.Kind `json:"kind"`
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// sfcSummary is one value of the GET /sfcs map.
type sfcSummary struct {
	RoutingID  string             `json:"routing_id,omitempty"`
	Operations routing.Operations `json:"operations"`
	Status     status.SFCStatus   `json:"sfc_state"`
}

type historyResponse struct {
	SFCID   string      `json:"sfc_id"`
	Entries []sfc.Entry `json:"entries"`
}

type createRoutingRequest struct {
	Operations *int `json:"operations"`
}

type assignRoutingRequest struct {
	RoutingID string `json:"routing_id"`
}

type stepRequest struct {
	Step *int `json:"step"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", UptimeSeconds: s.uptimeSeconds()})
}

func (s *Server) handleCreateRouting(w http.ResponseWriter, r *http.Request) {
	var req createRoutingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.run(w, r, command.CreateRouting{Operations: req.Operations}, func(res command.Result) any {
		return res.Routing
	})
}

func (s *Server) handleGetRouting(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, command.GetRouting{RoutingID: r.PathValue("id")}, func(res command.Result) any {
		return res.Routing
	})
}

func (s *Server) handleListRoutings(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, command.ListRoutings{}, func(res command.Result) any {
		out := make(map[string]routing.Operations, len(res.Routings))
		for _, rt := range res.Routings {
			out[rt.ID] = rt.Operations
		}
		return out
	})
}

func (s *Server) handleCreateSFC(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, command.CreateSFC{}, func(res command.Result) any {
		return res.Record
	})
}

func (s *Server) handleListSFCs(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, command.ListSFCs{}, func(res command.Result) any {
		out := make(map[string]sfcSummary, len(res.Records))
		for _, rec := range res.Records {
			out[rec.ID] = sfcSummary{RoutingID: rec.RoutingID, Operations: rec.Operations, Status: rec.Status}
		}
		return out
	})
}

func (s *Server) handleGetSFC(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, command.GetSFC{SFCID: r.PathValue("id")}, func(res command.Result) any {
		return res.Record
	})
}

func (s *Server) handleRoutingState(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, command.GetRoutingState{SFCID: r.PathValue("id")}, func(res command.Result) any {
		return res.RoutingState
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.run(w, r, command.History{SFCID: id}, func(res command.Result) any {
		return historyResponse{SFCID: id, Entries: res.History}
	})
}

func (s *Server) handleAssignRouting(w http.ResponseWriter, r *http.Request) {
	var req assignRoutingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd := command.AssignRouting{SFCID: r.PathValue("id"), RoutingID: req.RoutingID}
	s.run(w, r, cmd, func(res command.Result) any {
		return res.Record
	})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, command.Advance{SFCID: r.PathValue("id")}, transitionBody)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, command.Complete{SFCID: r.PathValue("id")}, transitionBody)
}

func (s *Server) handleRollbackSingle(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, command.RollbackSingle{SFCID: r.PathValue("id")}, transitionBody)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	step, ok := decodeStep(w, r)
	if !ok {
		return
	}
	s.run(w, r, command.Rollback{SFCID: r.PathValue("id"), Step: step}, transitionBody)
}

func (s *Server) handleForceAdvance(w http.ResponseWriter, r *http.Request) {
	step, ok := decodeStep(w, r)
	if !ok {
		return
	}
	s.run(w, r, command.ForceAdvance{SFCID: r.PathValue("id"), Step: step}, transitionBody)
}

func transitionBody(res command.Result) any {
	return res.Transition
}

// run executes cmd and writes either shape(result) with 200 or the error.
func (s *Server) run(w http.ResponseWriter, r *http.Request, cmd command.Command, shape func(command.Result) any) {
	res, err := s.dispatcher.Execute(r.Context(), cmd)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shape(res))
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	code := statusFor(kind)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error(), Kind: kind})
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindInvalidArgument:
		return http.StatusBadRequest
	case fault.KindFailedPrecondition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads an optional JSON body into v. An empty body leaves v
// untouched. On failure it writes a 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload exceeds limit", Kind: fault.KindInvalidArgument})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unable to read body", Kind: fault.KindInvalidArgument})
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("invalid JSON body: %v", err),
			Kind:  fault.KindInvalidArgument,
		})
		return false
	}
	return true
}

func decodeStep(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req stepRequest
	if !decodeBody(w, r, &req) {
		return 0, false
	}
	if req.Step == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "step not provided", Kind: fault.KindInvalidArgument})
		return 0, false
	}
	return *req.Step, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
