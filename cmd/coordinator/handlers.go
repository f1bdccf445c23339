package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/dreamware/arbiter/internal/catalog"
	"github.com/dreamware/arbiter/internal/cluster"
	"github.com/dreamware/arbiter/internal/coordinator"
)

// maxBody caps request bodies the coordinator will read.
const maxBody = 1 << 20

type server struct {
	coord *coordinator.Coordinator
}

func newServer(coord *coordinator.Coordinator) *server {
	return &server{coord: coord}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /files", s.handleRegisterFile)
	mux.HandleFunc("GET /files", s.handleListFiles)
	mux.HandleFunc("GET /files/{id}", s.handleFileInfo)
	mux.HandleFunc("GET /files/{id}/exists", s.handleFileExists)
	mux.HandleFunc("POST /files/{id}/append", s.handleAppendTarget)
	mux.HandleFunc("POST /files/{id}/fragments", s.handleRefreshFragment)
	mux.HandleFunc("POST /files/{id}/shuffle", s.handleShuffleReport)
	mux.HandleFunc("GET /files/{id}/shuffle", s.handleShuffleStatus)
	mux.HandleFunc("POST /files/{id}/key-owner", s.handleKeyOwner)
	mux.HandleFunc("POST /files/{id}/move-to-init", s.handleMoveToInit)
	mux.HandleFunc("POST /map", s.handlePhase(s.coord.StartMap))
	mux.HandleFunc("POST /reduce", s.handlePhase(s.coord.StartReduce))
	mux.HandleFunc("POST /clear", s.handlePhase(s.coord.ClearData))
	mux.HandleFunc("POST /map-reduce", s.handleMapReduce)
	mux.HandleFunc("GET /nodes", s.handleListNodes)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *server) handleRegisterFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName       string `json:"file_name"`
		FieldDelimiter string `json:"field_delimiter"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.FileName == "" {
		http.Error(w, "file_name required", http.StatusBadRequest)
		return
	}
	reg, err := s.coord.RegisterFile(r.Context(), req.FileName, req.FieldDelimiter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (s *server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	ids, err := s.coord.Files(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Files []string `json:"files"`
	}{Files: ids})
}

func (s *server) handleFileInfo(w http.ResponseWriter, r *http.Request) {
	f, err := s.coord.FileInfo(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *server) handleFileExists(w http.ResponseWriter, r *http.Request) {
	ok, err := s.coord.FileExists(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Exists bool `json:"exists"`
	}{Exists: ok})
}

func (s *server) handleAppendTarget(w http.ResponseWriter, r *http.Request) {
	target, err := s.coord.AppendTarget(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		DataNodeAddress string `json:"data_node_address"`
	}{DataNodeAddress: target})
}

func (s *server) handleRefreshFragment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DataNodeAddress string `json:"data_node_address"`
		Segment         string `json:"segment"`
	}
	if !decode(w, r, &req) {
		return
	}
	f, err := s.coord.RefreshFragment(r.Context(), r.PathValue("id"), req.DataNodeAddress, req.Segment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *server) handleShuffleReport(w http.ResponseWriter, r *http.Request) {
	var sample coordinator.ShuffleSample
	if !decode(w, r, &sample) {
		return
	}
	out, err := s.coord.ShuffleReport(r.Context(), r.PathValue("id"), sample)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleShuffleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.coord.ShuffleStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) handleKeyOwner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Key == "" {
		http.Error(w, "key required", http.StatusBadRequest)
		return
	}
	owner, err := s.coord.KeyOwner(r.Context(), r.PathValue("id"), req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, owner)
}

func (s *server) handleMoveToInit(w http.ResponseWriter, r *http.Request) {
	out, err := s.coord.MoveToInitFolder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomesResponse(out))
}

// handlePhase forwards the raw request body to every node via phase.
func (s *server) handlePhase(phase func(ctx context.Context, req json.RawMessage) (coordinator.Outcomes, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readRaw(w, r)
		if !ok {
			return
		}
		out, err := phase(r.Context(), body)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcomesResponse(out))
	}
}

func (s *server) handleMapReduce(w http.ResponseWriter, r *http.Request) {
	body, ok := readRaw(w, r)
	if !ok {
		return
	}
	mapped, reduced, err := s.coord.MapReduce(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Map    coordinator.Outcomes `json:"map"`
		Reduce coordinator.Outcomes `json:"reduce"`
	}{Map: mapped, Reduce: reduced})
}

func (s *server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	fleet := s.coord.Fleet()
	writeJSON(w, http.StatusOK, struct {
		Nodes        []cluster.Node `json:"nodes"`
		URLs         []string       `json:"urls"`
		Distribution int            `json:"distribution"`
	}{Nodes: fleet.Nodes(), URLs: fleet.URLs(), Distribution: fleet.Distribution()})
}

type outcomesBody struct {
	Outcomes coordinator.Outcomes `json:"outcomes"`
	SentTo   int                  `json:"sent_to"`
	Failed   int                  `json:"failed"`
}

func outcomesResponse(out coordinator.Outcomes) outcomesBody {
	return outcomesBody{Outcomes: out, SentTo: len(out), Failed: len(out.Failed())}
}

// statusFor maps a coordinator error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrFileNotFound), errors.Is(err, cluster.ErrNodeNotFound):
		return http.StatusNotFound
	case coordinator.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, coordinator.ErrInconsistentPlacement):
		return http.StatusConflict
	case errors.Is(err, coordinator.ErrBarrierTimedOut):
		return http.StatusRequestTimeout
	case errors.Is(err, coordinator.ErrDispatchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, code, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

// readRaw reads a pass-through JSON body. An empty body is allowed.
func readRaw(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return nil, false
	}
	if len(body) > 0 && !json.Valid(body) {
		http.Error(w, "bad json", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}
