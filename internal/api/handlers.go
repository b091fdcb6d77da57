package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "cartage/internal/matrix"
    "cartage/internal/model"
    "cartage/internal/problem"
    "cartage/internal/solver"
    "cartage/internal/store"
)

// ProblemsHandler handles POST/GET /v1/problems
func (s *Server) ProblemsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        var in model.ProblemIn
        if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        // reject malformed problems before they are stored
        if _, err := problem.Build(r.Context(), in, s.Runner.Provider); err != nil {
            s.writeSolveError(w, r, err)
            return
        }
        out, err := s.Store.CreateProblem(r.Context(), in)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create problem failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, out)
    case http.MethodGet:
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" {
            fmt.Sscanf(v, "%d", &limit)
        }
        items, next, err := s.Store.ListProblems(r.Context(), cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List problems failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// ProblemByIDHandler handles GET /v1/problems/{id}, POST /v1/problems/{id}/derive,
// and GET /v1/problems/{id}/metrics
func (s *Server) ProblemByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/problems/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]

    if len(parts) > 1 && parts[1] == "derive" {
        s.deriveHandler(w, r, id)
        return
    }
    if len(parts) > 1 && parts[1] == "metrics" {
        if r.Method != http.MethodGet {
            w.WriteHeader(http.StatusMethodNotAllowed)
            return
        }
        items, err := s.Store.ListSolveMetrics(r.Context(), id)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List solve metrics failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items})
        return
    }
    if len(parts) > 1 {
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
        return
    }
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    in, out, err := s.Store.GetProblem(r.Context(), id)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            writeProblem(w, http.StatusNotFound, "Problem not found", "", r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Get problem failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{
        "id":         out.ID,
        "createdAt":  out.CreatedAt,
        "definition": in,
    })
}

// deriveHandler builds a new stored problem from an existing one. The
// source problem is left untouched.
func (s *Server) deriveHandler(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var req model.DeriveRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    in, _, err := s.Store.GetProblem(r.Context(), id)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            writeProblem(w, http.StatusNotFound, "Problem not found", "", r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Get problem failed", err.Error(), r.URL.Path)
        return
    }
    derived, err := problem.Derive(in, req)
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid derive request", err.Error(), r.URL.Path)
        return
    }
    if _, err := problem.Build(r.Context(), derived, s.Runner.Provider); err != nil {
        s.writeSolveError(w, r, err)
        return
    }
    out, err := s.Store.CreateProblem(r.Context(), derived)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Create problem failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusCreated, out)
}

// SolveHandler handles POST /v1/solve (synchronous)
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    if !s.allow(w, r) {
        return
    }
    var req model.SolveRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateSolveRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
        return
    }
    res, err := s.Runner.Run(r.Context(), req, "")
    if err != nil {
        s.writeSolveError(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, res)
}

// SolvesHandler handles POST/GET /v1/solves (async queue)
func (s *Server) SolvesHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        if !s.allow(w, r) {
            return
        }
        var req model.SolveRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateSolveRequest(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
            return
        }
        job, err := s.Store.EnqueueSolve(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Enqueue solve failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusAccepted, job)
    case http.MethodGet:
        status := r.URL.Query().Get("status")
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" {
            fmt.Sscanf(v, "%d", &limit)
        }
        items, next, err := s.Store.ListSolves(r.Context(), status, cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List solves failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SolveByIDHandler handles GET /v1/solves/{id} and the SSE stream at
// /v1/solves/{id}/events/stream
func (s *Server) SolveByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/solves/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]

    if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
        s.solveEventsHandler(w, r, id)
        return
    }
    if len(parts) > 1 {
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
        return
    }
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    job, err := s.Store.GetSolve(r.Context(), id)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            writeProblem(w, http.StatusNotFound, "Solve not found", "", r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Get solve failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, job)
}

func (s *Server) solveEventsHandler(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    flusher, ok := w.(http.Flusher)
    if !ok {
        writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
        return
    }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"solveId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        }
    }
}

// SolverConfigHandler returns the effective solver defaults
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"defaults": map[string]any{
        "timeBudgetMs":  s.Cfg.Solver.TimeBudgetMs,
        "maxIterations": s.Cfg.Solver.MaxIterations,
        "acceptance":    s.Cfg.Solver.Acceptance,
        "initTemp":      1.0,
        "cooling":       0.995,
        "seed":          1,
    }})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil {
            writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
            return
        }
    }
    writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeSolveError maps pipeline errors onto HTTP statuses. Validation
// failures report every offending field at once.
func (s *Server) writeSolveError(w http.ResponseWriter, r *http.Request, err error) {
    var sErr *problem.StructuralError
    if errors.As(err, &sErr) {
        errs := make([]Detail, 0, len(sErr.Fields))
        for _, f := range sErr.Fields {
            errs = append(errs, Detail{Field: f.Field, Reason: f.Reason})
        }
        writeValidation(w, r.URL.Path, errs)
        return
    }
    var mErr *matrix.MatrixError
    if errors.As(err, &mErr) {
        writeProblem(w, http.StatusUnprocessableEntity, "Invalid matrix", mErr.Reason, r.URL.Path)
        return
    }
    if errors.Is(err, store.ErrNotFound) {
        writeProblem(w, http.StatusNotFound, "Problem not found", err.Error(), r.URL.Path)
        return
    }
    var iErr *solver.InternalError
    if errors.As(err, &iErr) {
        writeProblem(w, http.StatusInternalServerError, "Solver error", iErr.Detail, r.URL.Path)
        return
    }
    writeProblem(w, http.StatusInternalServerError, "Solve failed", err.Error(), r.URL.Path)
}
