package store

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"

    "cartage/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu       sync.Mutex
    problems map[string]memProblem      // id -> problem
    probIDs  []string                   // insertion order for cursor listing
    solves   map[string]*memSolve       // id -> job
    solveIDs []string                   // insertion order
    solveMx  map[string][]map[string]any // problemId -> metric snapshots
}

type memProblem struct {
    in  model.ProblemIn
    out model.ProblemOut
}

// memSolve augments SolveJob with scheduling state
type memSolve struct {
    model.SolveJob
    NextAttemptAt time.Time
}

func NewMemory() *Memory {
    return &Memory{
        problems: map[string]memProblem{},
        solves:   map[string]*memSolve{},
        solveMx:  map[string][]map[string]any{},
    }
}

func (m *Memory) CreateProblem(ctx context.Context, in model.ProblemIn) (model.ProblemOut, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := model.ProblemOut{
        ID:        uuid.New().String(),
        Locations: len(in.Locations),
        Vehicles:  len(in.Vehicles),
        Orders:    len(in.Orders),
        CreatedAt: time.Now().UTC().Format(time.RFC3339),
    }
    m.problems[out.ID] = memProblem{in: in, out: out}
    m.probIDs = append(m.probIDs, out.ID)
    return out, nil
}

func (m *Memory) GetProblem(ctx context.Context, id string) (model.ProblemIn, model.ProblemOut, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.problems[id]
    if !ok {
        return model.ProblemIn{}, model.ProblemOut{}, ErrNotFound
    }
    return p.in, p.out, nil
}

func (m *Memory) ListProblems(ctx context.Context, cursor string, limit int) ([]model.ProblemOut, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 100 }
    start := 0
    if cursor != "" {
        for i, id := range m.probIDs {
            if id == cursor { start = i + 1; break }
        }
    }
    out := []model.ProblemOut{}
    var last string
    for i := start; i < len(m.probIDs) && len(out) < limit; i++ {
        out = append(out, m.problems[m.probIDs[i]].out)
        last = m.probIDs[i]
    }
    var next string
    if len(out) == limit && start+len(out) < len(m.probIDs) { next = last }
    return out, next, nil
}

func (m *Memory) EnqueueSolve(ctx context.Context, req model.SolveRequest) (model.SolveJob, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now().UTC()
    job := model.SolveJob{
        ID:        uuid.New().String(),
        Status:    model.SolveQueued,
        Request:   req,
        CreatedAt: now.Format(time.RFC3339),
        UpdatedAt: now.Format(time.RFC3339),
    }
    m.solves[job.ID] = &memSolve{SolveJob: job, NextAttemptAt: now}
    m.solveIDs = append(m.solveIDs, job.ID)
    return job, nil
}

func (m *Memory) GetSolve(ctx context.Context, id string) (model.SolveJob, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s, ok := m.solves[id]
    if !ok {
        return model.SolveJob{}, ErrNotFound
    }
    return s.SolveJob, nil
}

func (m *Memory) ListSolves(ctx context.Context, status, cursor string, limit int) ([]model.SolveJob, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 100 }
    start := 0
    if cursor != "" {
        for i, id := range m.solveIDs {
            if id == cursor { start = i + 1; break }
        }
    }
    out := []model.SolveJob{}
    var last string
    for i := start; i < len(m.solveIDs) && len(out) < limit; i++ {
        s := m.solves[m.solveIDs[i]]
        if status == "" || s.Status == status {
            out = append(out, s.SolveJob)
        }
        last = m.solveIDs[i]
    }
    var next string
    if len(out) == limit && start+limit < len(m.solveIDs) { next = last }
    return out, next, nil
}

func (m *Memory) FetchDueSolves(ctx context.Context, limit int) ([]model.SolveJob, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = 10 }
    now := time.Now().UTC()
    out := []model.SolveJob{}
    for _, id := range m.solveIDs {
        s := m.solves[id]
        if s.Status == model.SolveQueued && !s.NextAttemptAt.After(now) {
            out = append(out, s.SolveJob)
            if len(out) == limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkSolveRunning(ctx context.Context, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    s, ok := m.solves[id]
    if !ok { return ErrNotFound }
    s.Status = model.SolveRunning
    s.Attempts++
    s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
    return nil
}

func (m *Memory) CompleteSolve(ctx context.Context, id string, res model.SolveResult) error {
    m.mu.Lock(); defer m.mu.Unlock()
    s, ok := m.solves[id]
    if !ok { return ErrNotFound }
    r := res
    s.Status = model.SolveCompleted
    s.Result = &r
    s.Error = ""
    s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
    return nil
}

func (m *Memory) FailSolve(ctx context.Context, id string, lastError string, nextAttemptAt *time.Time) error {
    m.mu.Lock(); defer m.mu.Unlock()
    s, ok := m.solves[id]
    if !ok { return ErrNotFound }
    s.Error = lastError
    s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
    if nextAttemptAt == nil {
        s.Status = model.SolveFailed
        return nil
    }
    s.Status = model.SolveQueued
    s.NextAttemptAt = *nextAttemptAt
    return nil
}

func (m *Memory) CountQueuedSolves(ctx context.Context) (int, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    n := 0
    for _, s := range m.solves {
        if s.Status == model.SolveQueued { n++ }
    }
    return n, nil
}

func (m *Memory) SaveSolveMetrics(ctx context.Context, problemID, solveID string, metrics map[string]any) error {
    m.mu.Lock(); defer m.mu.Unlock()
    snap := map[string]any{"solveId": solveID, "at": time.Now().UTC().Format(time.RFC3339)}
    for k, v := range metrics { snap[k] = v }
    m.solveMx[problemID] = append(m.solveMx[problemID], snap)
    return nil
}

func (m *Memory) ListSolveMetrics(ctx context.Context, problemID string) ([]map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []map[string]any{}
    out = append(out, m.solveMx[problemID]...)
    return out, nil
}
