package store

import (
    "context"
    "errors"
    "time"

    "cartage/internal/model"
)

// Store is the persistence interface used by the API server and the
// solve worker.
type Store interface {
    // Problems
    CreateProblem(ctx context.Context, in model.ProblemIn) (model.ProblemOut, error)
    GetProblem(ctx context.Context, id string) (model.ProblemIn, model.ProblemOut, error)
    ListProblems(ctx context.Context, cursor string, limit int) ([]model.ProblemOut, string, error)

    // Solve jobs
    EnqueueSolve(ctx context.Context, req model.SolveRequest) (model.SolveJob, error)
    GetSolve(ctx context.Context, id string) (model.SolveJob, error)
    ListSolves(ctx context.Context, status, cursor string, limit int) ([]model.SolveJob, string, error)
    FetchDueSolves(ctx context.Context, limit int) ([]model.SolveJob, error)
    MarkSolveRunning(ctx context.Context, id string) error
    CompleteSolve(ctx context.Context, id string, res model.SolveResult) error
    // FailSolve records an attempt failure. A nil nextAttemptAt fails the
    // job permanently; otherwise it is requeued for that time.
    FailSolve(ctx context.Context, id string, lastError string, nextAttemptAt *time.Time) error
    CountQueuedSolves(ctx context.Context) (int, error)

    // Solve metrics per problem
    SaveSolveMetrics(ctx context.Context, problemID, solveID string, metrics map[string]any) error
    ListSolveMetrics(ctx context.Context, problemID string) ([]map[string]any, error)
}

var ErrNotFound = errors.New("not found")
