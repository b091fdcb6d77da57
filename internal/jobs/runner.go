// Package jobs runs solves, synchronously for the API and in the
// background for queued jobs.
package jobs

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"

    "cartage/internal/config"
    "cartage/internal/constraint"
    "cartage/internal/matrix"
    "cartage/internal/metrics"
    "cartage/internal/model"
    "cartage/internal/problem"
    "cartage/internal/report"
    "cartage/internal/result"
    "cartage/internal/solver"
    "cartage/internal/store"
)

// Runner executes the solve pipeline end to end.
type Runner struct {
    Store    store.Store
    Provider matrix.Provider
    Defaults config.Solver
}

func NewRunner(s store.Store, defaults config.Solver) *Runner {
    return &Runner{Store: s, Provider: matrix.Euclidean{}, Defaults: defaults}
}

// Run resolves the request's problem, solves it, and returns the
// validated result. solveID names the job for metric snapshots; pass ""
// for ad-hoc solves.
func (r *Runner) Run(ctx context.Context, req model.SolveRequest, solveID string) (model.SolveResult, error) {
    in, err := r.resolveProblem(ctx, req)
    if err != nil {
        return model.SolveResult{}, err
    }
    p, err := problem.Build(ctx, in, r.Provider)
    if err != nil {
        return model.SolveResult{}, err
    }
    cs, csErr := constraint.Build(p)
    if csErr != nil {
        var infErr *constraint.InfeasibleOrderError
        if !errors.As(csErr, &infErr) {
            return model.SolveResult{}, csErr
        }
        // infeasible orders stay excluded; the solve proceeds without them
    }

    params := r.params(req)
    sol, m, err := solver.Solve(ctx, p, cs, params)
    if err != nil {
        return model.SolveResult{}, err
    }
    rep := report.Validate(p, sol)
    res := result.Present(p, sol, rep, m)

    metrics.Solves.WithLabelValues(res.Status, string(m.StopReason)).Inc()
    metrics.SolveDuration.WithLabelValues(res.Status).Observe(float64(m.Elapsed.Milliseconds()))
    metrics.SolveIterations.Observe(float64(m.Iterations))

    if req.ProblemID != "" && r.Store != nil {
        if solveID == "" {
            solveID = uuid.New().String()
        }
        snap := map[string]any{
            "status":       res.Status,
            "totalCost":    res.TotalCost,
            "iterations":   m.Iterations,
            "improvements": m.Improvements,
            "initialCost":  m.InitialCost,
            "finalCost":    m.FinalCost,
            "stopReason":   string(m.StopReason),
            "elapsedMs":    m.Elapsed.Milliseconds(),
        }
        if err := r.Store.SaveSolveMetrics(ctx, req.ProblemID, solveID, snap); err != nil {
            return res, nil // result stands even if the snapshot write fails
        }
    }
    return res, nil
}

func (r *Runner) resolveProblem(ctx context.Context, req model.SolveRequest) (model.ProblemIn, error) {
    if req.Problem != nil {
        return *req.Problem, nil
    }
    if req.ProblemID == "" {
        return model.ProblemIn{}, fmt.Errorf("solve request names neither a problem nor a problemId")
    }
    if r.Store == nil {
        return model.ProblemIn{}, fmt.Errorf("problemId %q: no store configured", req.ProblemID)
    }
    in, _, err := r.Store.GetProblem(ctx, req.ProblemID)
    if err != nil {
        return model.ProblemIn{}, fmt.Errorf("problem %s: %w", req.ProblemID, err)
    }
    return in, nil
}

func (r *Runner) params(req model.SolveRequest) solver.Params {
    budgetMs := req.TimeBudgetMs
    if budgetMs <= 0 {
        budgetMs = r.Defaults.TimeBudgetMs
    }
    maxIter := req.MaxIterations
    if maxIter <= 0 {
        maxIter = r.Defaults.MaxIterations
    }
    acceptance := req.Acceptance
    if acceptance == "" {
        acceptance = r.Defaults.Acceptance
    }
    var accept solver.Acceptance
    switch acceptance {
    case "annealing":
        accept = &solver.Annealing{Temp: 1}
    default:
        accept = solver.Greedy{}
    }
    return solver.Params{
        TimeBudget:    time.Duration(budgetMs) * time.Millisecond,
        MaxIterations: maxIter,
        TargetCost:    req.TargetCost,
        Seed:          req.Seed,
        Accept:        accept,
    }
}

// Permanent reports whether err will fail the same way on retry.
func Permanent(err error) bool {
    var sErr *problem.StructuralError
    var mErr *matrix.MatrixError
    var iErr *solver.InternalError
    return errors.As(err, &sErr) || errors.As(err, &mErr) || errors.As(err, &iErr)
}
