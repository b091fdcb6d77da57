package jobs

import (
    "context"
    "time"

    "github.com/rs/zerolog/log"

    "cartage/internal/config"
    "cartage/internal/events"
    "cartage/internal/metrics"
    "cartage/internal/model"
    "cartage/internal/store"
)

// Worker drains the solve queue on a ticker, with exponential backoff
// on retryable failures.
type Worker struct {
    Store  store.Store
    Runner *Runner
    Broker events.Broker
    Stop   chan struct{}

    PollInterval time.Duration
    MaxAttempts  int
    BatchSize    int
}

func NewWorker(s store.Store, r *Runner, b events.Broker, cfg config.Worker) *Worker {
    return &Worker{
        Store:        s,
        Runner:       r,
        Broker:       b,
        Stop:         make(chan struct{}),
        PollInterval: time.Duration(cfg.PollIntervalMs) * time.Millisecond,
        MaxAttempts:  cfg.MaxAttempts,
        BatchSize:    cfg.BatchSize,
    }
}

func (w *Worker) Start() {
    go func() {
        ticker := time.NewTicker(w.PollInterval)
        defer ticker.Stop()
        for {
            select {
            case <-w.Stop:
                return
            case <-ticker.C:
                w.processOnce()
            }
        }
    }()
}

func (w *Worker) processOnce() {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    jobs, err := w.Store.FetchDueSolves(ctx, w.BatchSize)
    if err != nil {
        log.Error().Err(err).Msg("fetch due solves")
        return
    }
    for _, job := range jobs {
        w.runJob(job)
    }
    if n, err := w.Store.CountQueuedSolves(ctx); err == nil {
        metrics.QueueDepth.Set(float64(n))
    }
}

func (w *Worker) runJob(job model.SolveJob) {
    ctx, cancel := context.WithTimeout(context.Background(), w.jobTimeout(job.Request))
    defer cancel()

    if err := w.Store.MarkSolveRunning(ctx, job.ID); err != nil {
        log.Error().Err(err).Str("solveId", job.ID).Msg("mark solve running")
        return
    }
    attempt := job.Attempts + 1
    w.publish(job.ID, "solve.started", map[string]any{"solveId": job.ID, "attempt": attempt})
    log.Info().Str("solveId", job.ID).Int("attempt", attempt).Msg("solve started")

    res, err := w.Runner.Run(ctx, job.Request, job.ID)
    if err != nil {
        w.failJob(ctx, job, attempt, err)
        return
    }
    if err := w.Store.CompleteSolve(ctx, job.ID, res); err != nil {
        log.Error().Err(err).Str("solveId", job.ID).Msg("complete solve")
        return
    }
    w.publish(job.ID, "solve.completed", map[string]any{
        "solveId":   job.ID,
        "status":    res.Status,
        "totalCost": res.TotalCost,
    })
    log.Info().Str("solveId", job.ID).Str("status", res.Status).Float64("totalCost", res.TotalCost).Msg("solve completed")
}

func (w *Worker) failJob(ctx context.Context, job model.SolveJob, attempt int, cause error) {
    var next *time.Time
    if !Permanent(cause) && attempt < w.MaxAttempts {
        t := time.Now().UTC().Add(nextBackoff(attempt))
        next = &t
    }
    if err := w.Store.FailSolve(ctx, job.ID, cause.Error(), next); err != nil {
        log.Error().Err(err).Str("solveId", job.ID).Msg("fail solve")
        return
    }
    if next == nil {
        w.publish(job.ID, "solve.failed", map[string]any{"solveId": job.ID, "error": cause.Error()})
        log.Warn().Err(cause).Str("solveId", job.ID).Int("attempt", attempt).Msg("solve failed permanently")
        return
    }
    log.Warn().Err(cause).Str("solveId", job.ID).Int("attempt", attempt).Time("nextAttemptAt", *next).Msg("solve failed, requeued")
}

func (w *Worker) publish(solveID, typ string, data map[string]any) {
    if w.Broker != nil {
        w.Broker.Publish(solveID, events.Event{Type: typ, Data: data})
    }
}

// jobTimeout bounds a solve run at its search budget plus slack for
// problem building and persistence.
func (w *Worker) jobTimeout(req model.SolveRequest) time.Duration {
    budget := time.Duration(req.TimeBudgetMs) * time.Millisecond
    if budget <= 0 {
        budget = time.Duration(w.Runner.Defaults.TimeBudgetMs) * time.Millisecond
    }
    return budget + 30*time.Second
}

func nextBackoff(attempts int) time.Duration {
    if attempts < 0 {
        attempts = 0
    }
    if attempts > 10 {
        attempts = 10
    }
    base := time.Second * time.Duration(1<<attempts)
    if base > time.Hour {
        base = time.Hour
    }
    return base
}
