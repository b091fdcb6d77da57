package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "cartage/internal/model"
)

// Postgres persists problems and solve jobs as JSON documents.
type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    p := &Postgres{db: db}
    if err := p.ensureSchema(); err != nil {
        return nil, err
    }
    return p, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) ensureSchema() error {
    stmts := []string{
        `CREATE TABLE IF NOT EXISTS problems (
            id uuid PRIMARY KEY,
            body jsonb NOT NULL,
            locations int NOT NULL,
            vehicles int NOT NULL,
            orders int NOT NULL,
            created_at timestamptz NOT NULL DEFAULT now()
        )`,
        `CREATE TABLE IF NOT EXISTS solves (
            id uuid PRIMARY KEY,
            status text NOT NULL,
            request jsonb NOT NULL,
            attempts int NOT NULL DEFAULT 0,
            result jsonb,
            last_error text NOT NULL DEFAULT '',
            next_attempt_at timestamptz NOT NULL DEFAULT now(),
            created_at timestamptz NOT NULL DEFAULT now(),
            updated_at timestamptz NOT NULL DEFAULT now()
        )`,
        `CREATE INDEX IF NOT EXISTS solves_due_idx ON solves (status, next_attempt_at)`,
        `CREATE TABLE IF NOT EXISTS solve_metrics (
            id uuid PRIMARY KEY,
            problem_id text NOT NULL,
            solve_id text NOT NULL,
            metrics jsonb NOT NULL,
            created_at timestamptz NOT NULL DEFAULT now()
        )`,
    }
    for _, s := range stmts {
        if _, err := p.db.Exec(s); err != nil {
            return err
        }
    }
    return nil
}

func (p *Postgres) CreateProblem(ctx context.Context, in model.ProblemIn) (model.ProblemOut, error) {
    now := time.Now().UTC()
    out := model.ProblemOut{
        ID:        uuid.New().String(),
        Locations: len(in.Locations),
        Vehicles:  len(in.Vehicles),
        Orders:    len(in.Orders),
        CreatedAt: now.Format(time.RFC3339),
    }
    body, err := json.Marshal(in)
    if err != nil { return model.ProblemOut{}, err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO problems (id, body, locations, vehicles, orders, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
        out.ID, body, out.Locations, out.Vehicles, out.Orders, now)
    if err != nil { return model.ProblemOut{}, err }
    return out, nil
}

func (p *Postgres) GetProblem(ctx context.Context, id string) (model.ProblemIn, model.ProblemOut, error) {
    var in model.ProblemIn
    var out model.ProblemOut
    var body []byte
    var created time.Time
    row := p.db.QueryRowContext(ctx, `SELECT id::text, body, locations, vehicles, orders, created_at FROM problems WHERE id=$1`, id)
    if err := row.Scan(&out.ID, &body, &out.Locations, &out.Vehicles, &out.Orders, &created); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return in, out, ErrNotFound }
        return in, out, err
    }
    out.CreatedAt = created.UTC().Format(time.RFC3339)
    if err := json.Unmarshal(body, &in); err != nil { return in, out, err }
    return in, out, nil
}

func (p *Postgres) ListProblems(ctx context.Context, cursor string, limit int) ([]model.ProblemOut, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, locations, vehicles, orders, created_at FROM problems WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, locations, vehicles, orders, created_at FROM problems ORDER BY id LIMIT $1`, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.ProblemOut{}
    var last string
    for rows.Next() {
        var o model.ProblemOut
        var created time.Time
        if err := rows.Scan(&o.ID, &o.Locations, &o.Vehicles, &o.Orders, &created); err != nil { return nil, "", err }
        o.CreatedAt = created.UTC().Format(time.RFC3339)
        out = append(out, o)
        last = o.ID
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) EnqueueSolve(ctx context.Context, req model.SolveRequest) (model.SolveJob, error) {
    now := time.Now().UTC()
    job := model.SolveJob{
        ID:        uuid.New().String(),
        Status:    model.SolveQueued,
        Request:   req,
        CreatedAt: now.Format(time.RFC3339),
        UpdatedAt: now.Format(time.RFC3339),
    }
    body, err := json.Marshal(req)
    if err != nil { return model.SolveJob{}, err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO solves (id, status, request, next_attempt_at, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$5)`,
        job.ID, job.Status, body, now, now)
    if err != nil { return model.SolveJob{}, err }
    return job, nil
}

func (p *Postgres) scanSolve(row interface{ Scan(...any) error }) (model.SolveJob, error) {
    var job model.SolveJob
    var req []byte
    var res []byte
    var created, updated time.Time
    if err := row.Scan(&job.ID, &job.Status, &req, &job.Attempts, &res, &job.Error, &created, &updated); err != nil {
        return job, err
    }
    job.CreatedAt = created.UTC().Format(time.RFC3339)
    job.UpdatedAt = updated.UTC().Format(time.RFC3339)
    if err := json.Unmarshal(req, &job.Request); err != nil { return job, err }
    if len(res) > 0 {
        var r model.SolveResult
        if err := json.Unmarshal(res, &r); err != nil { return job, err }
        job.Result = &r
    }
    return job, nil
}

const solveCols = `id::text, status, request, attempts, result, last_error, created_at, updated_at`

func (p *Postgres) GetSolve(ctx context.Context, id string) (model.SolveJob, error) {
    row := p.db.QueryRowContext(ctx, `SELECT `+solveCols+` FROM solves WHERE id=$1`, id)
    job, err := p.scanSolve(row)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.SolveJob{}, ErrNotFound }
        return model.SolveJob{}, err
    }
    return job, nil
}

func (p *Postgres) ListSolves(ctx context.Context, status, cursor string, limit int) ([]model.SolveJob, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if status != "" {
        if cursor != "" {
            rows, err = p.db.QueryContext(ctx, `SELECT `+solveCols+` FROM solves WHERE status=$1 AND id::text > $2 ORDER BY id LIMIT $3`, status, cursor, limit)
        } else {
            rows, err = p.db.QueryContext(ctx, `SELECT `+solveCols+` FROM solves WHERE status=$1 ORDER BY id LIMIT $2`, status, limit)
        }
    } else {
        if cursor != "" {
            rows, err = p.db.QueryContext(ctx, `SELECT `+solveCols+` FROM solves WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
        } else {
            rows, err = p.db.QueryContext(ctx, `SELECT `+solveCols+` FROM solves ORDER BY id LIMIT $1`, limit)
        }
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.SolveJob{}
    var last string
    for rows.Next() {
        job, err := p.scanSolve(rows)
        if err != nil { return nil, "", err }
        out = append(out, job)
        last = job.ID
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) FetchDueSolves(ctx context.Context, limit int) ([]model.SolveJob, error) {
    if limit <= 0 { limit = 10 }
    rows, err := p.db.QueryContext(ctx, `SELECT `+solveCols+` FROM solves WHERE status=$1 AND next_attempt_at <= now() ORDER BY next_attempt_at LIMIT $2`,
        model.SolveQueued, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.SolveJob{}
    for rows.Next() {
        job, err := p.scanSolve(rows)
        if err != nil { return nil, err }
        out = append(out, job)
    }
    return out, nil
}

func (p *Postgres) MarkSolveRunning(ctx context.Context, id string) error {
    res, err := p.db.ExecContext(ctx, `UPDATE solves SET status=$1, attempts=attempts+1, updated_at=now() WHERE id=$2`, model.SolveRunning, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) CompleteSolve(ctx context.Context, id string, result model.SolveResult) error {
    body, err := json.Marshal(result)
    if err != nil { return err }
    res, err := p.db.ExecContext(ctx, `UPDATE solves SET status=$1, result=$2, last_error='', updated_at=now() WHERE id=$3`, model.SolveCompleted, body, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) FailSolve(ctx context.Context, id string, lastError string, nextAttemptAt *time.Time) error {
    var res sql.Result
    var err error
    if nextAttemptAt == nil {
        res, err = p.db.ExecContext(ctx, `UPDATE solves SET status=$1, last_error=$2, updated_at=now() WHERE id=$3`, model.SolveFailed, lastError, id)
    } else {
        res, err = p.db.ExecContext(ctx, `UPDATE solves SET status=$1, last_error=$2, next_attempt_at=$3, updated_at=now() WHERE id=$4`, model.SolveQueued, lastError, *nextAttemptAt, id)
    }
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) CountQueuedSolves(ctx context.Context) (int, error) {
    var n int
    if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM solves WHERE status=$1`, model.SolveQueued).Scan(&n); err != nil {
        return 0, err
    }
    return n, nil
}

func (p *Postgres) SaveSolveMetrics(ctx context.Context, problemID, solveID string, metrics map[string]any) error {
    body, err := json.Marshal(metrics)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx, `INSERT INTO solve_metrics (id, problem_id, solve_id, metrics) VALUES ($1,$2,$3,$4)`,
        uuid.New().String(), problemID, solveID, body)
    return err
}

func (p *Postgres) ListSolveMetrics(ctx context.Context, problemID string) ([]map[string]any, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT solve_id, metrics, created_at FROM solve_metrics WHERE problem_id=$1 ORDER BY created_at`, problemID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []map[string]any{}
    for rows.Next() {
        var solveID string
        var body []byte
        var at time.Time
        if err := rows.Scan(&solveID, &body, &at); err != nil { return nil, err }
        snap := map[string]any{}
        if err := json.Unmarshal(body, &snap); err != nil { return nil, err }
        snap["solveId"] = solveID
        snap["at"] = at.UTC().Format(time.RFC3339)
        out = append(out, snap)
    }
    return out, nil
}
