package api

import (
	"fmt"

	"cartage/internal/model"
)

func validateSolveRequest(req *model.SolveRequest) error {
	if req.ProblemID == "" && req.Problem == nil {
		return fmt.Errorf("either problemId or problem is required")
	}
	if req.ProblemID != "" && req.Problem != nil {
		return fmt.Errorf("problemId and problem are mutually exclusive")
	}
	if req.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be >= 0")
	}
	if req.TargetCost < 0 {
		return fmt.Errorf("targetCost must be >= 0")
	}
	if req.Acceptance != "" && req.Acceptance != "greedy" && req.Acceptance != "annealing" {
		return fmt.Errorf("invalid acceptance: %s (allowed: greedy, annealing)", req.Acceptance)
	}
	return nil
}
