// Package result maps internal solutions onto the external response
// contract. Pure mapping: every number here is copied or re-walked from
// the problem matrix, no solving logic.
package result

import (
	"cartage/internal/model"
	"cartage/internal/problem"
	"cartage/internal/report"
	"cartage/internal/solver"
)

// Present flattens the solution into the wire contract with cumulative
// cost/load annotations and classifies the overall outcome.
func Present(p *problem.Problem, sol solver.Solution, rep report.Report, m solver.Metrics) model.SolveResult {
	res := model.SolveResult{
		Status:             classify(rep, m),
		TotalCost:          rep.TotalCost,
		Routes:             []model.RouteOut{},
		Violations:         []model.ViolationOut{},
		UnassignedOrderIDs: []string{},
		Stats: &model.SolveStats{
			Iterations:   m.Iterations,
			Improvements: m.Improvements,
			Relocates:    m.Relocates,
			Swaps:        m.Swaps,
			TwoOpts:      m.TwoOpts,
			InitialCost:  m.InitialCost,
			FinalCost:    m.FinalCost,
			StopReason:   string(m.StopReason),
			ElapsedMs:    m.Elapsed.Milliseconds(),
		},
	}

	for _, r := range sol.Routes {
		if len(r.Stops) == 0 {
			continue
		}
		res.Routes = append(res.Routes, presentRoute(p, r))
	}
	for _, v := range rep.Violations {
		res.Violations = append(res.Violations, model.ViolationOut{
			Kind: v.Kind, OrderID: v.OrderID, VehicleID: v.VehicleID, Detail: v.Detail,
		})
	}
	res.UnassignedOrderIDs = append(res.UnassignedOrderIDs, rep.Unassigned...)
	return res
}

func presentRoute(p *problem.Problem, r solver.Route) model.RouteOut {
	v := p.Vehicles[r.Vehicle]
	out := model.RouteOut{VehicleID: v.ID, Stops: []model.StopOut{}}

	hasTimes := false
	for _, st := range r.Stops {
		o := p.Orders[st.Order]
		if o.PickupWindow != nil || o.DeliveryWindow != nil || o.PickupService > 0 || o.DeliveryService > 0 {
			hasTimes = true
			break
		}
	}

	load := 0
	cost := 0.0
	t := 0.0
	cur := v.Start
	for _, st := range r.Stops {
		o := p.Orders[st.Order]
		loc := o.Pickup
		w := o.PickupWindow
		svc := o.PickupService
		if st.Leg == solver.Delivery {
			loc = o.Delivery
			w = o.DeliveryWindow
			svc = o.DeliveryService
			load -= o.Demand
		} else {
			load += o.Demand
		}
		if cur >= 0 {
			step := p.Cost(cur, loc)
			cost += step
			t += step
		}
		if w != nil && t < w.Start {
			t = w.Start
		}
		so := model.StopOut{
			LocationID:     p.Locations[loc].ID,
			OrderID:        o.ID,
			Leg:            st.Leg.String(),
			CumulativeLoad: load,
			CumulativeCost: cost,
		}
		if hasTimes {
			arr := t
			so.ArrivalTime = &arr
		}
		t += svc
		cur = loc
		if load > out.PeakLoad {
			out.PeakLoad = load
		}
		out.Stops = append(out.Stops, so)
	}
	if v.End >= 0 && cur >= 0 {
		cost += p.Cost(cur, v.End)
	}
	out.Cost = cost
	return out
}

// classify maps the report and stop reason onto the public status.
// Violations trump everything; unassigned orders mean a partial result;
// reaching a local optimum or the target earns optimal_ish, anything
// that merely ran out of budget is just feasible.
func classify(rep report.Report, m solver.Metrics) string {
	if len(rep.Violations) > 0 {
		return model.StatusInfeasible
	}
	if len(rep.Unassigned) > 0 {
		return model.StatusPartiallyUnassigned
	}
	switch m.StopReason {
	case solver.StopLocalOptimum, solver.StopTarget:
		return model.StatusOptimalIsh
	default:
		return model.StatusFeasible
	}
}
