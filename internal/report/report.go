// Package report validates produced solutions against the problem from
// scratch. It is the single source of truth for acceptability: costs are
// recomputed from the matrix and every constraint is re-checked, so the
// engine's own bookkeeping is advisory only.
package report

import (
	"fmt"

	"cartage/internal/model"
	"cartage/internal/problem"
	"cartage/internal/solver"
)

// Violation kinds.
const (
	KindCapacity    = "capacity_exceeded"
	KindPairing     = "pairing_broken"
	KindTimeWindow  = "time_window_missed"
	KindMaxDuration = "max_duration_exceeded"
	KindMissing     = "order_missing"
	KindDuplicated  = "order_duplicated"
)

type Violation struct {
	Kind      string
	OrderID   string
	VehicleID string
	Detail    string
}

// LoadPoint is one step of a vehicle's load timeline.
type LoadPoint struct {
	LocationID string
	Load       int
	Arrival    float64
}

type VehicleLoad struct {
	VehicleID string
	Cost      float64
	Peak      int
	Timeline  []LoadPoint
}

// Report is the validation outcome. Validating the same solution twice
// yields the same report; nothing here mutates the solution.
type Report struct {
	TotalCost  float64
	Feasible   bool
	Loads      []VehicleLoad
	Violations []Violation
	Unassigned []string
}

// Validate re-derives cost, load profiles, and constraint compliance for
// a solution.
func Validate(p *problem.Problem, sol solver.Solution) Report {
	rep := Report{}
	assigned := map[int]int{}

	for _, r := range sol.Routes {
		v := p.Vehicles[r.Vehicle]
		vl := VehicleLoad{VehicleID: v.ID}
		load := 0
		t := 0.0
		cost := 0.0
		cur := v.Start
		picked := map[int]bool{}
		for _, st := range r.Stops {
			o := p.Orders[st.Order]
			loc := locOf(p, st)
			if cur >= 0 {
				step := p.Cost(cur, loc)
				cost += step
				t += step
			}
			if st.Leg == solver.Pickup {
				picked[st.Order] = true
				assigned[st.Order]++
				load += o.Demand
			} else {
				if !picked[st.Order] {
					rep.Violations = append(rep.Violations, Violation{
						Kind: KindPairing, OrderID: o.ID, VehicleID: v.ID,
						Detail: "delivery scheduled before pickup",
					})
				}
				load -= o.Demand
			}
			if load > v.Capacity {
				rep.Violations = append(rep.Violations, Violation{
					Kind: KindCapacity, OrderID: o.ID, VehicleID: v.ID,
					Detail: fmt.Sprintf("load %d exceeds capacity %d", load, v.Capacity),
				})
			}
			if w := windowOf(p, st); w != nil {
				if t < w.Start {
					t = w.Start
				}
				if t > w.End {
					rep.Violations = append(rep.Violations, Violation{
						Kind: KindTimeWindow, OrderID: o.ID, VehicleID: v.ID,
						Detail: fmt.Sprintf("arrival %v after window end %v", t, w.End),
					})
				}
			}
			vl.Timeline = append(vl.Timeline, LoadPoint{LocationID: p.Locations[loc].ID, Load: load, Arrival: t})
			if load > vl.Peak {
				vl.Peak = load
			}
			t += serviceOf(p, st)
			cur = loc
		}
		if v.End >= 0 && cur >= 0 && len(r.Stops) > 0 {
			step := p.Cost(cur, v.End)
			cost += step
			t += step
		}
		if v.MaxDuration > 0 && t > v.MaxDuration {
			rep.Violations = append(rep.Violations, Violation{
				Kind: KindMaxDuration, VehicleID: v.ID,
				Detail: fmt.Sprintf("route duration %v exceeds limit %v", t, v.MaxDuration),
			})
		}
		vl.Cost = cost
		rep.TotalCost += cost
		rep.Loads = append(rep.Loads, vl)
	}

	unassigned := map[int]bool{}
	for _, oi := range sol.Unassigned {
		unassigned[oi] = true
		rep.Unassigned = append(rep.Unassigned, p.Orders[oi].ID)
	}
	for oi, o := range p.Orders {
		switch n := assigned[oi]; {
		case n == 0 && !unassigned[oi]:
			rep.Violations = append(rep.Violations, Violation{
				Kind: KindMissing, OrderID: o.ID,
				Detail: "order neither routed nor reported unassigned",
			})
		case n > 1:
			rep.Violations = append(rep.Violations, Violation{
				Kind: KindDuplicated, OrderID: o.ID,
				Detail: fmt.Sprintf("order served %d times", n),
			})
		case n == 1 && unassigned[oi]:
			rep.Violations = append(rep.Violations, Violation{
				Kind: KindDuplicated, OrderID: o.ID,
				Detail: "order both routed and reported unassigned",
			})
		}
	}

	rep.Feasible = len(rep.Violations) == 0
	return rep
}

func locOf(p *problem.Problem, st solver.Stop) int {
	o := p.Orders[st.Order]
	if st.Leg == solver.Pickup {
		return o.Pickup
	}
	return o.Delivery
}

func windowOf(p *problem.Problem, st solver.Stop) *model.Window {
	o := p.Orders[st.Order]
	if st.Leg == solver.Pickup {
		return o.PickupWindow
	}
	return o.DeliveryWindow
}

func serviceOf(p *problem.Problem, st solver.Stop) float64 {
	o := p.Orders[st.Order]
	if st.Leg == solver.Pickup {
		return o.PickupService
	}
	return o.DeliveryService
}
