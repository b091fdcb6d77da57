// Package solver implements the two-phase route search engine: a
// deterministic greedy-insertion construction followed by local-search
// improvement under a time/iteration budget.
package solver

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"cartage/internal/constraint"
	"cartage/internal/problem"
)

const eps = 1e-9

// StopReason is the terminal state of the improvement phase. Budget
// exhaustion is a normal outcome, not an error.
type StopReason string

const (
	StopLocalOptimum StopReason = "local_optimum"
	StopBudget       StopReason = "budget_exhausted"
	StopTarget       StopReason = "target_reached"
	StopCanceled     StopReason = "canceled"
)

// InternalError signals a broken engine invariant (e.g. negative load
// after an applied move). It is a bug report, never swallowed.
type InternalError struct {
	Detail string
}

func (e *InternalError) Error() string { return "solver: internal invariant violated: " + e.Detail }

// Acceptance decides whether a non-improving move is still taken.
// Strictly improving moves are always taken. The default Greedy policy
// rejects everything else, which keeps the search deterministic.
type Acceptance interface {
	Accept(delta float64, rng *rand.Rand) bool
	Cool()
}

// Greedy rejects all non-improving moves.
type Greedy struct{}

func (Greedy) Accept(float64, *rand.Rand) bool { return false }
func (Greedy) Cool()                           {}

// Annealing takes worsening moves with probability exp(-delta/temp),
// cooling by a constant factor per iteration.
type Annealing struct {
	Temp    float64
	Cooling float64
}

func (a *Annealing) Accept(delta float64, rng *rand.Rand) bool {
	if a.Temp <= 0 {
		return false
	}
	return rng.Float64() < math.Exp(-delta/a.Temp)
}

func (a *Annealing) Cool() {
	c := a.Cooling
	if c <= 0 || c >= 1 {
		c = 0.995
	}
	a.Temp *= c
}

type Params struct {
	TimeBudget    time.Duration
	MaxIterations int
	TargetCost    float64
	Seed          int64
	Accept        Acceptance
}

type Metrics struct {
	Iterations   int
	Improvements int
	Relocates    int
	Swaps        int
	TwoOpts      int
	InitialCost  float64
	FinalCost    float64
	StopReason   StopReason
	Elapsed      time.Duration
}

// Solve runs construction then improvement. Given identical inputs the
// construction phase is bit-for-bit reproducible; the improvement phase
// is deterministic under the default Greedy acceptance and seeded
// otherwise. Cancellation is honored between move evaluations, so a
// caller-imposed deadline cuts a neighborhood scan short mid-way.
func Solve(ctx context.Context, p *problem.Problem, cs *constraint.Set, params Params) (Solution, Metrics, error) {
	start := time.Now()
	var deadline time.Time
	if params.TimeBudget > 0 {
		deadline = start.Add(params.TimeBudget)
	}
	accept := params.Accept
	if accept == nil {
		accept = Greedy{}
	}
	seed := params.Seed
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewSource(seed))

	e := &engine{p: p, cs: cs, deadline: deadline, ctx: ctx}

	sol := e.construct()
	m := Metrics{InitialCost: sol.Cost}

	reason := e.improve(&sol, &m, params, accept, rng)
	m.StopReason = reason
	m.FinalCost = sol.Cost
	m.Elapsed = time.Since(start)

	if err := e.checkInvariants(sol); err != nil {
		return Solution{}, m, err
	}
	return sol, m, nil
}

type engine struct {
	p        *problem.Problem
	cs       *constraint.Set
	deadline time.Time
	ctx      context.Context
}

// overBudget is the single cancellation point; it is cheap enough to sit
// between individual move evaluations.
func (e *engine) overBudget() (StopReason, bool) {
	select {
	case <-e.ctx.Done():
		return StopCanceled, true
	default:
	}
	if !e.deadline.IsZero() && time.Now().After(e.deadline) {
		return StopBudget, true
	}
	return "", false
}

// construct builds the initial assignment: orders sorted by tightest
// time window, then largest demand, then ID, each inserted at the
// cheapest feasible pair position over all eligible vehicles.
func (e *engine) construct() Solution {
	p := e.p
	routes := make([]Route, len(p.Vehicles))
	for vi := range routes {
		routes[vi] = Route{Vehicle: vi}
	}

	var unassigned []int
	idx := make([]int, 0, len(p.Orders))
	for oi := range p.Orders {
		if e.cs.IsExcluded(oi) {
			// pre-rejected orders surface as unassigned, not as errors
			unassigned = append(unassigned, oi)
			continue
		}
		idx = append(idx, oi)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		oa, ob := p.Orders[idx[a]], p.Orders[idx[b]]
		ta, tb := tightness(oa), tightness(ob)
		if ta != tb {
			return ta < tb
		}
		if oa.Demand != ob.Demand {
			return oa.Demand > ob.Demand
		}
		return oa.ID < ob.ID
	})

	for _, oi := range idx {
		vi, i, j, _, ok := e.bestInsertion(routes, oi)
		if !ok {
			unassigned = append(unassigned, oi)
			continue
		}
		routes[vi].Stops = insertPair(routes[vi].Stops, oi, i, j)
	}

	return Solution{Routes: routes, Unassigned: unassigned, Cost: solutionCost(p, routes)}
}

// bestInsertion scans every eligible vehicle and pair position for the
// least marginal cost increase. Scan order is fixed, ties keep the first
// candidate, so construction is deterministic.
func (e *engine) bestInsertion(routes []Route, oi int) (veh, pi, di int, delta float64, ok bool) {
	p := e.p
	best := math.MaxFloat64
	for _, vi := range e.cs.Eligible[oi] {
		stops := routes[vi].Stops
		base := routeCost(p, vi, stops)
		for i := 0; i <= len(stops); i++ {
			for j := i + 1; j <= len(stops)+1; j++ {
				cand := insertPair(stops, oi, i, j)
				if !feasibleStops(p, vi, cand) {
					continue
				}
				d := routeCost(p, vi, cand) - base
				if d < best-eps {
					best = d
					veh, pi, di = vi, i, j
					ok = true
				}
			}
		}
	}
	return veh, pi, di, best, ok
}

// tightness is the priority key for construction ordering: orders with
// time windows first, tightest window first. Orders without windows sort
// last via +Inf.
func tightness(o problem.Order) float64 {
	t := math.Inf(1)
	if o.PickupWindow != nil {
		t = o.PickupWindow.End - o.PickupWindow.Start
	}
	if o.DeliveryWindow != nil {
		if d := o.DeliveryWindow.End - o.DeliveryWindow.Start; d < t {
			t = d
		}
	}
	return t
}

// checkInvariants is a defensive sweep after search: every assigned
// order exactly once, loads within capacity, pickups before deliveries.
func (e *engine) checkInvariants(sol Solution) error {
	p := e.p
	seen := map[int]int{}
	for _, r := range sol.Routes {
		load := 0
		picked := map[int]bool{}
		for _, st := range r.Stops {
			if st.Leg == Pickup {
				picked[st.Order] = true
				seen[st.Order]++
			} else if !picked[st.Order] {
				return &InternalError{Detail: "delivery precedes pickup in final solution"}
			}
			load += stopDemand(p, st)
			if load < 0 {
				return &InternalError{Detail: "negative remaining load in final solution"}
			}
			if load > p.Vehicles[r.Vehicle].Capacity {
				return &InternalError{Detail: "capacity exceeded in final solution"}
			}
		}
	}
	for oi, n := range seen {
		if n > 1 {
			return &InternalError{Detail: "order " + p.Orders[oi].ID + " assigned more than once"}
		}
	}
	return nil
}
