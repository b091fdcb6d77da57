package solver

import (
	"math"
	"math/rand"
)

type moveKind int8

const (
	moveRelocate moveKind = iota
	moveSwap
	moveTwoOpt
)

// candidate is one evaluated move touching at most two routes.
type candidate struct {
	kind   moveKind
	va, vb int // vb == -1 for single-route moves
	sa, sb []Stop
	delta  float64
	peak   int // resulting max per-vehicle peak load
}

// improve runs full neighborhood scans until the budget runs out, a
// local optimum is reached, or the target cost is met. Moves are taken
// only when strictly improving; the acceptance policy may additionally
// admit a worsening move instead of stopping at a local optimum.
func (e *engine) improve(sol *Solution, m *Metrics, params Params, accept Acceptance, rng *rand.Rand) StopReason {
	for {
		if reason, over := e.overBudget(); over {
			return reason
		}
		if params.TargetCost > 0 && sol.Cost <= params.TargetCost+eps {
			return StopTarget
		}
		if params.MaxIterations > 0 && m.Iterations >= params.MaxIterations {
			return StopBudget
		}
		m.Iterations++

		best, worse, stopped := e.scan(sol)
		if stopped != "" {
			return stopped
		}
		if best == nil {
			if worse != nil && accept.Accept(worse.delta, rng) {
				e.apply(sol, m, worse)
				accept.Cool()
				continue
			}
			return StopLocalOptimum
		}
		e.apply(sol, m, best)
		m.Improvements++
		accept.Cool()
	}
}

func (e *engine) apply(sol *Solution, m *Metrics, c *candidate) {
	sol.Routes[c.va].Stops = c.sa
	if c.vb >= 0 && c.vb != c.va {
		sol.Routes[c.vb].Stops = c.sb
	}
	sol.Cost += c.delta
	switch c.kind {
	case moveRelocate:
		m.Relocates++
	case moveSwap:
		m.Swaps++
	case moveTwoOpt:
		m.TwoOpts++
	}
}

// scan evaluates the whole neighborhood in a fixed order and returns the
// best strictly improving candidate plus the least-bad worsening one
// (for non-greedy acceptance). The budget is checked between individual
// move evaluations so a deadline cuts the scan short.
func (e *engine) scan(sol *Solution) (best, worse *candidate, stopped StopReason) {
	p := e.p
	peaks := make([]int, len(sol.Routes))
	costs := make([]float64, len(sol.Routes))
	for vi, r := range sol.Routes {
		peaks[vi] = peakLoad(p, r.Stops)
		costs[vi] = routeCost(p, vi, r.Stops)
	}

	consider := func(c candidate) {
		c.peak = e.candPeak(peaks, c)
		if c.delta < -eps {
			if best == nil || c.delta < best.delta-eps || (math.Abs(c.delta-best.delta) <= eps && c.peak < best.peak) {
				cc := c
				best = &cc
			}
			return
		}
		if c.delta > eps {
			if worse == nil || c.delta < worse.delta {
				cc := c
				worse = &cc
			}
		}
	}

	// Relocate: move one pickup-delivery pair to its best position on
	// another (or the same) vehicle.
	for va := range sol.Routes {
		for _, oi := range routeOrders(sol.Routes[va].Stops) {
			if reason, over := e.overBudget(); over {
				return best, worse, reason
			}
			removed := removeOrder(sol.Routes[va].Stops, oi)
			removedCost := routeCost(p, va, removed)
			for _, vb := range e.cs.Eligible[oi] {
				target := sol.Routes[vb].Stops
				if vb == va {
					target = removed
				}
				cand, candCost, ok := e.cheapestPair(vb, target, oi)
				if !ok {
					continue
				}
				var c candidate
				if vb == va {
					c = candidate{kind: moveRelocate, va: va, vb: -1, sa: cand, delta: candCost - costs[va]}
				} else {
					c = candidate{
						kind: moveRelocate, va: va, vb: vb,
						sa:    removed,
						sb:    cand,
						delta: (removedCost - costs[va]) + (candCost - costs[vb]),
					}
				}
				consider(c)
			}
		}
	}

	// Swap: exchange two pairs between different vehicles.
	for va := range sol.Routes {
		for vb := va + 1; vb < len(sol.Routes); vb++ {
			for _, oa := range routeOrders(sol.Routes[va].Stops) {
				if !e.eligible(oa, vb) {
					continue
				}
				for _, ob := range routeOrders(sol.Routes[vb].Stops) {
					if !e.eligible(ob, va) {
						continue
					}
					if reason, over := e.overBudget(); over {
						return best, worse, reason
					}
					aStrip := removeOrder(sol.Routes[va].Stops, oa)
					bStrip := removeOrder(sol.Routes[vb].Stops, ob)
					na, ca, ok := e.cheapestPair(va, aStrip, ob)
					if !ok {
						continue
					}
					nb, cb, ok := e.cheapestPair(vb, bStrip, oa)
					if !ok {
						continue
					}
					consider(candidate{
						kind: moveSwap, va: va, vb: vb,
						sa: na, sb: nb,
						delta: (ca - costs[va]) + (cb - costs[vb]),
					})
				}
			}
		}
	}

	// 2-opt: reverse a segment within one route. The feasibility check
	// rejects reversals that would put a delivery before its pickup.
	for va := range sol.Routes {
		stops := sol.Routes[va].Stops
		for i := 0; i < len(stops)-1; i++ {
			for k := i + 1; k < len(stops); k++ {
				if reason, over := e.overBudget(); over {
					return best, worse, reason
				}
				cand := append([]Stop(nil), stops...)
				for a, b := i, k; a < b; a, b = a+1, b-1 {
					cand[a], cand[b] = cand[b], cand[a]
				}
				if !feasibleStops(p, va, cand) {
					continue
				}
				consider(candidate{
					kind: moveTwoOpt, va: va, vb: -1,
					sa:    cand,
					delta: routeCost(p, va, cand) - costs[va],
				})
			}
		}
	}

	return best, worse, ""
}

// cheapestPair finds the least-cost feasible pair insertion of an order
// into one vehicle's stop sequence.
func (e *engine) cheapestPair(vi int, stops []Stop, oi int) ([]Stop, float64, bool) {
	p := e.p
	bestCost := math.MaxFloat64
	var bestStops []Stop
	for i := 0; i <= len(stops); i++ {
		for j := i + 1; j <= len(stops)+1; j++ {
			cand := insertPair(stops, oi, i, j)
			if !feasibleStops(p, vi, cand) {
				continue
			}
			if c := routeCost(p, vi, cand); c < bestCost-eps {
				bestCost = c
				bestStops = cand
			}
		}
	}
	if bestStops == nil {
		return nil, 0, false
	}
	return bestStops, bestCost, true
}

func (e *engine) candPeak(peaks []int, c candidate) int {
	peak := 0
	for vi, pl := range peaks {
		switch vi {
		case c.va:
			pl = peakLoad(e.p, c.sa)
		case c.vb:
			pl = peakLoad(e.p, c.sb)
		}
		if pl > peak {
			peak = pl
		}
	}
	return peak
}

func (e *engine) eligible(oi, vi int) bool {
	for _, v := range e.cs.Eligible[oi] {
		if v == vi {
			return true
		}
	}
	return false
}

// routeOrders lists the orders on a route in pickup order.
func routeOrders(stops []Stop) []int {
	out := make([]int, 0, len(stops)/2)
	for _, st := range stops {
		if st.Leg == Pickup {
			out = append(out, st.Order)
		}
	}
	return out
}
