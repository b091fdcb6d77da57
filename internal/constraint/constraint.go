// Package constraint translates the problem into solver-facing
// constraint structures and rejects provably impossible orders before
// any search budget is spent on them.
package constraint

import (
	"fmt"
	"strings"

	"cartage/internal/problem"
)

// Set is the solver-internal view of the problem's constraints. It is
// immutable after Build and safe to share across concurrent solves.
type Set struct {
	// Eligible lists, per order, the vehicle indices whose capacity fits
	// the order's demand.
	Eligible [][]int
	// Excluded holds orders that cannot be served by any route at all;
	// the search engine never sees them.
	Excluded []Exclusion

	excluded map[int]bool
}

// Exclusion names one structurally infeasible order.
type Exclusion struct {
	Order  int
	Reason string
}

// InfeasibleOrderError reports orders rejected up front. The solve
// continues for the remaining orders; callers surface the rejected ones
// as unassigned.
type InfeasibleOrderError struct {
	Orders []Exclusion
}

func (e *InfeasibleOrderError) Error() string {
	parts := make([]string, len(e.Orders))
	for i, x := range e.Orders {
		parts[i] = fmt.Sprintf("order %d: %s", x.Order, x.Reason)
	}
	return "infeasible orders: " + strings.Join(parts, "; ")
}

// IsExcluded reports whether an order was rejected at build time.
func (s *Set) IsExcluded(order int) bool { return s.excluded[order] }

// Build derives the constraint set. The returned Set is usable even when
// the error is non-nil: an *InfeasibleOrderError only marks the named
// orders excluded, the rest of the problem remains solvable.
func Build(p *problem.Problem) (*Set, error) {
	s := &Set{
		Eligible: make([][]int, len(p.Orders)),
		excluded: map[int]bool{},
	}

	for oi, o := range p.Orders {
		for vi, v := range p.Vehicles {
			if o.Demand <= v.Capacity {
				s.Eligible[oi] = append(s.Eligible[oi], vi)
			}
		}
		if reason := infeasibleReason(p, oi); reason != "" {
			s.Excluded = append(s.Excluded, Exclusion{Order: oi, Reason: reason})
			s.excluded[oi] = true
		}
	}

	if len(s.Excluded) > 0 {
		return s, &InfeasibleOrderError{Orders: s.Excluded}
	}
	return s, nil
}

// infeasibleReason checks whether an order can possibly be served under
// its time windows, independent of what else is on the route. Travel
// costs double as travel times.
func infeasibleReason(p *problem.Problem, oi int) string {
	o := p.Orders[oi]
	pw, dw := o.PickupWindow, o.DeliveryWindow
	if pw == nil && dw == nil {
		return ""
	}
	if pw != nil && dw != nil {
		// Earliest possible arrival at the delivery comes from serving the
		// pickup as early as allowed and driving straight over.
		earliest := pw.Start + o.PickupService + p.Cost(o.Pickup, o.Delivery)
		if earliest > dw.End {
			return fmt.Sprintf("pickup window start %v plus service and direct travel arrives at %v, after delivery window end %v", pw.Start, earliest, dw.End)
		}
	}
	if pw != nil {
		// Some vehicle must be able to reach the pickup before its window
		// closes, leaving its start at time zero.
		reachable := false
		for _, v := range p.Vehicles {
			depart := 0.0
			if v.Start >= 0 {
				depart = p.Cost(v.Start, o.Pickup)
			}
			if depart <= pw.End {
				reachable = true
				break
			}
		}
		if !reachable {
			return fmt.Sprintf("no vehicle can reach the pickup before its window closes at %v", pw.End)
		}
	}
	return ""
}
