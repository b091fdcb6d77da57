package solver

import (
	"cartage/internal/model"
	"cartage/internal/problem"
)

// Leg marks which half of an order a stop executes.
type Leg int8

const (
	Pickup Leg = iota
	Delivery
)

func (l Leg) String() string {
	if l == Pickup {
		return "pickup"
	}
	return "delivery"
}

// Stop references one order leg. The location follows from the order.
type Stop struct {
	Order int
	Leg   Leg
}

// Route is the ordered stop sequence of one vehicle. Routes are aligned
// with the problem's vehicle slice; unused vehicles keep empty routes.
type Route struct {
	Vehicle int
	Stops   []Stop
}

// Solution is one candidate assignment. The Cost field is the engine's
// running total; the validator recomputes it independently.
type Solution struct {
	Routes     []Route
	Unassigned []int
	Cost       float64
}

func stopLoc(p *problem.Problem, st Stop) int {
	o := p.Orders[st.Order]
	if st.Leg == Pickup {
		return o.Pickup
	}
	return o.Delivery
}

func stopWindow(p *problem.Problem, st Stop) *model.Window {
	o := p.Orders[st.Order]
	if st.Leg == Pickup {
		return o.PickupWindow
	}
	return o.DeliveryWindow
}

func stopService(p *problem.Problem, st Stop) float64 {
	o := p.Orders[st.Order]
	if st.Leg == Pickup {
		return o.PickupService
	}
	return o.DeliveryService
}

func stopDemand(p *problem.Problem, st Stop) int {
	o := p.Orders[st.Order]
	if st.Leg == Pickup {
		return o.Demand
	}
	return -o.Demand
}

// routeCost sums consecutive travel costs including the vehicle's start
// leg and, when an end location is fixed, the return leg.
func routeCost(p *problem.Problem, vi int, stops []Stop) float64 {
	v := p.Vehicles[vi]
	total := 0.0
	cur := v.Start
	for _, st := range stops {
		loc := stopLoc(p, st)
		if cur >= 0 {
			total += p.Cost(cur, loc)
		}
		cur = loc
	}
	if v.End >= 0 && cur >= 0 && len(stops) > 0 {
		total += p.Cost(cur, v.End)
	}
	return total
}

func solutionCost(p *problem.Problem, routes []Route) float64 {
	total := 0.0
	for _, r := range routes {
		total += routeCost(p, r.Vehicle, r.Stops)
	}
	return total
}

// peakLoad is the maximum on-board demand over all prefixes of a route.
func peakLoad(p *problem.Problem, stops []Stop) int {
	load, peak := 0, 0
	for _, st := range stops {
		load += stopDemand(p, st)
		if load > peak {
			peak = load
		}
	}
	return peak
}

func maxPeakLoad(p *problem.Problem, routes []Route) int {
	peak := 0
	for _, r := range routes {
		if pl := peakLoad(p, r.Stops); pl > peak {
			peak = pl
		}
	}
	return peak
}

// feasibleStops checks capacity, pairing, and the time axis for one
// vehicle's stop sequence. Travel costs double as travel times; arrival
// before a window opens means waiting, arrival after it closes is
// infeasible.
func feasibleStops(p *problem.Problem, vi int, stops []Stop) bool {
	v := p.Vehicles[vi]
	load := 0
	picked := map[int]bool{}
	t := 0.0
	cur := v.Start
	for _, st := range stops {
		if st.Leg == Pickup {
			picked[st.Order] = true
		} else if !picked[st.Order] {
			return false // delivery before its pickup
		}
		load += stopDemand(p, st)
		if load < 0 || load > v.Capacity {
			return false
		}
		loc := stopLoc(p, st)
		if cur >= 0 {
			t += p.Cost(cur, loc)
		}
		if w := stopWindow(p, st); w != nil {
			if t < w.Start {
				t = w.Start
			}
			if t > w.End {
				return false
			}
		}
		t += stopService(p, st)
		cur = loc
	}
	if v.End >= 0 && cur >= 0 && len(stops) > 0 {
		t += p.Cost(cur, v.End)
	}
	if v.MaxDuration > 0 && t > v.MaxDuration {
		return false
	}
	return true
}

// insertPair returns a copy of stops with the order's pickup at position
// i and its delivery at position j of the intermediate sequence, j > i.
func insertPair(stops []Stop, order, i, j int) []Stop {
	out := make([]Stop, 0, len(stops)+2)
	out = append(out, stops[:i]...)
	out = append(out, Stop{Order: order, Leg: Pickup})
	out = append(out, stops[i:]...)
	// j indexes into the sequence that already contains the pickup.
	tail := append([]Stop(nil), out[j:]...)
	out = append(out[:j], Stop{Order: order, Leg: Delivery})
	out = append(out, tail...)
	return out
}

// removeOrder returns a copy of stops without either leg of the order.
func removeOrder(stops []Stop, order int) []Stop {
	out := make([]Stop, 0, len(stops))
	for _, st := range stops {
		if st.Order != order {
			out = append(out, st)
		}
	}
	return out
}

func cloneRoutes(routes []Route) []Route {
	out := make([]Route, len(routes))
	for i, r := range routes {
		out[i] = Route{Vehicle: r.Vehicle, Stops: append([]Stop(nil), r.Stops...)}
	}
	return out
}
