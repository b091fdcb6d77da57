// Package problem builds the immutable routing problem from the wire
// contract. All structural validation happens here, once; the search
// engine only ever sees a well-formed Problem.
package problem

import (
	"context"
	"fmt"
	"strings"

	"cartage/internal/matrix"
	"cartage/internal/model"
)

// Location roles.
const (
	RoleDepot    = "depot"
	RolePickup   = "pickup"
	RoleDelivery = "delivery"
)

type Location struct {
	ID    string
	Coord *model.Point
	Role  string
}

// Vehicle references locations by index into Problem.Locations. Start and
// End are -1 when the vehicle has no fixed terminal.
type Vehicle struct {
	ID          string
	Capacity    int
	Start       int
	End         int
	MaxDuration float64
}

type Order struct {
	ID              string
	Pickup          int
	Delivery        int
	Demand          int
	PickupWindow    *model.Window
	DeliveryWindow  *model.Window
	PickupService   float64
	DeliveryService float64
}

// Problem is the validated, immutable model of one solve. Re-solving
// after an edit constructs a fresh Problem; nothing here is patched.
type Problem struct {
	Locations []Location
	Vehicles  []Vehicle
	Orders    []Order
	Matrix    matrix.Cost

	locIndex map[string]int
}

// Cost is the travel cost between two location indices.
func (p *Problem) Cost(from, to int) float64 { return p.Matrix.At(from, to) }

// LocationIndex resolves a location ID to its index.
func (p *Problem) LocationIndex(id string) (int, bool) {
	i, ok := p.locIndex[id]
	return i, ok
}

// MaxCapacity is the largest vehicle capacity in the fleet.
func (p *Problem) MaxCapacity() int {
	max := 0
	for _, v := range p.Vehicles {
		if v.Capacity > max {
			max = v.Capacity
		}
	}
	return max
}

// FieldError points at a single offending input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// StructuralError collects every structural problem in the input so a
// caller can report all issues at once instead of fixing them one by one.
type StructuralError struct {
	Fields []FieldError
}

func (e *StructuralError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return "structural: " + strings.Join(parts, "; ")
}

type builder struct {
	fields []FieldError
}

func (b *builder) addf(field, format string, args ...any) {
	b.fields = append(b.fields, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// Build validates the input contract and returns an immutable Problem.
// The matrix is resolved through the given provider when no explicit
// matrix is supplied; pass nil for the Euclidean fallback.
func Build(ctx context.Context, in model.ProblemIn, prov matrix.Provider) (*Problem, error) {
	b := &builder{}

	locIndex := make(map[string]int, len(in.Locations))
	locs := make([]Location, 0, len(in.Locations))
	for i, l := range in.Locations {
		field := fmt.Sprintf("locations[%d]", i)
		if l.ID == "" {
			b.addf(field+".id", "must be non-empty")
			continue
		}
		if _, dup := locIndex[l.ID]; dup {
			b.addf(field+".id", "duplicate location id %q", l.ID)
			continue
		}
		if in.Matrix == nil && l.Coord == nil {
			b.addf(field+".coord", "location %q needs coordinates when no matrix is supplied", l.ID)
		}
		locIndex[l.ID] = len(locs)
		locs = append(locs, Location{ID: l.ID, Coord: l.Coord, Role: l.Role})
	}
	if len(locs) == 0 {
		b.addf("locations", "at least one location is required")
	}

	depot := -1
	for i, l := range locs {
		if l.Role == RoleDepot {
			depot = i
			break
		}
	}

	maxCap := 0
	vehIDs := map[string]bool{}
	vehs := make([]Vehicle, 0, len(in.Vehicles))
	for i, v := range in.Vehicles {
		field := fmt.Sprintf("vehicles[%d]", i)
		if v.ID == "" {
			b.addf(field+".id", "must be non-empty")
			continue
		}
		if vehIDs[v.ID] {
			b.addf(field+".id", "duplicate vehicle id %q", v.ID)
			continue
		}
		vehIDs[v.ID] = true
		if v.Capacity <= 0 {
			b.addf(field+".capacity", "must be positive, got %d", v.Capacity)
		}
		if v.Capacity > maxCap {
			maxCap = v.Capacity
		}
		if v.MaxDuration < 0 {
			b.addf(field+".maxDuration", "must be >= 0")
		}
		start, end := depot, depot
		if v.Start != "" {
			idx, ok := locIndex[v.Start]
			if !ok {
				b.addf(field+".start", "unknown location %q", v.Start)
			} else {
				start = idx
			}
		}
		if v.End != "" {
			idx, ok := locIndex[v.End]
			if !ok {
				b.addf(field+".end", "unknown location %q", v.End)
			} else {
				end = idx
			}
		}
		vehs = append(vehs, Vehicle{ID: v.ID, Capacity: v.Capacity, Start: start, End: end, MaxDuration: v.MaxDuration})
	}
	if len(vehs) == 0 {
		b.addf("vehicles", "at least one vehicle is required")
	}

	ordIDs := map[string]bool{}
	ords := make([]Order, 0, len(in.Orders))
	for i, o := range in.Orders {
		field := fmt.Sprintf("orders[%d]", i)
		if o.ID == "" {
			b.addf(field+".id", "must be non-empty")
			continue
		}
		if ordIDs[o.ID] {
			b.addf(field+".id", "duplicate order id %q", o.ID)
			continue
		}
		ordIDs[o.ID] = true
		pu, ok := locIndex[o.Pickup]
		if !ok {
			b.addf(field+".pickup", "unknown location %q", o.Pickup)
		}
		de, ok2 := locIndex[o.Delivery]
		if !ok2 {
			b.addf(field+".delivery", "unknown location %q", o.Delivery)
		}
		if o.Demand <= 0 {
			b.addf(field+".demand", "must be positive, got %d", o.Demand)
		} else if maxCap > 0 && o.Demand > maxCap {
			// Infeasible by construction: no vehicle can ever carry it.
			b.addf(field+".demand", "demand %d exceeds every vehicle capacity (max %d)", o.Demand, maxCap)
		}
		if w := o.PickupWindow; w != nil && w.End < w.Start {
			b.addf(field+".pickupWindow", "window end %v before start %v", w.End, w.Start)
		}
		if w := o.DeliveryWindow; w != nil && w.End < w.Start {
			b.addf(field+".deliveryWindow", "window end %v before start %v", w.End, w.Start)
		}
		if o.PickupService < 0 || o.DeliveryService < 0 {
			b.addf(field+".service", "service times must be >= 0")
		}
		if !ok || !ok2 {
			continue
		}
		ords = append(ords, Order{
			ID: o.ID, Pickup: pu, Delivery: de, Demand: o.Demand,
			PickupWindow: o.PickupWindow, DeliveryWindow: o.DeliveryWindow,
			PickupService: o.PickupService, DeliveryService: o.DeliveryService,
		})
	}

	if len(b.fields) > 0 {
		return nil, &StructuralError{Fields: b.fields}
	}

	var m matrix.Cost
	var err error
	if in.Matrix != nil || prov == nil {
		m, err = matrix.Resolve(ctx, len(locs), coords(locs), in.Matrix)
	} else {
		m, err = prov.Matrix(ctx, coords(locs))
		if err == nil && m.Size() != len(locs) {
			err = &matrix.MatrixError{Reason: fmt.Sprintf("provider returned %d rows for %d locations", m.Size(), len(locs))}
		}
	}
	if err != nil {
		return nil, err
	}

	return &Problem{Locations: locs, Vehicles: vehs, Orders: ords, Matrix: m, locIndex: locIndex}, nil
}

func coords(locs []Location) []model.Point {
	out := make([]model.Point, 0, len(locs))
	for _, l := range locs {
		if l.Coord != nil {
			out = append(out, *l.Coord)
		}
	}
	return out
}
