package problem

import (
	"fmt"

	"cartage/internal/model"
)

// Derive produces a new problem input from a snapshot plus typed edits.
// The snapshot is copied, never mutated: orders and vehicle counts are
// the problem's identity, so any change yields a fresh problem that must
// be re-built and re-solved from scratch.
func Derive(in model.ProblemIn, req model.DeriveRequest) (model.ProblemIn, error) {
	out := model.ProblemIn{
		Locations: append([]model.LocationIn(nil), in.Locations...),
		Vehicles:  append([]model.VehicleIn(nil), in.Vehicles...),
		Orders:    append([]model.OrderIn(nil), in.Orders...),
		Matrix:    in.Matrix,
	}

	drop := map[int]bool{}
	for _, idx := range req.RemoveOrderIndices {
		if idx < 0 || idx >= len(out.Orders) {
			return model.ProblemIn{}, fmt.Errorf("derive: order index %d out of range (have %d orders)", idx, len(out.Orders))
		}
		drop[idx] = true
	}
	for _, id := range req.RemoveOrderIDs {
		found := false
		for i, o := range out.Orders {
			if o.ID == id {
				drop[i] = true
				found = true
				break
			}
		}
		if !found {
			return model.ProblemIn{}, fmt.Errorf("derive: unknown order id %q", id)
		}
	}
	if len(drop) > 0 {
		kept := make([]model.OrderIn, 0, len(out.Orders)-len(drop))
		for i, o := range out.Orders {
			if !drop[i] {
				kept = append(kept, o)
			}
		}
		out.Orders = kept
	}

	if req.FleetSize != nil {
		n := *req.FleetSize
		if n <= 0 {
			return model.ProblemIn{}, fmt.Errorf("derive: fleet size must be positive, got %d", n)
		}
		fleet := make([]model.VehicleIn, n)
		// Grow by cloning the first vehicle's shape, shrink by truncation.
		template := model.VehicleIn{ID: "veh", Capacity: 1}
		if len(out.Vehicles) > 0 {
			template = out.Vehicles[0]
		}
		for i := 0; i < n; i++ {
			if i < len(out.Vehicles) {
				fleet[i] = out.Vehicles[i]
				continue
			}
			v := template
			v.ID = fmt.Sprintf("%s-%d", template.ID, i+1)
			fleet[i] = v
		}
		out.Vehicles = fleet
	}

	if req.VehicleCapacity != nil {
		c := *req.VehicleCapacity
		if c <= 0 {
			return model.ProblemIn{}, fmt.Errorf("derive: vehicle capacity must be positive, got %d", c)
		}
		for i := range out.Vehicles {
			out.Vehicles[i].Capacity = c
		}
	}

	if req.ServiceTime != nil {
		st := *req.ServiceTime
		if st < 0 {
			return model.ProblemIn{}, fmt.Errorf("derive: service time must be >= 0, got %v", st)
		}
		for i := range out.Orders {
			out.Orders[i].PickupService = st
			out.Orders[i].DeliveryService = st
		}
	}

	for id, w := range req.PickupWindows {
		i, err := orderIndex(out.Orders, id)
		if err != nil {
			return model.ProblemIn{}, err
		}
		win := w
		out.Orders[i].PickupWindow = &win
	}
	for id, w := range req.DeliveryWindows {
		i, err := orderIndex(out.Orders, id)
		if err != nil {
			return model.ProblemIn{}, err
		}
		win := w
		out.Orders[i].DeliveryWindow = &win
	}

	return out, nil
}

func orderIndex(orders []model.OrderIn, id string) (int, error) {
	for i, o := range orders {
		if o.ID == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("derive: unknown order id %q", id)
}
