package constraint

import (
    "context"
    "errors"
    "testing"

    "cartage/internal/model"
    "cartage/internal/problem"
)

func pt(x, y float64) *model.Point { return &model.Point{X: x, Y: y} }

func build(t *testing.T, in model.ProblemIn) *problem.Problem {
    t.Helper()
    p, err := problem.Build(context.Background(), in, nil)
    if err != nil {
        t.Fatalf("problem build: %v", err)
    }
    return p
}

func TestEligibilityByCapacity(t *testing.T) {
    p := build(t, model.ProblemIn{
        Locations: []model.LocationIn{
            {ID: "d", Coord: pt(0, 0), Role: "depot"},
            {ID: "a", Coord: pt(1, 0)},
            {ID: "b", Coord: pt(2, 0)},
        },
        Vehicles: []model.VehicleIn{
            {ID: "small", Capacity: 1},
            {ID: "large", Capacity: 5},
        },
        Orders: []model.OrderIn{
            {ID: "light", Pickup: "a", Delivery: "b", Demand: 1},
            {ID: "heavy", Pickup: "a", Delivery: "b", Demand: 3},
        },
    })
    cs, err := Build(p)
    if err != nil {
        t.Fatalf("constraint build: %v", err)
    }
    if len(cs.Eligible[0]) != 2 {
        t.Fatalf("light order should fit both vehicles: %v", cs.Eligible[0])
    }
    if len(cs.Eligible[1]) != 1 || cs.Eligible[1][0] != 1 {
        t.Fatalf("heavy order should fit only the large vehicle: %v", cs.Eligible[1])
    }
}

func TestImpossibleWindowExcluded(t *testing.T) {
    p := build(t, model.ProblemIn{
        Locations: []model.LocationIn{
            {ID: "d", Coord: pt(0, 0), Role: "depot"},
            {ID: "a", Coord: pt(10, 0)},
            {ID: "b", Coord: pt(20, 0)},
        },
        Vehicles: []model.VehicleIn{{ID: "v1", Capacity: 2}},
        Orders: []model.OrderIn{
            {ID: "ok", Pickup: "a", Delivery: "b", Demand: 1},
            // pickup at earliest 0, travel 10, delivery window closes at 5
            {ID: "late", Pickup: "a", Delivery: "b", Demand: 1,
                PickupWindow:   &model.Window{Start: 0, End: 100},
                DeliveryWindow: &model.Window{Start: 0, End: 5}},
        },
    })
    cs, err := Build(p)
    var infErr *InfeasibleOrderError
    if !errors.As(err, &infErr) {
        t.Fatalf("want InfeasibleOrderError, got %v", err)
    }
    if len(infErr.Orders) != 1 || infErr.Orders[0].Order != 1 {
        t.Fatalf("unexpected exclusions: %+v", infErr.Orders)
    }
    // the set stays usable for the rest of the problem
    if cs == nil || cs.IsExcluded(0) || !cs.IsExcluded(1) {
        t.Fatalf("exclusion flags wrong")
    }
}

func TestUnreachablePickupExcluded(t *testing.T) {
    p := build(t, model.ProblemIn{
        Locations: []model.LocationIn{
            {ID: "d", Coord: pt(0, 0), Role: "depot"},
            {ID: "far", Coord: pt(1000, 0)},
            {ID: "b", Coord: pt(1001, 0)},
        },
        Vehicles: []model.VehicleIn{{ID: "v1", Capacity: 2}},
        Orders: []model.OrderIn{
            {ID: "o1", Pickup: "far", Delivery: "b", Demand: 1,
                PickupWindow: &model.Window{Start: 0, End: 10}},
        },
    })
    _, err := Build(p)
    var infErr *InfeasibleOrderError
    if !errors.As(err, &infErr) {
        t.Fatalf("want InfeasibleOrderError, got %v", err)
    }
}
