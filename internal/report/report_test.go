package report

import (
    "context"
    "math"
    "reflect"
    "testing"

    "cartage/internal/constraint"
    "cartage/internal/model"
    "cartage/internal/problem"
    "cartage/internal/solver"
)

func pt(x, y float64) *model.Point { return &model.Point{X: x, Y: y} }

func testProblem(t *testing.T) *problem.Problem {
    t.Helper()
    p, err := problem.Build(context.Background(), model.ProblemIn{
        Locations: []model.LocationIn{
            {ID: "d", Coord: pt(0, 0), Role: "depot"},
            {ID: "a", Coord: pt(1, 0)},
            {ID: "b", Coord: pt(2, 0)},
            {ID: "c", Coord: pt(0, 1)},
            {ID: "e", Coord: pt(0, 2)},
        },
        Vehicles: []model.VehicleIn{{ID: "v1", Capacity: 1}},
        Orders: []model.OrderIn{
            {ID: "o1", Pickup: "a", Delivery: "b", Demand: 1},
            {ID: "o2", Pickup: "c", Delivery: "e", Demand: 1},
        },
    }, nil)
    if err != nil {
        t.Fatalf("problem build: %v", err)
    }
    return p
}

func TestValidateMatchesEngineCost(t *testing.T) {
    p := testProblem(t)
    cs, err := constraint.Build(p)
    if err != nil {
        t.Fatalf("constraint build: %v", err)
    }
    sol, _, err := solver.Solve(context.Background(), p, cs, solver.Params{MaxIterations: 50})
    if err != nil {
        t.Fatalf("solve: %v", err)
    }
    rep := Validate(p, sol)
    if !rep.Feasible {
        t.Fatalf("violations: %+v", rep.Violations)
    }
    if math.Abs(rep.TotalCost-sol.Cost) > 1e-6 {
        t.Fatalf("recomputed cost %v, engine reported %v", rep.TotalCost, sol.Cost)
    }
    if len(rep.Loads) != 1 || rep.Loads[0].Peak != 1 {
        t.Fatalf("loads: %+v", rep.Loads)
    }
}

func TestValidateIdempotent(t *testing.T) {
    p := testProblem(t)
    sol := solver.Solution{Routes: []solver.Route{{Vehicle: 0, Stops: []solver.Stop{
        {Order: 0, Leg: solver.Pickup}, {Order: 0, Leg: solver.Delivery},
        {Order: 1, Leg: solver.Pickup}, {Order: 1, Leg: solver.Delivery},
    }}}}
    r1 := Validate(p, sol)
    r2 := Validate(p, sol)
    if !reflect.DeepEqual(r1, r2) {
        t.Fatalf("validation not idempotent:\n%+v\n%+v", r1, r2)
    }
}

func TestValidateDetectsPairingBreak(t *testing.T) {
    p := testProblem(t)
    sol := solver.Solution{Routes: []solver.Route{{Vehicle: 0, Stops: []solver.Stop{
        {Order: 0, Leg: solver.Delivery}, {Order: 0, Leg: solver.Pickup},
        {Order: 1, Leg: solver.Pickup}, {Order: 1, Leg: solver.Delivery},
    }}}}
    rep := Validate(p, sol)
    if rep.Feasible {
        t.Fatalf("expected violation")
    }
    found := false
    for _, v := range rep.Violations {
        if v.Kind == KindPairing && v.OrderID == "o1" {
            found = true
        }
    }
    if !found {
        t.Fatalf("no pairing violation in %+v", rep.Violations)
    }
}

func TestValidateDetectsCapacityBreach(t *testing.T) {
    p := testProblem(t)
    // both orders on board at once on a capacity-1 vehicle
    sol := solver.Solution{Routes: []solver.Route{{Vehicle: 0, Stops: []solver.Stop{
        {Order: 0, Leg: solver.Pickup}, {Order: 1, Leg: solver.Pickup},
        {Order: 0, Leg: solver.Delivery}, {Order: 1, Leg: solver.Delivery},
    }}}}
    rep := Validate(p, sol)
    found := false
    for _, v := range rep.Violations {
        if v.Kind == KindCapacity {
            found = true
        }
    }
    if !found {
        t.Fatalf("no capacity violation in %+v", rep.Violations)
    }
}

func TestValidateAccountsForEveryOrder(t *testing.T) {
    p := testProblem(t)

    // order o2 silently dropped
    missing := solver.Solution{Routes: []solver.Route{{Vehicle: 0, Stops: []solver.Stop{
        {Order: 0, Leg: solver.Pickup}, {Order: 0, Leg: solver.Delivery},
    }}}}
    rep := Validate(p, missing)
    if kinds(rep)[KindMissing] == 0 {
        t.Fatalf("missing order not flagged: %+v", rep.Violations)
    }

    // order o1 served twice
    dup := solver.Solution{Routes: []solver.Route{{Vehicle: 0, Stops: []solver.Stop{
        {Order: 0, Leg: solver.Pickup}, {Order: 0, Leg: solver.Delivery},
        {Order: 0, Leg: solver.Pickup}, {Order: 0, Leg: solver.Delivery},
        {Order: 1, Leg: solver.Pickup}, {Order: 1, Leg: solver.Delivery},
    }}}}
    rep = Validate(p, dup)
    if kinds(rep)[KindDuplicated] == 0 {
        t.Fatalf("duplicated order not flagged: %+v", rep.Violations)
    }

    // o2 unassigned is fine when declared
    declared := solver.Solution{
        Routes: []solver.Route{{Vehicle: 0, Stops: []solver.Stop{
            {Order: 0, Leg: solver.Pickup}, {Order: 0, Leg: solver.Delivery},
        }}},
        Unassigned: []int{1},
    }
    rep = Validate(p, declared)
    if !rep.Feasible {
        t.Fatalf("declared unassigned flagged: %+v", rep.Violations)
    }
    if len(rep.Unassigned) != 1 || rep.Unassigned[0] != "o2" {
        t.Fatalf("unassigned ids: %v", rep.Unassigned)
    }
}

func TestValidateTimeWindow(t *testing.T) {
    p, err := problem.Build(context.Background(), model.ProblemIn{
        Locations: []model.LocationIn{
            {ID: "d", Coord: pt(0, 0), Role: "depot"},
            {ID: "a", Coord: pt(10, 0)},
            {ID: "b", Coord: pt(20, 0)},
        },
        Vehicles: []model.VehicleIn{{ID: "v1", Capacity: 1}},
        Orders: []model.OrderIn{
            {ID: "o1", Pickup: "a", Delivery: "b", Demand: 1,
                DeliveryWindow: &model.Window{Start: 0, End: 15}},
        },
    }, nil)
    if err != nil {
        t.Fatalf("problem build: %v", err)
    }
    sol := solver.Solution{Routes: []solver.Route{{Vehicle: 0, Stops: []solver.Stop{
        {Order: 0, Leg: solver.Pickup}, {Order: 0, Leg: solver.Delivery},
    }}}}
    rep := Validate(p, sol)
    if kinds(rep)[KindTimeWindow] == 0 {
        t.Fatalf("late delivery not flagged: %+v", rep.Violations)
    }
}

func kinds(rep Report) map[string]int {
    m := map[string]int{}
    for _, v := range rep.Violations {
        m[v.Kind]++
    }
    return m
}
