package solver

import (
    "context"
    "math"
    "reflect"
    "testing"
    "time"

    "cartage/internal/constraint"
    "cartage/internal/model"
    "cartage/internal/problem"
)

func pt(x, y float64) *model.Point { return &model.Point{X: x, Y: y} }

func buildProblem(t *testing.T, in model.ProblemIn) (*problem.Problem, *constraint.Set) {
    t.Helper()
    p, err := problem.Build(context.Background(), in, nil)
    if err != nil {
        t.Fatalf("problem build: %v", err)
    }
    cs, err := constraint.Build(p)
    if err != nil {
        var infErr *constraint.InfeasibleOrderError
        if !asInfeasible(err, &infErr) {
            t.Fatalf("constraint build: %v", err)
        }
    }
    return p, cs
}

func asInfeasible(err error, target **constraint.InfeasibleOrderError) bool {
    e, ok := err.(*constraint.InfeasibleOrderError)
    if ok {
        *target = e
    }
    return ok
}

func singleOrderInput() model.ProblemIn {
    return model.ProblemIn{
        Locations: []model.LocationIn{
            {ID: "d", Coord: pt(0, 0), Role: "depot"},
            {ID: "a", Coord: pt(1, 0)},
            {ID: "b", Coord: pt(2, 0)},
        },
        Vehicles: []model.VehicleIn{{ID: "v1", Capacity: 1}},
        Orders:   []model.OrderIn{{ID: "o1", Pickup: "a", Delivery: "b", Demand: 1}},
    }
}

func TestSolveSingleOrderExactCost(t *testing.T) {
    p, cs := buildProblem(t, singleOrderInput())
    sol, m, err := Solve(context.Background(), p, cs, Params{})
    if err != nil {
        t.Fatalf("solve: %v", err)
    }
    // depot -> a -> b -> depot
    want := 1.0 + 1.0 + 2.0
    if math.Abs(sol.Cost-want) > 1e-6 {
        t.Fatalf("cost: got %v, want %v", sol.Cost, want)
    }
    if len(sol.Unassigned) != 0 {
        t.Fatalf("unassigned: %v", sol.Unassigned)
    }
    if m.StopReason != StopLocalOptimum {
        t.Fatalf("stop reason: %v", m.StopReason)
    }
    stops := sol.Routes[0].Stops
    if len(stops) != 2 || stops[0].Leg != Pickup || stops[1].Leg != Delivery {
        t.Fatalf("stops: %+v", stops)
    }
}

func TestSolveCapacityOneSequential(t *testing.T) {
    in := model.ProblemIn{
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
    }
    p, cs := buildProblem(t, in)
    sol, _, err := Solve(context.Background(), p, cs, Params{})
    if err != nil {
        t.Fatalf("solve: %v", err)
    }
    if len(sol.Unassigned) != 0 {
        t.Fatalf("unassigned: %v", sol.Unassigned)
    }
    stops := sol.Routes[0].Stops
    if len(stops) != 4 {
        t.Fatalf("want 4 stops, got %+v", stops)
    }
    // with unit capacity each delivery must directly follow its pickup
    load := 0
    for _, st := range stops {
        load += stopDemand(p, st)
        if load < 0 || load > 1 {
            t.Fatalf("load out of bounds: %d at %+v", load, st)
        }
    }
}

func multiInput() model.ProblemIn {
    return model.ProblemIn{
        Locations: []model.LocationIn{
            {ID: "d", Coord: pt(0, 0), Role: "depot"},
            {ID: "p1", Coord: pt(2, 1)},
            {ID: "d1", Coord: pt(4, 1)},
            {ID: "p2", Coord: pt(1, 3)},
            {ID: "d2", Coord: pt(1, 5)},
            {ID: "p3", Coord: pt(-2, 2)},
            {ID: "d3", Coord: pt(-4, 2)},
            {ID: "p4", Coord: pt(3, -1)},
            {ID: "d4", Coord: pt(5, -2)},
        },
        Vehicles: []model.VehicleIn{
            {ID: "v1", Capacity: 2},
            {ID: "v2", Capacity: 2},
        },
        Orders: []model.OrderIn{
            {ID: "o1", Pickup: "p1", Delivery: "d1", Demand: 1},
            {ID: "o2", Pickup: "p2", Delivery: "d2", Demand: 1},
            {ID: "o3", Pickup: "p3", Delivery: "d3", Demand: 2},
            {ID: "o4", Pickup: "p4", Delivery: "d4", Demand: 1},
        },
    }
}

func TestSolveDeterministic(t *testing.T) {
    run := func() (Solution, Metrics) {
        p, cs := buildProblem(t, multiInput())
        sol, m, err := Solve(context.Background(), p, cs, Params{MaxIterations: 100})
        if err != nil {
            t.Fatalf("solve: %v", err)
        }
        return sol, m
    }
    s1, m1 := run()
    s2, m2 := run()
    if s1.Cost != s2.Cost {
        t.Fatalf("costs differ: %v vs %v", s1.Cost, s2.Cost)
    }
    if !reflect.DeepEqual(s1.Routes, s2.Routes) {
        t.Fatalf("routes differ:\n%+v\n%+v", s1.Routes, s2.Routes)
    }
    if m1.Iterations != m2.Iterations || m1.Improvements != m2.Improvements {
        t.Fatalf("metrics differ: %+v vs %+v", m1, m2)
    }
}

func TestSolveNeverWorsens(t *testing.T) {
    p, cs := buildProblem(t, multiInput())
    _, m, err := Solve(context.Background(), p, cs, Params{MaxIterations: 200})
    if err != nil {
        t.Fatalf("solve: %v", err)
    }
    if m.FinalCost > m.InitialCost+1e-9 {
        t.Fatalf("final cost %v above initial %v", m.FinalCost, m.InitialCost)
    }
}

func TestSolveCanceledContext(t *testing.T) {
    p, cs := buildProblem(t, multiInput())
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    _, m, err := Solve(ctx, p, cs, Params{})
    if err != nil {
        t.Fatalf("solve: %v", err)
    }
    if m.StopReason != StopCanceled {
        t.Fatalf("stop reason: %v", m.StopReason)
    }
}

func TestSolveTargetReached(t *testing.T) {
    p, cs := buildProblem(t, multiInput())
    sol, m, err := Solve(context.Background(), p, cs, Params{TargetCost: 1e9})
    if err != nil {
        t.Fatalf("solve: %v", err)
    }
    if m.StopReason != StopTarget {
        t.Fatalf("stop reason: %v", m.StopReason)
    }
    if sol.Cost <= 0 {
        t.Fatalf("cost: %v", sol.Cost)
    }
}

func TestSolveIterationBudget(t *testing.T) {
    p, cs := buildProblem(t, multiInput())
    _, m, err := Solve(context.Background(), p, cs, Params{MaxIterations: 1})
    if err != nil {
        t.Fatalf("solve: %v", err)
    }
    if m.Iterations > 1 {
        t.Fatalf("iterations: %d", m.Iterations)
    }
}

func TestSolveExcludedOrderUnassigned(t *testing.T) {
    in := multiInput()
    // delivery window closes before any vehicle could get there
    in.Orders[0].PickupWindow = &model.Window{Start: 0, End: 100}
    in.Orders[0].DeliveryWindow = &model.Window{Start: 0, End: 0.5}
    p, cs := buildProblem(t, in)
    sol, _, err := Solve(context.Background(), p, cs, Params{MaxIterations: 50})
    if err != nil {
        t.Fatalf("solve: %v", err)
    }
    found := false
    for _, oi := range sol.Unassigned {
        if p.Orders[oi].ID == "o1" {
            found = true
        }
    }
    if !found {
        t.Fatalf("excluded order not reported unassigned: %v", sol.Unassigned)
    }
    for _, r := range sol.Routes {
        for _, st := range r.Stops {
            if p.Orders[st.Order].ID == "o1" {
                t.Fatalf("excluded order was routed")
            }
        }
    }
}

func TestSolveTimeBudget(t *testing.T) {
    p, cs := buildProblem(t, multiInput())
    start := time.Now()
    _, _, err := Solve(context.Background(), p, cs, Params{TimeBudget: 50 * time.Millisecond})
    if err != nil {
        t.Fatalf("solve: %v", err)
    }
    if time.Since(start) > 5*time.Second {
        t.Fatalf("budget ignored")
    }
}

func TestAnnealingSeedReproducible(t *testing.T) {
    run := func() Solution {
        p, cs := buildProblem(t, multiInput())
        sol, _, err := Solve(context.Background(), p, cs, Params{
            MaxIterations: 50,
            Seed:          42,
            Accept:        &Annealing{Temp: 1},
        })
        if err != nil {
            t.Fatalf("solve: %v", err)
        }
        return sol
    }
    s1, s2 := run(), run()
    if s1.Cost != s2.Cost || !reflect.DeepEqual(s1.Routes, s2.Routes) {
        t.Fatalf("seeded runs diverged")
    }
}
