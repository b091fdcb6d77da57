package result

import (
    "context"
    "math"
    "testing"

    "cartage/internal/constraint"
    "cartage/internal/model"
    "cartage/internal/problem"
    "cartage/internal/report"
    "cartage/internal/solver"
)

func pt(x, y float64) *model.Point { return &model.Point{X: x, Y: y} }

func solveInput(t *testing.T, in model.ProblemIn) (*problem.Problem, solver.Solution, report.Report, solver.Metrics) {
    t.Helper()
    p, err := problem.Build(context.Background(), in, nil)
    if err != nil {
        t.Fatalf("problem build: %v", err)
    }
    cs, _ := constraint.Build(p)
    sol, m, err := solver.Solve(context.Background(), p, cs, solver.Params{MaxIterations: 50})
    if err != nil {
        t.Fatalf("solve: %v", err)
    }
    return p, sol, report.Validate(p, sol), m
}

func basicInput() model.ProblemIn {
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

func TestPresentRouteAnnotations(t *testing.T) {
    p, sol, rep, m := solveInput(t, basicInput())
    res := Present(p, sol, rep, m)
    if res.Status != model.StatusOptimalIsh {
        t.Fatalf("status: %s", res.Status)
    }
    if len(res.Routes) != 1 {
        t.Fatalf("routes: %+v", res.Routes)
    }
    r := res.Routes[0]
    if r.VehicleID != "v1" || r.PeakLoad != 1 {
        t.Fatalf("route: %+v", r)
    }
    if len(r.Stops) != 2 {
        t.Fatalf("stops: %+v", r.Stops)
    }
    if r.Stops[0].Leg != "pickup" || r.Stops[0].LocationID != "a" || r.Stops[0].CumulativeLoad != 1 {
        t.Fatalf("first stop: %+v", r.Stops[0])
    }
    if r.Stops[1].Leg != "delivery" || r.Stops[1].CumulativeLoad != 0 {
        t.Fatalf("second stop: %+v", r.Stops[1])
    }
    if math.Abs(r.Stops[1].CumulativeCost-2) > 1e-9 {
        t.Fatalf("cumulative cost: %v", r.Stops[1].CumulativeCost)
    }
    // pure distance instance leaves arrival times out
    if r.Stops[0].ArrivalTime != nil {
        t.Fatalf("unexpected arrival time")
    }
    // route cost includes the return to the depot
    if math.Abs(r.Cost-4) > 1e-9 {
        t.Fatalf("route cost: %v", r.Cost)
    }
    if res.Stats == nil || res.Stats.StopReason != string(solver.StopLocalOptimum) {
        t.Fatalf("stats: %+v", res.Stats)
    }
}

func TestPresentArrivalTimesWithWindows(t *testing.T) {
    in := basicInput()
    in.Orders[0].PickupWindow = &model.Window{Start: 5, End: 100}
    p, sol, rep, m := solveInput(t, in)
    res := Present(p, sol, rep, m)
    st := res.Routes[0].Stops[0]
    if st.ArrivalTime == nil {
        t.Fatalf("arrival time missing")
    }
    // arrival 1 waits until the window opens at 5
    if *st.ArrivalTime != 5 {
        t.Fatalf("arrival: %v", *st.ArrivalTime)
    }
}

func TestPresentPartiallyUnassigned(t *testing.T) {
    in := basicInput()
    in.Orders = append(in.Orders, model.OrderIn{
        ID: "late", Pickup: "a", Delivery: "b", Demand: 1,
        PickupWindow:   &model.Window{Start: 0, End: 100},
        DeliveryWindow: &model.Window{Start: 0, End: 0.5},
    })
    p, sol, rep, m := solveInput(t, in)
    res := Present(p, sol, rep, m)
    if res.Status != model.StatusPartiallyUnassigned {
        t.Fatalf("status: %s", res.Status)
    }
    if len(res.UnassignedOrderIDs) != 1 || res.UnassignedOrderIDs[0] != "late" {
        t.Fatalf("unassigned: %v", res.UnassignedOrderIDs)
    }
}

func TestPresentEmptySlicesNotNull(t *testing.T) {
    p, sol, rep, m := solveInput(t, basicInput())
    res := Present(p, sol, rep, m)
    if res.Violations == nil || res.UnassignedOrderIDs == nil {
        t.Fatalf("nil slices leak into the response")
    }
}

func TestClassifyInfeasible(t *testing.T) {
    p, _, _, m := solveInput(t, basicInput())
    // handcrafted broken solution: delivery before pickup
    bad := solver.Solution{Routes: []solver.Route{{Vehicle: 0, Stops: []solver.Stop{
        {Order: 0, Leg: solver.Delivery}, {Order: 0, Leg: solver.Pickup},
    }}}}
    rep := report.Validate(p, bad)
    res := Present(p, bad, rep, m)
    if res.Status != model.StatusInfeasible {
        t.Fatalf("status: %s", res.Status)
    }
    if len(res.Violations) == 0 {
        t.Fatalf("violations missing")
    }
}

func TestClassifyFeasibleOnBudget(t *testing.T) {
    p, sol, rep, _ := solveInput(t, basicInput())
    m := solver.Metrics{StopReason: solver.StopBudget}
    res := Present(p, sol, rep, m)
    if res.Status != model.StatusFeasible {
        t.Fatalf("status: %s", res.Status)
    }
}
