package model

// Wire contract for the solver service. External collaborators (a
// natural-language front-end producing requests, a renderer consuming
// results) speak these types; everything is validated once at the
// problem boundary.

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Window is an earliest/latest service interval in problem time units.
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type LocationIn struct {
	ID    string `json:"id"`
	Coord *Point `json:"coord,omitempty"` // optional when an explicit matrix is supplied
	Role  string `json:"role,omitempty"`  // depot, pickup, delivery
}

type VehicleIn struct {
	ID          string  `json:"id"`
	Capacity    int     `json:"capacity"`
	Start       string  `json:"start,omitempty"` // defaults to the shared depot
	End         string  `json:"end,omitempty"`
	MaxDuration float64 `json:"maxDuration,omitempty"`
}

type OrderIn struct {
	ID              string  `json:"id"`
	Pickup          string  `json:"pickup"`
	Delivery        string  `json:"delivery"`
	Demand          int     `json:"demand"`
	PickupWindow    *Window `json:"pickupWindow,omitempty"`
	DeliveryWindow  *Window `json:"deliveryWindow,omitempty"`
	PickupService   float64 `json:"pickupService,omitempty"`
	DeliveryService float64 `json:"deliveryService,omitempty"`
}

// ProblemIn is the full input contract for one solve.
type ProblemIn struct {
	Locations []LocationIn `json:"locations"`
	Vehicles  []VehicleIn  `json:"vehicles"`
	Orders    []OrderIn    `json:"orders"`
	Matrix    [][]float64  `json:"matrix,omitempty"`
}

// ProblemOut is the stored-problem read model.
type ProblemOut struct {
	ID        string `json:"id"`
	Locations int    `json:"locations"`
	Vehicles  int    `json:"vehicles"`
	Orders    int    `json:"orders"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// DeriveRequest builds a new problem from a stored snapshot. Stored
// problems are never mutated; edits like "remove the first two orders"
// or "use 3 forklifts carrying 2 items each" produce a fresh snapshot.
type DeriveRequest struct {
	RemoveOrderIDs     []string          `json:"removeOrderIds,omitempty"`
	RemoveOrderIndices []int             `json:"removeOrderIndices,omitempty"`
	FleetSize          *int              `json:"fleetSize,omitempty"`
	VehicleCapacity    *int              `json:"vehicleCapacity,omitempty"`
	ServiceTime        *float64          `json:"serviceTime,omitempty"` // applied to both legs of every order
	PickupWindows      map[string]Window `json:"pickupWindows,omitempty"`
	DeliveryWindows    map[string]Window `json:"deliveryWindows,omitempty"`
}

type SolveRequest struct {
	ProblemID     string     `json:"problemId,omitempty"`
	Problem       *ProblemIn `json:"problem,omitempty"`
	TimeBudgetMs  int        `json:"timeBudgetMs,omitempty"`
	MaxIterations int        `json:"maxIterations,omitempty"`
	TargetCost    float64    `json:"targetCost,omitempty"`
	Acceptance    string     `json:"acceptance,omitempty"` // greedy (default) or annealing
	Seed          int64      `json:"seed,omitempty"`
}

// Solve statuses.
const (
	StatusOptimalIsh          = "optimal_ish"
	StatusFeasible            = "feasible"
	StatusPartiallyUnassigned = "partially_unassigned"
	StatusInfeasible          = "infeasible"
)

type StopOut struct {
	LocationID     string   `json:"locationId"`
	OrderID        string   `json:"orderId,omitempty"`
	Leg            string   `json:"leg,omitempty"` // pickup or delivery
	CumulativeLoad int      `json:"cumulativeLoad"`
	CumulativeCost float64  `json:"cumulativeCost"`
	ArrivalTime    *float64 `json:"arrivalTime,omitempty"`
}

type RouteOut struct {
	VehicleID string    `json:"vehicleId"`
	Stops     []StopOut `json:"stops"`
	Cost      float64   `json:"cost"`
	PeakLoad  int       `json:"peakLoad"`
}

type ViolationOut struct {
	Kind      string `json:"kind"`
	OrderID   string `json:"orderId,omitempty"`
	VehicleID string `json:"vehicleId,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type SolveStats struct {
	Iterations   int     `json:"iterations"`
	Improvements int     `json:"improvements"`
	Relocates    int     `json:"relocates"`
	Swaps        int     `json:"swaps"`
	TwoOpts      int     `json:"twoOpts"`
	InitialCost  float64 `json:"initialCost"`
	FinalCost    float64 `json:"finalCost"`
	StopReason   string  `json:"stopReason"`
	ElapsedMs    int64   `json:"elapsedMs"`
}

// SolveResult is the output contract. It is always Report-backed: the
// violation list and unassigned ids come from independent validation,
// never from the engine's own bookkeeping.
type SolveResult struct {
	Status             string         `json:"status"`
	Routes             []RouteOut     `json:"routes"`
	TotalCost          float64        `json:"totalCost"`
	Violations         []ViolationOut `json:"violations"`
	UnassignedOrderIDs []string       `json:"unassignedOrderIds"`
	Stats              *SolveStats    `json:"stats,omitempty"`
}

// Solve job states for the async queue.
const (
	SolveQueued    = "queued"
	SolveRunning   = "running"
	SolveCompleted = "completed"
	SolveFailed    = "failed"
)

type SolveJob struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Request   SolveRequest `json:"request"`
	Attempts  int          `json:"attempts"`
	Result    *SolveResult `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt string       `json:"createdAt,omitempty"`
	UpdatedAt string       `json:"updatedAt,omitempty"`
}
