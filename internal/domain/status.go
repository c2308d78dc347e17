package domain

// LoadStatus is the lifecycle state of a delivery job.
type LoadStatus string

const (
	StatusPending         LoadStatus = "pending"
	StatusAssigned        LoadStatus = "assigned"
	StatusBlasted         LoadStatus = "blasted"
	StatusInProgress      LoadStatus = "in_progress"
	StatusArrivedPickup   LoadStatus = "arrived_pickup"
	StatusInTransit       LoadStatus = "in_transit"
	StatusArrivedDelivery LoadStatus = "arrived_delivery"
	StatusDelivered       LoadStatus = "delivered"
	StatusCompleted       LoadStatus = "completed"
	StatusCancelled       LoadStatus = "cancelled"
	StatusFailed          LoadStatus = "failed"
)

// AllStatuses lists every valid load status in lifecycle order.
var AllStatuses = []LoadStatus{
	StatusPending,
	StatusAssigned,
	StatusBlasted,
	StatusInProgress,
	StatusArrivedPickup,
	StatusInTransit,
	StatusArrivedDelivery,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
	StatusFailed,
}

// Transitions is the fixed adjacency map of allowed status changes.
// Any pair absent from this table is rejected.
var Transitions = map[LoadStatus][]LoadStatus{
	StatusPending:         {StatusAssigned, StatusBlasted, StatusCancelled},
	StatusAssigned:        {StatusInProgress, StatusPending, StatusCancelled},
	StatusBlasted:         {StatusAssigned, StatusPending, StatusCancelled},
	StatusInProgress:      {StatusArrivedPickup, StatusCancelled, StatusFailed},
	StatusArrivedPickup:   {StatusInTransit, StatusCancelled, StatusFailed},
	StatusInTransit:       {StatusArrivedDelivery, StatusFailed},
	StatusArrivedDelivery: {StatusDelivered, StatusFailed},
	StatusDelivered:       {StatusCompleted},
	StatusCompleted:       {},
	StatusCancelled:       {StatusPending},
	StatusFailed:          {StatusPending},
}

// ActiveStatuses are the statuses in which a courier is working the job.
var ActiveStatuses = []LoadStatus{
	StatusAssigned,
	StatusInProgress,
	StatusArrivedPickup,
	StatusInTransit,
	StatusArrivedDelivery,
}

// TerminalStatuses end active work on a load. Cancelled and failed loads can still be reopened.
var TerminalStatuses = []LoadStatus{
	StatusCompleted,
	StatusCancelled,
	StatusFailed,
}

// AssignedOrLaterStatuses are the only statuses in which a load may carry a courier.
var AssignedOrLaterStatuses = []LoadStatus{
	StatusAssigned,
	StatusInProgress,
	StatusArrivedPickup,
	StatusInTransit,
	StatusArrivedDelivery,
	StatusDelivered,
	StatusCompleted,
	StatusFailed,
}

// IsTransitionAllowed reports whether a load may move from one status to another.
func IsTransitionAllowed(from, to LoadStatus) bool {
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an IllegalTransitionError when the move is not allowed.
func CheckTransition(from, to LoadStatus) error {
	if !IsTransitionAllowed(from, to) {
		return &IllegalTransitionError{From: from, To: to}
	}
	return nil
}

func (s LoadStatus) Valid() bool {
	_, ok := Transitions[s]
	return ok
}

func (s LoadStatus) IsActive() bool { return contains(ActiveStatuses, s) }

func (s LoadStatus) IsTerminal() bool { return contains(TerminalStatuses, s) }

// AllowsCourier reports whether a load in this status may reference a courier.
func (s LoadStatus) AllowsCourier() bool { return contains(AssignedOrLaterStatuses, s) }

func contains(set []LoadStatus, s LoadStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
