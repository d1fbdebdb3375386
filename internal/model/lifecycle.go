package model

// ─── Trip state machine ─────────────────────────────────────

// TripTransitions encodes the trip status graph. `completed` and
// `cancelled` are terminal. The pending→assigned edge is only ever taken
// by the assignment transaction, and assigned/in_progress→pending only by
// an accepted reassignment approval.
var TripTransitions = map[TripStatus][]TripStatus{
	TripPending:    {TripAssigned, TripCancelled},
	TripAssigned:   {TripInProgress, TripPending, TripCancelled},
	TripInProgress: {TripCompleted, TripPending, TripAssigned, TripCancelled},
	TripCompleted:  {},
	TripCancelled:  {},
}

// CanTransitionTrip reports whether from → to is an allowed trip transition.
func CanTransitionTrip(from, to TripStatus) bool {
	for _, s := range TripTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TerminalTrip reports whether a trip status admits no further transitions.
func TerminalTrip(s TripStatus) bool {
	return len(TripTransitions[s]) == 0
}

// ─── Request direction rules ────────────────────────────────
//
// Each direction carries its own authorization rules: who may accept or
// reject (resolve) a pending request, and who may cancel it. The initiating
// party can never resolve its own request.

// CanResolveRequest reports whether the actor may accept or reject a
// pending request with the given direction. companyID is the trip-owning
// company's user id; driverUserID is the target driver's user id;
// assignedDriverID is the trip's currently assigned driver id (nil when
// unassigned), used only by reassignment approvals.
func CanResolveRequest(dir RequestDirection, actor Actor, companyID, driverUserID int64, requestDriverID int64, assignedDriverID *int64) bool {
	switch dir {
	case CompanyToDriver:
		return actor.Role == RoleDriver && actor.UserID == driverUserID
	case DriverToCompany:
		return actor.Role == RoleCompany && actor.UserID == companyID
	case ReassignmentApproval:
		// Only the driver the trip is currently assigned to may release it.
		return actor.Role == RoleDriver &&
			actor.UserID == driverUserID &&
			assignedDriverID != nil &&
			*assignedDriverID == requestDriverID
	default:
		return false
	}
}

// CanCancelRequest reports whether the actor may cancel a pending request:
// always the initiator, never the counterparty.
func CanCancelRequest(dir RequestDirection, actor Actor, companyID, driverUserID int64) bool {
	switch dir {
	case CompanyToDriver, ReassignmentApproval:
		return actor.Role == RoleCompany && actor.UserID == companyID
	case DriverToCompany:
		return actor.Role == RoleDriver && actor.UserID == driverUserID
	default:
		return false
	}
}

// ValidDirection reports whether d is one of the three request directions.
func ValidDirection(d RequestDirection) bool {
	return d == CompanyToDriver || d == DriverToCompany || d == ReassignmentApproval
}
