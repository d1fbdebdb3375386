package model

import "testing"

func TestCanTransitionTrip(t *testing.T) {
	cases := []struct {
		from, to TripStatus
		want     bool
	}{
		// forward flow
		{TripPending, TripAssigned, true},
		{TripAssigned, TripInProgress, true},
		{TripInProgress, TripCompleted, true},
		// cancels from every non-terminal state
		{TripPending, TripCancelled, true},
		{TripAssigned, TripCancelled, true},
		{TripInProgress, TripCancelled, true},
		// reassignment release
		{TripAssigned, TripPending, true},
		{TripInProgress, TripPending, true},
		// invalid: terminal states have no outgoing transitions
		{TripCompleted, TripPending, false},
		{TripCompleted, TripCancelled, false},
		{TripCancelled, TripPending, false},
		{TripCancelled, TripAssigned, false},
		// invalid: skipping states
		{TripPending, TripInProgress, false},
		{TripPending, TripCompleted, false},
		{TripAssigned, TripCompleted, false},
	}
	for _, tc := range cases {
		if got := CanTransitionTrip(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransitionTrip(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalTrip(t *testing.T) {
	for _, s := range []TripStatus{TripPending, TripAssigned, TripInProgress} {
		if TerminalTrip(s) {
			t.Errorf("TerminalTrip(%s) = true, want false", s)
		}
	}
	for _, s := range []TripStatus{TripCompleted, TripCancelled} {
		if !TerminalTrip(s) {
			t.Errorf("TerminalTrip(%s) = false, want true", s)
		}
	}
}

func TestCanResolveRequest(t *testing.T) {
	const (
		companyID    = int64(10)
		driverUserID = int64(20)
		driverID     = int64(5)
	)
	company := Actor{UserID: companyID, Role: RoleCompany}
	driver := Actor{UserID: driverUserID, Role: RoleDriver}
	otherDriver := Actor{UserID: 99, Role: RoleDriver}
	assigned := driverID

	cases := []struct {
		name       string
		dir        RequestDirection
		actor      Actor
		assignedID *int64
		want       bool
	}{
		{"company_to_driver: target driver accepts", CompanyToDriver, driver, nil, true},
		{"company_to_driver: company cannot accept its own offer", CompanyToDriver, company, nil, false},
		{"company_to_driver: stranger driver cannot accept", CompanyToDriver, otherDriver, nil, false},

		{"driver_to_company: company accepts", DriverToCompany, company, nil, true},
		{"driver_to_company: driver cannot accept own request", DriverToCompany, driver, nil, false},

		{"reassignment: assigned driver may release", ReassignmentApproval, driver, &assigned, true},
		{"reassignment: unassigned trip cannot be released", ReassignmentApproval, driver, nil, false},
		{"reassignment: company cannot self-approve", ReassignmentApproval, company, &assigned, false},
	}
	for _, tc := range cases {
		got := CanResolveRequest(tc.dir, tc.actor, companyID, driverUserID, driverID, tc.assignedID)
		if got != tc.want {
			t.Errorf("%s: CanResolveRequest = %v, want %v", tc.name, got, tc.want)
		}
	}

	// A reassignment approval targeting a driver who no longer holds the
	// trip must not be resolvable by that driver.
	stale := int64(777)
	if CanResolveRequest(ReassignmentApproval, driver, companyID, driverUserID, driverID, &stale) {
		t.Error("CanResolveRequest: driver released a trip now held by someone else")
	}
}

func TestCanCancelRequest(t *testing.T) {
	const (
		companyID    = int64(10)
		driverUserID = int64(20)
	)
	company := Actor{UserID: companyID, Role: RoleCompany}
	driver := Actor{UserID: driverUserID, Role: RoleDriver}

	cases := []struct {
		dir   RequestDirection
		actor Actor
		want  bool
	}{
		{CompanyToDriver, company, true},
		{CompanyToDriver, driver, false},
		{DriverToCompany, driver, true},
		{DriverToCompany, company, false},
		{ReassignmentApproval, company, true},
		{ReassignmentApproval, driver, false},
	}
	for _, tc := range cases {
		got := CanCancelRequest(tc.dir, tc.actor, companyID, driverUserID)
		if got != tc.want {
			t.Errorf("CanCancelRequest(%s, role %s) = %v, want %v", tc.dir, tc.actor.Role, got, tc.want)
		}
	}
}

func TestValidDirection(t *testing.T) {
	for _, d := range []RequestDirection{CompanyToDriver, DriverToCompany, ReassignmentApproval} {
		if !ValidDirection(d) {
			t.Errorf("ValidDirection(%s) = false, want true", d)
		}
	}
	if ValidDirection("company_to_company") {
		t.Error("ValidDirection accepted an unknown direction")
	}
}
