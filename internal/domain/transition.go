package domain

// RequestStatus represents the lifecycle state of a service request.
type RequestStatus string

// Possible request status values. Pending is the only non-terminal status.
const (
	StatusPending   RequestStatus = "pending"
	StatusAccepted  RequestStatus = "accepted"
	StatusDeclined  RequestStatus = "declined"
	StatusCancelled RequestStatus = "cancelled"
)

// Role is the capacity in which an identity acts on a request.
type Role string

// Roles an identity can act or view under.
const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible from s.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusDeclined, StatusCancelled:
		return true
	default:
		return false
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleProvider
}

// transitions lists every allowed (current, role, target) move. Anything absent is rejected.
var transitions = map[RequestStatus]map[Role][]RequestStatus{
	StatusPending: {
		RoleProvider: {StatusAccepted, StatusDeclined},
		RoleCustomer: {StatusCancelled},
	},
}

// CanTransition reports whether an actor in role may move a request from
// current to target. It is a pure function over the transition table.
func CanTransition(current RequestStatus, role Role, target RequestStatus) bool {
	byRole, ok := transitions[current]
	if !ok {
		return false
	}
	for _, allowed := range byRole[role] {
		if allowed == target {
			return true
		}
	}
	return false
}

// RoleForTarget returns the role that is allowed to move a pending request into target.
// Used to disambiguate an identity that is both customer and provider of the same request.
func RoleForTarget(target RequestStatus) (Role, bool) {
	switch target {
	case StatusCancelled:
		return RoleCustomer, true
	case StatusAccepted, StatusDeclined:
		return RoleProvider, true
	default:
		return "", false
	}
}
