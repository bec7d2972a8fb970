package models

// ActorRole identifies who performs an operation
type ActorRole string

const (
	RoleCustomer ActorRole = "CUSTOMER"
	RoleLaundry  ActorRole = "LAUNDRY"
	RoleAdmin    ActorRole = "ADMIN"
)

// Actor is the authenticated caller. LaundryID is set for laundry staff.
type Actor struct {
	ID        string    `json:"id"`
	Role      ActorRole `json:"role"`
	LaundryID string    `json:"laundry_id,omitempty"`
}

// CanView reports whether the actor may read the order
func (a Actor) CanView(o *Order) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleCustomer:
		return o.CustomerID == a.ID
	case RoleLaundry:
		return a.LaundryID != "" && o.LaundryID == a.LaundryID
	default:
		return false
	}
}
