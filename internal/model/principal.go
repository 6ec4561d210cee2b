package model

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

type Principal struct {
	UserID   string
	Username string
	Role     Role
}

func (p Principal) IsStaff() bool {
	return p.Role == RoleStaff || p.Role == RoleAdmin
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsCustomer() bool {
	return p.Role == RoleCustomer
}

// CanView reports whether the principal may read the given bill.
func (p Principal) CanView(bill Bill) bool {
	if p.IsStaff() {
		return true
	}
	return p.Username != "" && p.Username == bill.CustomerUsername
}
