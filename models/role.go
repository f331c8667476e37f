package models

// Role is carried in the bearer token. Only two roles exist.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleCustomer Role = "Customer"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}
