package domain

import "time"

// Role tiers, totally ordered by privilege.
type Role string

const (
	RoleUser       Role = "user"
	RoleOperator   Role = "operator"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

var roleTiers = map[Role]int{
	RoleUser:       0,
	RoleOperator:   1,
	RoleManager:    2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// Tier returns the role's position in the hierarchy; unknown roles rank
// below user.
func (r Role) Tier() int {
	if t, ok := roleTiers[r]; ok {
		return t
	}
	return -1
}

func (r Role) Valid() bool { return r.Tier() >= 0 }

// AtLeast reports whether r is min or a higher tier.
func (r Role) AtLeast(min Role) bool { return r.Tier() >= min.Tier() }

type Permission string

const (
	PermViewBookings     Permission = "view_bookings"
	PermCreateBooking    Permission = "create_booking"
	PermEditOwnBooking   Permission = "edit_own_booking"
	PermEditAnyBooking   Permission = "edit_any_booking"
	PermDeleteAnyBooking Permission = "delete_any_booking"
	PermViewAnalytics    Permission = "view_analytics"
	PermExport           Permission = "export"
	PermManageSettings   Permission = "manage_settings"
	PermManageUsers      Permission = "manage_users"
)

// minRole is the lowest tier holding each permission. Permission sets are
// monotone: everything a lower role may do, every higher role may do.
var minRole = map[Permission]Role{
	PermViewBookings:     RoleUser,
	PermCreateBooking:    RoleOperator,
	PermEditOwnBooking:   RoleOperator,
	PermEditAnyBooking:   RoleManager,
	PermDeleteAnyBooking: RoleAdmin,
	PermViewAnalytics:    RoleManager,
	PermExport:           RoleManager,
	PermManageSettings:   RoleAdmin,
	PermManageUsers:      RoleSuperAdmin,
}

// Allows is the role/permission gate. Pure function, no hidden state.
func (r Role) Allows(p Permission) bool {
	min, ok := minRole[p]
	if !ok {
		return false
	}
	return r.AtLeast(min)
}

type User struct {
	ID         int64
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
	Role       Role
	IsActive   bool
	CreatedAt  time.Time
	LastLogin  time.Time // zero when never logged in
}

func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
