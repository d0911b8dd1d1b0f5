package model

type UserRole string

const (
	RoleManager UserRole = "MANAGER"
	RoleStaff   UserRole = "STAFF"
)

func (r UserRole) Valid() bool {
	return r == RoleManager || r == RoleStaff
}

type User struct {
	Base
	Name     string   `json:"name"`
	Email    string   `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Password string   `json:"-" gorm:"not null"`
	Role     UserRole `json:"role" gorm:"size:16;not null"`
	CafeID   *string  `json:"cafeId" gorm:"size:36;index"`
}
