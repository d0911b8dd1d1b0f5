package model

// AllowedStaff is a staff invitation keyed by email. UserID is set once a
// user with that email registers.
type AllowedStaff struct {
	Base
	Email  string  `json:"email" gorm:"size:255;not null;uniqueIndex:idx_staff_cafe_email"`
	CafeID string  `json:"cafeId" gorm:"size:36;not null;uniqueIndex:idx_staff_cafe_email"`
	UserID *string `json:"userId" gorm:"size:36;index"`
	User   *User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (AllowedStaff) TableName() string { return "allowed_staff" }
