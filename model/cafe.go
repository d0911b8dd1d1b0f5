package model

type Cafe struct {
	Base
	Name      string  `json:"name" gorm:"not null"`
	Address   *string `json:"address"`
	Phone     *string `json:"phone"`
	Logo      string  `json:"logo"`
	LogoKey   string  `json:"-"`
	ManagerID string  `json:"managerId" gorm:"size:36;uniqueIndex;not null"`
}
