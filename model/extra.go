package model

type Extra struct {
	Base
	Name        string  `json:"name" gorm:"not null"`
	Price       float64 `json:"price" gorm:"not null"`
	IsAvailable bool    `json:"isAvailable"`
	CafeID      string  `json:"cafeId" gorm:"size:36;index;not null"`
}
