package model

type Category struct {
	Base
	Name   string `json:"name" gorm:"not null"`
	Order  int    `json:"order" gorm:"column:sort_order;not null;default:0"`
	CafeID string `json:"cafeId" gorm:"size:36;index;not null"`
}
