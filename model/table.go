package model

type Table struct {
	Base
	Name       string `json:"name" gorm:"not null"`
	IsOccupied bool   `json:"isOccupied"`
	CafeID     string `json:"cafeId" gorm:"size:36;index;not null"`
}

func (Table) TableName() string { return "cafe_tables" }
