package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base replaces gorm.Model: string ids, no soft delete.
type Base struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

func (b Base) PrimaryKey() string { return b.ID }

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Cafe{},
		&Category{},
		&MenuItem{},
		&Price{},
		&Extra{},
		&AllowedStaff{},
		&Table{},
		&Campaign{},
		&Order{},
		&OrderItem{},
	}
}
