package store

import (
	"strings"

	"gorm.io/gorm"

	"cafemanager/apperr"
	"cafemanager/model"
	"cafemanager/reconcile"
)

type ExtraInput struct {
	reconcile.Meta
	Name        *string  `json:"name"`
	Price       *float64 `json:"price"`
	IsAvailable *bool    `json:"isAvailable"`
}

func (in ExtraInput) Validate(status reconcile.Status) error {
	if status == reconcile.StatusNew {
		if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
			return apperr.Validation("Extra name is required")
		}
		if in.Price == nil {
			return apperr.Validation("Extra price is required")
		}
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return apperr.Validation("Extra name cannot be empty")
	}
	if in.Price != nil && *in.Price < 0 {
		return apperr.Validation("Extra price cannot be negative")
	}
	return nil
}

type ExtraStore struct{}

func (ExtraStore) Delete(tx *gorm.DB, cafeID string, ids []string) (int64, error) {
	res := tx.Where("id IN ? AND cafe_id = ?", ids, cafeID).Delete(&model.Extra{})
	return res.RowsAffected, res.Error
}

func (ExtraStore) Create(tx *gorm.DB, cafeID string, row ExtraInput) (model.Extra, error) {
	extra := model.Extra{
		Name:        strings.TrimSpace(*row.Name),
		Price:       *row.Price,
		IsAvailable: true,
		CafeID:      cafeID,
	}
	if row.IsAvailable != nil {
		extra.IsAvailable = *row.IsAvailable
	}
	err := tx.Create(&extra).Error
	return extra, err
}

func (ExtraStore) Update(tx *gorm.DB, cafeID string, id string, row ExtraInput) (int64, error) {
	updates := map[string]any{}
	if row.Name != nil {
		updates["name"] = strings.TrimSpace(*row.Name)
	}
	if row.Price != nil {
		updates["price"] = *row.Price
	}
	if row.IsAvailable != nil {
		updates["is_available"] = *row.IsAvailable
	}
	if len(updates) == 0 {
		return 0, nil
	}

	res := tx.Model(&model.Extra{}).
		Where("id = ? AND cafe_id = ?", id, cafeID).
		Updates(updates)
	return res.RowsAffected, res.Error
}
