package store

import (
	"strings"

	"gorm.io/gorm"

	"cafemanager/apperr"
	"cafemanager/model"
	"cafemanager/reconcile"
)

// CategoryInput is one row of a categories save request.
type CategoryInput struct {
	reconcile.Meta
	Name  *string `json:"name"`
	Order *int    `json:"order"`
}

func (in CategoryInput) Validate(status reconcile.Status) error {
	if status == reconcile.StatusNew && (in.Name == nil || strings.TrimSpace(*in.Name) == "") {
		return apperr.Validation("Category name is required")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return apperr.Validation("Category name cannot be empty")
	}
	return nil
}

type CategoryStore struct{}

// Delete removes the categories of cafeID among ids, together with their
// menu items and prices.
func (CategoryStore) Delete(tx *gorm.DB, cafeID string, ids []string) (int64, error) {
	var owned []string
	if err := tx.Model(&model.Category{}).
		Where("id IN ? AND cafe_id = ?", ids, cafeID).
		Pluck("id", &owned).Error; err != nil {
		return 0, err
	}
	if len(owned) == 0 {
		return 0, nil
	}

	var items []string
	if err := tx.Model(&model.MenuItem{}).Where("category_id IN ?", owned).Pluck("id", &items).Error; err != nil {
		return 0, err
	}
	if err := deleteMenuItems(tx, items); err != nil {
		return 0, err
	}

	res := tx.Where("id IN ? AND cafe_id = ?", owned, cafeID).Delete(&model.Category{})
	return res.RowsAffected, res.Error
}

func (CategoryStore) Create(tx *gorm.DB, cafeID string, row CategoryInput) (model.Category, error) {
	category := model.Category{
		Name:   strings.TrimSpace(*row.Name),
		CafeID: cafeID,
	}
	if row.Order != nil {
		category.Order = *row.Order
	}
	err := tx.Create(&category).Error
	return category, err
}

func (CategoryStore) Update(tx *gorm.DB, cafeID string, id string, row CategoryInput) (int64, error) {
	updates := map[string]any{}
	if row.Name != nil {
		updates["name"] = strings.TrimSpace(*row.Name)
	}
	if row.Order != nil {
		updates["sort_order"] = *row.Order
	}
	if len(updates) == 0 {
		return 0, nil
	}

	res := tx.Model(&model.Category{}).
		Where("id = ? AND cafe_id = ?", id, cafeID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func deleteMenuItems(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("menu_item_id IN ?", ids).Delete(&model.Price{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&model.MenuItem{}).Error
}
