package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"cafemanager/apperr"
	"cafemanager/model"
	"cafemanager/reconcile"
)

// MenuItemInput is one row of a menu items save request. Sizes replaces the
// item's price rows when present.
type MenuItemInput struct {
	reconcile.Meta
	Name        *string                `json:"name"`
	Description *string                `json:"description"`
	CategoryID  *string                `json:"categoryId"`
	HasSizes    *bool                  `json:"hasSizes"`
	Price       *float64               `json:"price"`
	Image       *string                `json:"image"`
	IsAvailable *bool                  `json:"isAvailable"`
	Sizes       map[model.Size]float64 `json:"sizes"`
}

func (in MenuItemInput) Validate(status reconcile.Status) error {
	if status == reconcile.StatusNew {
		if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
			return apperr.Validation("Menu item name is required")
		}
		if in.CategoryID == nil || *in.CategoryID == "" {
			return apperr.Validation("Menu item category is required")
		}
		if in.HasSizes == nil || !*in.HasSizes {
			if in.Price == nil {
				return apperr.Validation("Menu item price is required")
			}
		}
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return apperr.Validation("Menu item name cannot be empty")
	}
	if in.Price != nil && *in.Price < 0 {
		return apperr.Validation("Menu item price cannot be negative")
	}
	for size, price := range in.Sizes {
		if !size.Valid() {
			return apperr.Validation("Unknown size " + string(size))
		}
		if price < 0 {
			return apperr.Validation("Size price cannot be negative")
		}
	}
	return nil
}

type MenuItemStore struct{}

// CheckCategories verifies that every category referenced by rows belongs
// to cafeID.
func (MenuItemStore) CheckCategories(db *gorm.DB, cafeID string, rows []MenuItemInput) error {
	ids := make(map[string]struct{})
	for _, row := range rows {
		if row.Status == reconcile.StatusDeleted || row.CategoryID == nil {
			continue
		}
		ids[*row.CategoryID] = struct{}{}
	}
	if len(ids) == 0 {
		return nil
	}

	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}

	var count int64
	if err := db.Model(&model.Category{}).
		Where("id IN ? AND cafe_id = ?", list, cafeID).
		Count(&count).Error; err != nil {
		return err
	}
	if int(count) != len(list) {
		return apperr.Validation("Menu item refers to an unknown category").WithCode("UNKNOWN_CATEGORY")
	}
	return nil
}

func (MenuItemStore) Delete(tx *gorm.DB, cafeID string, ids []string) (int64, error) {
	var owned []string
	if err := tx.Model(&model.MenuItem{}).
		Where("id IN ? AND category_id IN (?)", ids, cafeCategories(tx, cafeID)).
		Pluck("id", &owned).Error; err != nil {
		return 0, err
	}
	if err := deleteMenuItems(tx, owned); err != nil {
		return 0, err
	}
	return int64(len(owned)), nil
}

func (MenuItemStore) Create(tx *gorm.DB, cafeID string, row MenuItemInput) (model.MenuItem, error) {
	item := model.MenuItem{
		Name:        strings.TrimSpace(*row.Name),
		CategoryID:  *row.CategoryID,
		IsAvailable: true,
	}
	if row.Description != nil {
		item.Description = *row.Description
	}
	if row.HasSizes != nil {
		item.HasSizes = *row.HasSizes
	}
	if row.Image != nil {
		item.Image = *row.Image
	}
	if row.IsAvailable != nil {
		item.IsAvailable = *row.IsAvailable
	}
	if !item.HasSizes {
		item.Price = row.Price
	}

	if err := tx.Omit("Prices", "Category").Create(&item).Error; err != nil {
		return item, err
	}

	if item.HasSizes {
		prices := sizePrices(item.ID, row.Sizes)
		if len(prices) > 0 {
			if err := tx.Create(&prices).Error; err != nil {
				return item, err
			}
		}
		item.Prices = prices
	}
	return item, nil
}

func (MenuItemStore) Update(tx *gorm.DB, cafeID string, id string, row MenuItemInput) (int64, error) {
	var item model.MenuItem
	err := tx.Where("id = ? AND category_id IN (?)", id, cafeCategories(tx, cafeID)).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	updates := map[string]any{}
	if row.Name != nil {
		updates["name"] = strings.TrimSpace(*row.Name)
	}
	if row.Description != nil {
		updates["description"] = *row.Description
	}
	if row.CategoryID != nil {
		updates["category_id"] = *row.CategoryID
	}
	if row.Image != nil {
		updates["image"] = *row.Image
	}
	if row.IsAvailable != nil {
		updates["is_available"] = *row.IsAvailable
	}
	wasSized := item.HasSizes
	hasSizes := wasSized
	if row.HasSizes != nil {
		hasSizes = *row.HasSizes
		updates["has_sizes"] = hasSizes
	}
	if hasSizes {
		updates["price"] = nil
	} else if row.Price != nil {
		updates["price"] = *row.Price
	}

	if len(updates) > 0 {
		if err := tx.Model(&model.MenuItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
			return 0, err
		}
	}

	if row.Sizes != nil || hasSizes != wasSized {
		if err := tx.Where("menu_item_id = ?", item.ID).Delete(&model.Price{}).Error; err != nil {
			return 0, err
		}
		if hasSizes {
			if prices := sizePrices(item.ID, row.Sizes); len(prices) > 0 {
				if err := tx.Create(&prices).Error; err != nil {
					return 0, err
				}
			}
		}
	}
	return 1, nil
}

// cafeCategories is a subquery selecting the category ids of cafeID.
func cafeCategories(tx *gorm.DB, cafeID string) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true}).
		Model(&model.Category{}).
		Select("id").
		Where("cafe_id = ?", cafeID)
}

func sizePrices(itemID string, sizes map[model.Size]float64) []model.Price {
	var prices []model.Price
	for _, size := range model.Sizes {
		if price, ok := sizes[size]; ok {
			prices = append(prices, model.Price{MenuItemID: itemID, Size: size, Price: price})
		}
	}
	return prices
}
