package service

import (
	"context"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"

	"cafemanager/apperr"
	"cafemanager/logger"
	"cafemanager/model"
	"cafemanager/ws"
)

// TableNotifier is told about table changes made as a side effect of orders.
type TableNotifier interface {
	Publish(cafeID string, eventType string, table model.Table)
}

type OrderLine struct {
	MenuItemID string      `json:"menuItemId"`
	Size       *model.Size `json:"size"`
	Quantity   int         `json:"quantity"`
	ExtraIDs   []string    `json:"extraIds"`
}

type PlaceOrder struct {
	TableID    *string     `json:"tableId"`
	CampaignID *string     `json:"campaignId"`
	Items      []OrderLine `json:"items"`
}

func (p *PlaceOrder) validate() error {
	if len(p.Items) == 0 {
		return apperr.Validation("An order needs at least one item")
	}
	for _, line := range p.Items {
		if line.MenuItemID == "" {
			return apperr.Validation("menuItemId is required")
		}
		if line.Quantity <= 0 {
			return apperr.Validation("Quantity must be positive")
		}
		if line.Size != nil && !line.Size.Valid() {
			return apperr.Validation("Unknown size " + string(*line.Size))
		}
	}
	return nil
}

type OrderService struct {
	db       *gorm.DB
	notifier TableNotifier
	now      func() time.Time
}

func NewOrderService(db *gorm.DB, notifier TableNotifier) *OrderService {
	return &OrderService{db: db, notifier: notifier, now: time.Now}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Place prices the order from the current menu, applies the campaign and
// marks the table occupied, all in one transaction.
func (s *OrderService) Place(ctx context.Context, cafeID, staffID string, req PlaceOrder) (*model.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	order := model.Order{
		CafeID:     cafeID,
		TableID:    req.TableID,
		CampaignID: req.CampaignID,
		StaffID:    staffID,
		Status:     model.OrderPending,
	}
	var table *model.Table

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := loadMenuItems(tx, cafeID, req.Items)
		if err != nil {
			return err
		}
		extras, err := loadExtras(tx, cafeID, req.Items)
		if err != nil {
			return err
		}

		for _, line := range req.Items {
			item := items[line.MenuItemID]
			if !item.IsAvailable {
				return apperr.Validation(item.Name + " is not available").WithCode("ITEM_UNAVAILABLE")
			}
			unit, err := unitPrice(item, line.Size)
			if err != nil {
				return err
			}
			var perUnitExtras float64
			for _, id := range line.ExtraIDs {
				perUnitExtras += extras[id].Price
			}

			qty := float64(line.Quantity)
			oi := model.OrderItem{
				MenuItemID:  item.ID,
				Name:        item.Name,
				Quantity:    line.Quantity,
				UnitPrice:   unit,
				ExtrasTotal: round2(perUnitExtras * qty),
			}
			if item.HasSizes {
				oi.Size = line.Size
			}
			oi.LineTotal = round2(unit*qty + oi.ExtrasTotal)
			order.Items = append(order.Items, oi)
			order.Subtotal += oi.LineTotal
		}
		order.Subtotal = round2(order.Subtotal)

		if req.CampaignID != nil {
			var campaign model.Campaign
			if err := tx.Where("id = ? AND cafe_id = ?", *req.CampaignID, cafeID).First(&campaign).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.Validation("Campaign not found").WithCode("UNKNOWN_CAMPAIGN")
				}
				return err
			}
			if !campaign.RunningAt(s.now()) {
				return apperr.Validation("Campaign is not running").WithCode("CAMPAIGN_INACTIVE")
			}
			order.Discount = discount(campaign.Rules.Data(), order.Subtotal)
		}
		order.Total = round2(order.Subtotal - order.Discount)

		if req.TableID != nil {
			var t model.Table
			if err := tx.Where("id = ? AND cafe_id = ?", *req.TableID, cafeID).First(&t).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.Validation("Table not found").WithCode("UNKNOWN_TABLE")
				}
				return err
			}
			if !t.IsOccupied {
				if err := tx.Model(&t).Update("is_occupied", true).Error; err != nil {
					return err
				}
				t.IsOccupied = true
				table = &t
			}
		}

		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}

	if table != nil && s.notifier != nil {
		s.notifier.Publish(cafeID, ws.EventTableUpdated, *table)
	}
	logger.Ctx(ctx).Info().Str("order_id", order.ID).Float64("total", order.Total).Msg("order placed")
	return &order, nil
}

func loadMenuItems(tx *gorm.DB, cafeID string, lines []OrderLine) (map[string]model.MenuItem, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.MenuItemID)
	}

	var items []model.MenuItem
	err := tx.Preload("Prices").
		Where("id IN ? AND category_id IN (?)", ids,
			tx.Session(&gorm.Session{NewDB: true}).Model(&model.Category{}).Select("id").Where("cafe_id = ?", cafeID)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.MenuItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, apperr.Validation("Order refers to an unknown menu item").WithCode("UNKNOWN_MENU_ITEM")
		}
	}
	return byID, nil
}

func loadExtras(tx *gorm.DB, cafeID string, lines []OrderLine) (map[string]model.Extra, error) {
	var ids []string
	for _, l := range lines {
		ids = append(ids, l.ExtraIDs...)
	}
	byID := make(map[string]model.Extra)
	if len(ids) == 0 {
		return byID, nil
	}

	var extras []model.Extra
	if err := tx.Where("id IN ? AND cafe_id = ?", ids, cafeID).Find(&extras).Error; err != nil {
		return nil, err
	}
	for _, e := range extras {
		byID[e.ID] = e
	}
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			return nil, apperr.Validation("Order refers to an unknown extra").WithCode("UNKNOWN_EXTRA")
		}
		if !e.IsAvailable {
			return nil, apperr.Validation(e.Name + " is not available").WithCode("ITEM_UNAVAILABLE")
		}
	}
	return byID, nil
}

func unitPrice(item model.MenuItem, size *model.Size) (float64, error) {
	if !item.HasSizes {
		if item.Price == nil {
			return 0, apperr.Validation(item.Name + " has no price").WithCode("PRICE_NOT_SET")
		}
		return *item.Price, nil
	}
	if size == nil {
		return 0, apperr.Validation(item.Name + " needs a size").WithCode("SIZE_REQUIRED")
	}
	for _, p := range item.Prices {
		if p.Size == *size {
			return p.Price, nil
		}
	}
	return 0, apperr.Validation(item.Name + " is not sold in size " + string(*size)).WithCode("PRICE_NOT_SET")
}

// discount is what rules take off subtotal; never more than subtotal.
func discount(rules model.CampaignRules, subtotal float64) float64 {
	if subtotal < rules.MinOrderTotal {
		return 0
	}
	var d float64
	switch rules.DiscountType {
	case model.DiscountPercent:
		d = subtotal * rules.Value / 100
	case model.DiscountFixed:
		d = rules.Value
	}
	return round2(math.Min(d, subtotal))
}

func (s *OrderService) List(ctx context.Context, cafeID string, status model.OrderStatus) ([]model.Order, error) {
	q := s.db.WithContext(ctx).Preload("Items").Where("cafe_id = ?", cafeID)
	if status != "" {
		if !status.Valid() {
			return nil, apperr.Validation("Unknown order status " + string(status))
		}
		q = q.Where("status = ?", status)
	}
	var orders []model.Order
	if err := q.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus moves an order along its lifecycle. Closing the last open
// order of a table frees the table.
func (s *OrderService) UpdateStatus(ctx context.Context, cafeID, orderID string, next model.OrderStatus) (*model.Order, error) {
	var order model.Order
	var freed *model.Table

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").Where("id = ? AND cafe_id = ?", orderID, cafeID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("Order not found")
			}
			return err
		}
		if !order.Status.CanMoveTo(next) {
			return apperr.Validation("Cannot move order from " + string(order.Status) + " to " + string(next)).
				WithCode("INVALID_TRANSITION")
		}
		if err := tx.Model(&model.Order{}).Where("id = ?", order.ID).Update("status", next).Error; err != nil {
			return err
		}
		order.Status = next

		if !next.Final() || order.TableID == nil {
			return nil
		}
		var open int64
		if err := tx.Model(&model.Order{}).
			Where("table_id = ? AND status NOT IN ?", *order.TableID, []model.OrderStatus{model.OrderPaid, model.OrderCancelled}).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return nil
		}
		var t model.Table
		if err := tx.Where("id = ? AND cafe_id = ?", *order.TableID, cafeID).First(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if t.IsOccupied {
			if err := tx.Model(&t).Update("is_occupied", false).Error; err != nil {
				return err
			}
			t.IsOccupied = false
			freed = &t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if freed != nil && s.notifier != nil {
		s.notifier.Publish(cafeID, ws.EventTableUpdated, *freed)
	}
	return &order, nil
}
