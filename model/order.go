package model

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPreparing OrderStatus = "PREPARING"
	OrderServed    OrderStatus = "SERVED"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderServed, OrderCancelled},
	OrderServed:    {OrderPaid, OrderCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPreparing, OrderServed, OrderPaid, OrderCancelled:
		return true
	}
	return false
}

// Final statuses accept no further transition.
func (s OrderStatus) Final() bool {
	return s == OrderPaid || s == OrderCancelled
}

// CanMoveTo reports whether s may transition to next.
func (s OrderStatus) CanMoveTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Order struct {
	Base
	CafeID     string      `json:"cafeId" gorm:"size:36;index;not null"`
	TableID    *string     `json:"tableId" gorm:"size:36;index"`
	CampaignID *string     `json:"campaignId" gorm:"size:36;index"`
	StaffID    string      `json:"staffId" gorm:"size:36;not null"`
	Status     OrderStatus `json:"status" gorm:"size:16;index;not null"`
	Subtotal   float64     `json:"subtotal"`
	Discount   float64     `json:"discount"`
	Total      float64     `json:"total"`
	Items      []OrderItem `json:"items" gorm:"constraint:OnDelete:CASCADE"`
}

// OrderItem keeps a copy of the name and prices at the time of the order.
type OrderItem struct {
	Base
	OrderID     string  `json:"orderId" gorm:"size:36;index;not null"`
	MenuItemID  string  `json:"menuItemId" gorm:"size:36;index;not null"`
	Name        string  `json:"name"`
	Size        *Size   `json:"size" gorm:"size:10"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	ExtrasTotal float64 `json:"extrasTotal"`
	LineTotal   float64 `json:"lineTotal"`
}
