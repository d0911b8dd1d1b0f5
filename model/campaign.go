package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountFixed   DiscountType = "FIXED"
)

type CampaignRules struct {
	DiscountType  DiscountType `json:"discountType"`
	Value         float64      `json:"value"`
	MinOrderTotal float64      `json:"minOrderTotal"`
}

// Validate checks the rule values a campaign may be saved with.
func (r CampaignRules) Validate() error {
	switch r.DiscountType {
	case DiscountPercent:
		if r.Value > 100 {
			return errors.New("percent discount cannot exceed 100")
		}
	case DiscountFixed:
	default:
		return errors.New("discountType must be PERCENT or FIXED")
	}
	if r.Value <= 0 {
		return errors.New("discount value must be positive")
	}
	if r.MinOrderTotal < 0 {
		return errors.New("minOrderTotal cannot be negative")
	}
	return nil
}

type Campaign struct {
	Base
	Name     string                            `json:"name" gorm:"not null"`
	Rules    datatypes.JSONType[CampaignRules] `json:"rules"`
	IsActive bool                              `json:"isActive"`
	StartsAt *time.Time                        `json:"startsAt"`
	EndsAt   *time.Time                        `json:"endsAt"`
	CafeID   string                            `json:"cafeId" gorm:"size:36;index;not null"`
}

// RunningAt reports whether the campaign applies at t.
func (c *Campaign) RunningAt(t time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.StartsAt != nil && t.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && t.After(*c.EndsAt) {
		return false
	}
	return true
}
