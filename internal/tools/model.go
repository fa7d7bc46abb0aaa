package tools

import (
	"time"

	"github.com/eleven-am/dinevoice/internal/shared"
)

type Restaurant struct {
	ID   string `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`

	City         string             `gorm:"not null;index" json:"city"`
	Neighborhood string             `json:"neighborhood,omitempty"`
	Address      string             `json:"address,omitempty"`
	Cuisines     shared.StringSlice `gorm:"type:json" json:"cuisines,omitempty"`
	PriceLevel   int                `gorm:"default:2" json:"price_level"`
	Rating       float32            `gorm:"default:0" json:"rating"`
	Phone        string             `json:"phone,omitempty"`

	Offers []Offer `gorm:"foreignKey:RestaurantID" json:"offers,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

type Offer struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	RestaurantID string    `gorm:"not null;index" json:"restaurant_id"`
	Title        string    `gorm:"not null" json:"title"`
	Description  string    `json:"description,omitempty"`
	DiscountPct  int       `gorm:"default:0" json:"discount_pct"`
	ValidUntil   time.Time `json:"valid_until"`
	CreatedAt    time.Time `json:"-"`
}
