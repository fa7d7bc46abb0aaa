package tools

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/eleven-am/dinevoice/internal/shared"
)

const (
	defaultLimit    = 5
	maxLimit        = 20
	cuisinePageSize = 50
)

type SearchQuery struct {
	City      string
	Cuisine   string
	MaxPrice  int
	MinRating float32
	Limit     int
}

type RestaurantStore struct {
	db *gorm.DB
}

func NewRestaurantStore(db *gorm.DB) *RestaurantStore {
	return &RestaurantStore{db: db}
}

func (s *RestaurantStore) Migrate() error {
	return s.db.AutoMigrate(&Restaurant{}, &Offer{})
}

func (s *RestaurantStore) Create(ctx context.Context, r *Restaurant) error {
	if r.ID == "" {
		r.ID = shared.NewID("rest_")
	}
	for i := range r.Offers {
		if r.Offers[i].ID == "" {
			r.Offers[i].ID = shared.NewID("offer_")
		}
	}
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *RestaurantStore) GetByID(ctx context.Context, id string) (*Restaurant, error) {
	var r Restaurant
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &r, err
}

// Search returns restaurants ordered by rating. Cuisine matching is done in
// memory because the cuisines column is a JSON array whose operators differ
// between postgres and sqlite, so cuisine searches scan in pages.
func (s *RestaurantStore) Search(ctx context.Context, q SearchQuery) ([]*Restaurant, error) {
	limit := clampLimit(q.Limit)

	tx := s.db.WithContext(ctx).Model(&Restaurant{})
	if q.City != "" {
		tx = tx.Where("LOWER(city) = ?", strings.ToLower(q.City))
	}
	if q.MaxPrice > 0 {
		tx = tx.Where("price_level <= ?", q.MaxPrice)
	}
	if q.MinRating > 0 {
		tx = tx.Where("rating >= ?", q.MinRating)
	}
	tx = tx.Order("rating DESC").Order("name ASC").Order("id ASC").Session(&gorm.Session{})

	if q.Cuisine == "" {
		var out []*Restaurant
		if err := tx.Limit(limit).Find(&out).Error; err != nil {
			return nil, err
		}
		return out, nil
	}

	out := make([]*Restaurant, 0, limit)
	for offset := 0; ; offset += cuisinePageSize {
		var page []*Restaurant
		if err := tx.Offset(offset).Limit(cuisinePageSize).Find(&page).Error; err != nil {
			return nil, err
		}
		for _, r := range page {
			if !r.Cuisines.ContainsFold(q.Cuisine) {
				continue
			}
			out = append(out, r)
			if len(out) == limit {
				return out, nil
			}
		}
		if len(page) < cuisinePageSize {
			return out, nil
		}
	}
}

// ActiveOffers lists offers still valid at now, optionally narrowed to one
// restaurant or one city.
func (s *RestaurantStore) ActiveOffers(ctx context.Context, restaurantID, city string, now time.Time, limit int) ([]*Offer, error) {
	tx := s.db.WithContext(ctx).Model(&Offer{}).Where("offers.valid_until > ?", now)
	if restaurantID != "" {
		tx = tx.Where("offers.restaurant_id = ?", restaurantID)
	}
	if city != "" {
		tx = tx.Joins("JOIN restaurants ON restaurants.id = offers.restaurant_id").
			Where("LOWER(restaurants.city) = ?", strings.ToLower(city))
	}

	var offers []*Offer
	err := tx.Order("offers.discount_pct DESC").Order("offers.valid_until ASC").
		Limit(clampLimit(limit)).Find(&offers).Error
	return offers, err
}

func (s *RestaurantStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
