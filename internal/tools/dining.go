package tools

import (
	"context"
	"time"

	"github.com/eleven-am/dinevoice/internal/transport"
)

const (
	SearchRestaurantsTool = "search_restaurants"
	ListOffersTool        = "list_offers"
)

type searchArgs struct {
	City      string  `json:"city"`
	Cuisine   string  `json:"cuisine"`
	MaxPrice  int     `json:"max_price"`
	MinRating float32 `json:"min_rating"`
	Limit     int     `json:"limit"`
}

type offersArgs struct {
	RestaurantID string `json:"restaurant_id"`
	City         string `json:"city"`
	Limit        int    `json:"limit"`
}

type SearchResult struct {
	Language    string        `json:"language,omitempty"`
	Restaurants []*Restaurant `json:"restaurants"`
}

type OffersResult struct {
	Language string   `json:"language,omitempty"`
	Offers   []*Offer `json:"offers"`
}

// RegisterDining installs the restaurant lookup tools backed by store.
func RegisterDining(r *Registry, store *RestaurantStore, now func() time.Time) {
	if now == nil {
		now = time.Now
	}

	r.Register(transport.ToolDefinition{
		Name:        SearchRestaurantsTool,
		Description: "Find restaurants by city, cuisine, price level and minimum rating.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city":       map[string]any{"type": "string", "description": "City name"},
				"cuisine":    map[string]any{"type": "string", "description": "Cuisine, e.g. italian"},
				"max_price":  map[string]any{"type": "integer", "minimum": 1, "maximum": 4},
				"min_rating": map[string]any{"type": "number", "minimum": 0, "maximum": 5},
				"limit":      map[string]any{"type": "integer", "minimum": 1, "maximum": maxLimit},
			},
		},
	}, func(ctx context.Context, call transport.ToolCall) (any, error) {
		var args searchArgs
		if err := decodeArgs(call, &args); err != nil {
			return nil, err
		}
		found, err := store.Search(ctx, SearchQuery{
			City:      args.City,
			Cuisine:   args.Cuisine,
			MaxPrice:  args.MaxPrice,
			MinRating: args.MinRating,
			Limit:     args.Limit,
		})
		if err != nil {
			return nil, err
		}
		return SearchResult{Language: call.Language, Restaurants: found}, nil
	})

	r.Register(transport.ToolDefinition{
		Name:        ListOffersTool,
		Description: "List current dining offers, optionally for one restaurant or city.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"restaurant_id": map[string]any{"type": "string"},
				"city":          map[string]any{"type": "string"},
				"limit":         map[string]any{"type": "integer", "minimum": 1, "maximum": maxLimit},
			},
		},
	}, func(ctx context.Context, call transport.ToolCall) (any, error) {
		var args offersArgs
		if err := decodeArgs(call, &args); err != nil {
			return nil, err
		}
		offers, err := store.ActiveOffers(ctx, args.RestaurantID, args.City, now(), args.Limit)
		if err != nil {
			return nil, err
		}
		return OffersResult{Language: call.Language, Offers: offers}, nil
	})
}
