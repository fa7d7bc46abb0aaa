package bootstrap

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/eleven-am/dinevoice/internal/gateway"
	"github.com/eleven-am/dinevoice/internal/health"
	"github.com/eleven-am/dinevoice/internal/tools"
	"github.com/eleven-am/dinevoice/internal/voicesession"
)

const version = "1.0.0"

func ProvideHealthHandler(
	bridge *gateway.Bridge,
	store *tools.RestaurantStore,
	sessions *voicesession.Manager,
) *health.Handler {
	return health.NewHandler(health.Config{
		Critical: map[string]health.Pinger{
			"redis":    bridge,
			"database": store,
		},
		Sessions:    sessions,
		Subscribers: bridge,
		Version:     version,
	})
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
