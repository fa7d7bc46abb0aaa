package bootstrap

import (
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/eleven-am/dinevoice/internal/tools"
)

func ProvideRestaurantStore(db *gorm.DB) *tools.RestaurantStore {
	return tools.NewRestaurantStore(db)
}

func ProvideToolRegistry(store *tools.RestaurantStore, logger *slog.Logger) *tools.Registry {
	reg := tools.NewRegistry(logger)
	tools.RegisterDining(reg, store, nil)
	return reg
}

func RunMigrations(store *tools.RestaurantStore) error {
	return store.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideRestaurantStore,
		ProvideToolRegistry,
	),
	fx.Invoke(RunMigrations),
)
