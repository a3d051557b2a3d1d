package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	pricing "github.com/xenking/tripmarket-pricing/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := pricing.LoadConfig()
		if err != nil {
			return err
		}
		return pricing.Run(ctx, lg, m, cfg)
	})
}
