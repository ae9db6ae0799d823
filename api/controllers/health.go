package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/productfeed/api/responses"
	"github.com/angelmondragon/productfeed/pkg/config"
	pkgerrors "github.com/angelmondragon/productfeed/pkg/errors"
	"github.com/angelmondragon/productfeed/pkg/instance"
	"github.com/angelmondragon/productfeed/pkg/logger"
	"github.com/angelmondragon/productfeed/pkg/types"
)

const readinessTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Productfeed-Env", cfg.App.Env)
		responses.WriteSuccess(w, types.HealthStatus{
			Status: "live",
			Checks: map[string]string{"instance": instance.GetID()},
		})
	}
}

// HealthReady pings Redis when one is configured. A nil pinger means the
// service runs without a shared cache and is always ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, redis pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Productfeed-Env", cfg.App.Env)

		checks := map[string]string{"redis": "disabled"}
		if redis != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			defer cancel()
			if err := redis.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
			checks["redis"] = "ok"
		}
		responses.WriteSuccess(w, types.HealthStatus{Status: "ready", Checks: checks})
	}
}
