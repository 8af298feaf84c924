package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/chamby-mx/chamby-backend/api/responses"
	"github.com/chamby-mx/chamby-backend/pkg/config"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Chamby-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports whether the service can reach its dependencies. A nil
// pinger is skipped so workers can reuse the probe with a partial stack.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Chamby-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "unreachable"
				if logg != nil {
					logg.Error(ctx, "health."+name, err)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
			checks[name] = "ok"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

// ReadyDeps builds the dependency map for HealthReady.
func ReadyDeps(db pinger, redis pinger, pubsub pinger) map[string]pinger {
	deps := map[string]pinger{}
	if db != nil {
		deps["db"] = db
	}
	if redis != nil {
		deps["redis"] = redis
	}
	if pubsub != nil {
		deps["pubsub"] = pubsub
	}
	return deps
}
