package sync

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"github.com/wfworld/dashboard/dashboard"
)

// requireAuth wraps a handler function to require authentication.
func requireAuth(handler func(*core.RequestEvent) error) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if e.Auth == nil {
			return apis.NewUnauthorizedError("Authentication required", nil)
		}
		return handler(e)
	}
}

// RegisterRoutes sets up the custom API endpoints for sync control,
// settings, and the dashboard views.
func RegisterRoutes(e *core.ServeEvent, scheduler *Scheduler, settings *SettingsCache, dash *dashboard.Service) error {
	orchestrator := scheduler.GetOrchestrator()

	// sync triggers
	e.Router.POST("/api/custom/sync/clients", requireAuth(func(e *core.RequestEvent) error {
		return handleStartSync(e, orchestrator, "clients")
	}))
	e.Router.POST("/api/custom/sync/sales", requireAuth(func(e *core.RequestEvent) error {
		return handleStartSync(e, orchestrator, "sales")
	}))
	e.Router.POST("/api/custom/sync/full", requireAuth(func(e *core.RequestEvent) error {
		if orchestrator.IsFullSyncRunning() {
			return e.JSON(http.StatusConflict, map[string]interface{}{
				"error": "full sync already in progress",
			})
		}
		scheduler.TriggerFullSync()
		return e.JSON(http.StatusAccepted, map[string]interface{}{
			"status": "started",
		})
	}))

	e.Router.GET("/api/custom/sync/status", requireAuth(func(e *core.RequestEvent) error {
		return e.JSON(http.StatusOK, map[string]interface{}{
			"clients":           orchestrator.GetStatus("clients"),
			"sales":             orchestrator.GetStatus("sales"),
			"running":           orchestrator.GetRunningJobs(),
			"full_sync_running": orchestrator.IsFullSyncRunning(),
		})
	}))

	// settings
	e.Router.GET("/api/custom/settings", requireAuth(func(e *core.RequestEvent) error {
		s, err := settings.Get(e.Request.Context())
		if err != nil {
			return apis.NewInternalServerError("Failed to load settings", err)
		}
		return e.JSON(http.StatusOK, s)
	}))
	e.Router.PATCH("/api/custom/settings", requireAuth(func(e *core.RequestEvent) error {
		var fields map[string]interface{}
		if err := e.BindBody(&fields); err != nil {
			return apis.NewBadRequestError("Invalid request body", err)
		}
		s, err := settings.Update(e.Request.Context(), fields)
		if err != nil {
			return apis.NewBadRequestError(err.Error(), err)
		}
		return e.JSON(http.StatusOK, s)
	}))

	// dashboard views
	e.Router.GET("/api/custom/dashboard/stats", requireAuth(func(e *core.RequestEvent) error {
		stats, err := dash.Statistics(e.Request.Context())
		if err != nil {
			return apis.NewInternalServerError("Failed to compute statistics", err)
		}
		return e.JSON(http.StatusOK, stats)
	}))
	e.Router.GET("/api/custom/dashboard/revenue", requireAuth(func(e *core.RequestEvent) error {
		revenue, err := dash.RevenueByPackage(e.Request.Context())
		if err != nil {
			return apis.NewInternalServerError("Failed to compute revenue", err)
		}
		return e.JSON(http.StatusOK, revenue)
	}))
	e.Router.GET("/api/custom/dashboard/trend", requireAuth(func(e *core.RequestEvent) error {
		days := 30
		if raw := e.Request.URL.Query().Get("days"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 365 {
				return apis.NewBadRequestError("Invalid days parameter", err)
			}
			days = parsed
		}
		trend, err := dash.SalesTrend(e.Request.Context(), days)
		if err != nil {
			return apis.NewInternalServerError("Failed to compute trend", err)
		}
		return e.JSON(http.StatusOK, trend)
	}))

	// client detail and manual entries
	e.Router.GET("/api/custom/clients/{code}/overview", requireAuth(func(e *core.RequestEvent) error {
		code := e.Request.PathValue("code")
		overview, err := dash.ClientOverview(e.Request.Context(), code)
		if err != nil {
			return apis.NewNotFoundError(err.Error(), err)
		}
		return e.JSON(http.StatusOK, overview)
	}))
	e.Router.POST("/api/custom/plans", requireAuth(func(e *core.RequestEvent) error {
		var input dashboard.PlanInput
		if err := e.BindBody(&input); err != nil {
			return apis.NewBadRequestError("Invalid request body", err)
		}
		record, err := dash.AddPlan(e.Request.Context(), input)
		if err != nil {
			return apis.NewBadRequestError(err.Error(), err)
		}
		return e.JSON(http.StatusOK, record)
	}))
	e.Router.POST("/api/custom/updates", requireAuth(func(e *core.RequestEvent) error {
		var input dashboard.UpdateInput
		if err := e.BindBody(&input); err != nil {
			return apis.NewBadRequestError("Invalid request body", err)
		}
		record, err := dash.AddUpdate(e.Request.Context(), input)
		if err != nil {
			return apis.NewBadRequestError(err.Error(), err)
		}
		return e.JSON(http.StatusOK, record)
	}))

	// manual expiry sweep
	e.Router.POST("/api/custom/subscriptions/sweep", requireAuth(func(e *core.RequestEvent) error {
		expired, err := dash.SweepExpired(e.Request.Context())
		if err != nil {
			return apis.NewInternalServerError("Failed to sweep subscriptions", err)
		}
		return e.JSON(http.StatusOK, map[string]interface{}{
			"expired": expired,
		})
	}))

	return nil
}

// handleStartSync launches one sync type in the background. 409 when a
// run of the same type is already in flight; configuration problems
// surface through the status endpoint once the run fails.
func handleStartSync(e *core.RequestEvent, orchestrator *Orchestrator, syncType string) error {
	if err := orchestrator.StartSync(syncType); err != nil {
		return e.JSON(http.StatusConflict, map[string]interface{}{
			"error": err.Error(),
		})
	}
	return e.JSON(http.StatusAccepted, map[string]interface{}{
		"status": "started",
		"type":   syncType,
	})
}
