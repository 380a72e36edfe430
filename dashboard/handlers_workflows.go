package dashboard

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/engine"
	"github.com/configurable-agents/engine/state"
	"github.com/configurable-agents/engine/store"
)

// workflowsView backs the "workflows_list" template. Available is false
// when the run store could not be read (spec §7: StoreUnavailable "on
// read paths returns a friendly degraded view, never a 500").
type workflowsView struct {
	Runs      []store.RunRecord
	Available bool
}

func (s *Server) handleListWorkflows(c echo.Context) error {
	filter := store.Filter{Status: c.QueryParam("status")}
	runs, err := s.Store.List(c.Request().Context(), filter)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			runs = nil
		} else {
			return c.Render(http.StatusOK, "workflows_list", workflowsView{Available: false})
		}
	}
	return c.Render(http.StatusOK, "workflows_list", workflowsView{Runs: runs, Available: true})
}

func (s *Server) handleGetWorkflow(c echo.Context) error {
	run, err := s.Store.Get(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "run not found")
		}
		return s.writeKindError(c, err)
	}
	return c.Render(http.StatusOK, "workflow_detail", map[string]any{"Run": run})
}

// handleRestartWorkflow re-executes the workflow captured in a completed
// run's config_snapshot under a new run id, linking ParentRunID back to
// the original (spec §4.9 Restart, testable scenario 4). A still-active
// run cannot be restarted (400); the original record is never mutated.
func (s *Server) handleRestartWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	original, err := s.Store.Get(ctx, c.Param("run_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "run not found")
		}
		return s.writeKindError(c, err)
	}
	if original.Status == store.StatusPending || original.Status == store.StatusRunning {
		return echo.NewHTTPError(http.StatusBadRequest, "run still active")
	}

	format := declaration.FormatYAML
	if strings.HasPrefix(strings.TrimSpace(original.ConfigSnapshot), "{") {
		format = declaration.FormatJSON
	}
	d, err := declaration.Parse([]byte(original.ConfigSnapshot), format)
	if err != nil {
		return s.writeKindError(c, err)
	}
	builder, err := state.NewBuilder(d)
	if err != nil {
		return s.writeKindError(c, err)
	}

	record, err := s.Engine.Execute(ctx, d, builder, original.Inputs, engine.Options{
		ParentRunID:    original.ID,
		ConfigSnapshot: original.ConfigSnapshot,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error(), "run_id": record.ID})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"new_run_id": record.ID})
}
