package dashboard

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/configurable-agents/engine/experiment"
	"github.com/configurable-agents/engine/expstore"
)

const defaultOptimizationMetric = "cost_usd"

type experimentsView struct {
	Names     []string
	Available bool
}

func (s *Server) handleListExperiments(c echo.Context) error {
	names, err := s.Experiments.ListExperiments(c.Request().Context())
	if err != nil {
		if errors.Is(err, expstore.ErrUnavailable) {
			return c.Render(http.StatusOK, "experiments_list", experimentsView{Available: false})
		}
		return s.writeKindError(c, err)
	}
	return c.Render(http.StatusOK, "experiments_list", experimentsView{Names: names, Available: true})
}

func (s *Server) handleCompareExperiment(c echo.Context) error {
	experimentName := c.QueryParam("experiment")
	if experimentName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "experiment query parameter is required")
	}
	metric := c.QueryParam("metric")
	if metric == "" {
		metric = defaultOptimizationMetric
	}

	results, err := experiment.Evaluate(c.Request().Context(), s.Experiments, experimentName, metric)
	if err != nil {
		if errors.Is(err, expstore.ErrUnavailable) {
			return c.Render(http.StatusOK, "experiment_compare", map[string]any{
				"Experiment": experimentName, "Metric": metric, "Results": nil,
			})
		}
		return s.writeKindError(c, err)
	}
	return c.Render(http.StatusOK, "experiment_compare", map[string]any{
		"Experiment": experimentName, "Metric": metric, "Results": results,
	})
}

type applyRequest struct {
	Experiment string `form:"experiment" json:"experiment"`
	Metric     string `form:"metric" json:"metric"`
	Workflow   string `form:"workflow" json:"workflow"`
	Minimize   bool   `form:"minimize" json:"minimize"`
}

// handleApplyOptimized rewrites the named workflow file with its winning
// variant's prompt (spec §6: "POST /optimization/apply"). Workflow
// defaults to the query/form value; callers driving this from the
// compare view must supply it since the dashboard has no implicit
// mapping from experiment name to declaration file path.
func (s *Server) handleApplyOptimized(c echo.Context) error {
	var req applyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Experiment == "" || req.Workflow == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "experiment and workflow are required")
	}
	metric := req.Metric
	if metric == "" {
		metric = defaultOptimizationMetric
	}

	winner, err := experiment.ApplyBest(c.Request().Context(), s.Experiments, req.Workflow, req.Experiment, metric, req.Minimize)
	if err != nil {
		return s.writeKindError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"winner": winner})
}
