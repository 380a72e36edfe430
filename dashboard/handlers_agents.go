package dashboard

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/configurable-agents/engine/agentreg"
)

type agentsView struct {
	Records []agentreg.Record
}

func (s *Server) handleListAgents(c echo.Context) error {
	records, err := s.Agents.ListAgents(c.Request().Context(), agentreg.Filter{})
	if err != nil {
		return s.writeKindError(c, err)
	}
	return c.Render(http.StatusOK, "agents_list", agentsView{Records: records})
}

type registerRequest struct {
	AgentID    string            `json:"agent_id"`
	Name       string            `json:"name"`
	URL        string            `json:"url"`
	Metadata   map[string]string `json:"metadata"`
	TTLSeconds int               `json:"ttl_seconds"`
}

// handleRegisterAgent implements POST /orchestrator/register. A register
// call probes the agent's health before accepting it (spec §6: "400
// (unreachable agent)"); re-registering an id that is already alive is a
// conflict.
func (s *Server) handleRegisterAgent(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TTLSeconds <= 0 {
		req.TTLSeconds = 60
	}

	ctx := c.Request().Context()
	if existing, err := s.Agents.ListAgents(ctx, agentreg.Filter{}); err == nil {
		for _, r := range existing {
			if r.Agent.ID == req.AgentID && r.Alive {
				return echo.NewHTTPError(http.StatusConflict, "agent already registered")
			}
		}
	}

	if err := s.Agents.Register(ctx, req.AgentID, req.Name, req.URL, req.Metadata, req.TTLSeconds); err != nil {
		return s.writeKindError(c, err)
	}

	if healthy, _, err := s.Agents.HealthProbe(ctx, req.AgentID); err != nil || !healthy {
		_ = s.Agents.Deregister(ctx, req.AgentID)
		return echo.NewHTTPError(http.StatusBadRequest, "agent unreachable")
	}

	return c.JSON(http.StatusOK, map[string]string{"agent_id": req.AgentID})
}

func (s *Server) handleDeregisterAgent(c echo.Context) error {
	if err := s.Agents.Deregister(c.Request().Context(), c.Param("agent_id")); err != nil {
		if errors.Is(err, agentreg.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "agent not registered")
		}
		return s.writeKindError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleAgentHealthCheck serves the HTMX partial that recomputes liveness
// (spec §6: "GET /orchestrator/health-check → HTML partial (HTMX);
// recomputes alive from last_heartbeat"). The fragment is the table's
// <thead>/<tbody> rows, for an innerHTML swap into the agents page's
// #agent-table element.
func (s *Server) handleAgentHealthCheck(c echo.Context) error {
	records, err := s.Agents.ListAgents(c.Request().Context(), agentreg.Filter{})
	if err != nil {
		return s.writeKindError(c, err)
	}
	return c.Render(http.StatusOK, "agent_health_check", agentsView{Records: records})
}

func (s *Server) handleAgentSchema(c echo.Context) error {
	schema, err := s.Orchestrator.FetchSchema(c.Request().Context(), c.Param("agent_id"))
	if err != nil {
		return s.writeKindError(c, err)
	}
	return c.JSON(http.StatusOK, schema)
}

type executeRequest struct {
	Inputs map[string]any `json:"inputs"`
}

// handleAgentExecute dispatches a run to the remote agent and redirects
// the caller to the new run's detail page (spec §6: "303 redirect to
// /workflows/{run_id}").
func (s *Server) handleAgentExecute(c echo.Context) error {
	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	agentID := c.Param("agent_id")
	workflowName := agentID
	if schema, err := s.Orchestrator.FetchSchema(ctx, agentID); err == nil && schema.Workflow != "" {
		workflowName = schema.Workflow
	}

	record, err := s.Orchestrator.ExecuteOn(ctx, agentID, workflowName, req.Inputs)
	if err != nil {
		return s.writeKindError(c, err)
	}
	return c.Redirect(http.StatusSeeOther, "/workflows/"+record.ID)
}
