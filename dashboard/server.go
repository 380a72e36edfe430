// Package dashboard is the operator-facing HTTP control plane (C15, spec
// §6): a server-rendered view over run history, the remote agent
// registry, and A/B experiment results, plus the inbound webhook route.
// Grounded in Dutt23-agentic-orchestrator/cmd/orchestrator/main.go's
// echo.New + middleware + routes.Register* shape; the handler-struct /
// route-group split in handlers_*.go mirrors that repo's
// handlers.RunHandler/routes.RegisterRunRoutes pairing.
package dashboard

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/configurable-agents/engine/agentreg"
	"github.com/configurable-agents/engine/engine"
	"github.com/configurable-agents/engine/expstore"
	"github.com/configurable-agents/engine/internal/obslog"
	"github.com/configurable-agents/engine/orchestrator"
	"github.com/configurable-agents/engine/state"
	"github.com/configurable-agents/engine/store"
	"github.com/configurable-agents/engine/tool"
	"github.com/configurable-agents/engine/validate"
	"github.com/configurable-agents/engine/webhook"
)

// WorkflowLookup resolves a workflow name to its declaration/builder
// pair, shared with webhook.Lookup's contract so both the dashboard's
// agent-execute route and the webhook dispatcher can drive the same
// engine against the same set of known workflows.
type WorkflowLookup = webhook.Lookup

// Server wires every dependency C15's routes need. Nothing here is a
// package-level singleton; New is the only constructor and every field
// is passed in explicitly (ambient-stack convention shared with
// internal/obslog and internal/config).
type Server struct {
	Engine       *engine.Engine
	Store        store.Store
	Agents       *agentreg.Registry
	Orchestrator *orchestrator.Orchestrator
	Experiments  expstore.Store
	Webhook      *webhook.Dispatcher
	Lookup       WorkflowLookup
	Logger       *obslog.Logger

	echo *echo.Echo
}

// New builds a Server and registers every route. The returned *echo.Echo
// is exposed via Handler so the caller (cmd/agentflow's ui command, or
// the supervisor's internal-serve re-exec) can Start it on whatever port
// the caller chooses.
func New(s Server) *Server {
	if s.Logger == nil {
		s.Logger = obslog.New("info", obslog.FormatConsole)
	}
	s.Experiments = expstore.NewGuard(s.Experiments)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Renderer = newRenderer()

	s.echo = e
	s.registerRoutes(e)
	return &s
}

// Handler returns the underlying echo.Echo, ready to Start or to pass to
// httptest for route-level tests.
func (s *Server) Handler() *echo.Echo { return s.echo }

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/health", s.handleHealth)

	e.GET("/workflows", s.handleListWorkflows)
	e.GET("/workflows/:run_id", s.handleGetWorkflow)
	e.POST("/workflows/:run_id/restart", s.handleRestartWorkflow)

	e.GET("/agents", s.handleListAgents)
	e.POST("/orchestrator/register", s.handleRegisterAgent)
	e.DELETE("/orchestrator/:agent_id", s.handleDeregisterAgent)
	e.GET("/orchestrator/health-check", s.handleAgentHealthCheck)
	e.GET("/orchestrator/:agent_id/schema", s.handleAgentSchema)
	e.POST("/orchestrator/:agent_id/execute", s.handleAgentExecute)

	e.GET("/optimization/experiments", s.handleListExperiments)
	e.GET("/optimization/compare", s.handleCompareExperiment)
	e.POST("/optimization/apply", s.handleApplyOptimized)

	if s.Webhook != nil {
		e.POST("/webhooks/generic", s.Webhook.Handle)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// writeKindError maps an error to the status code spec §7 assigns its
// kind, attaching a correlation id for anything that falls through to
// 500. ErrUnavailable-flavored read-path errors never reach here; callers
// check errors.Is(err, expstore.ErrUnavailable)/store-equivalent first
// and render a degraded view instead.
func (s *Server) writeKindError(c echo.Context, err error) error {
	status, body := classifyError(err)
	if status == http.StatusInternalServerError {
		correlationID := c.Response().Header().Get(echo.HeaderXRequestID)
		s.Logger.WithFields(map[string]any{"correlation_id": correlationID}).Error("unhandled dashboard error", "error", err)
		body["correlation_id"] = correlationID
	}
	return c.JSON(status, body)
}

// classifyError maps an error to the HTTP status spec §7 assigns its
// kind. Most kinds have a concrete Go type or sentinel somewhere in the
// packages that produce them (validate.Error for ConfigValidation,
// state.OutputError for TypeValidation, tool.MissingError for
// ToolMissing, orchestrator.ErrAgentUnreachable, engine.GateError);
// these are matched with errors.As/errors.Is rather than string
// sniffing. The orchestrator's "agent rejected" case has no exported
// sentinel (it is a terminal, non-retried 4xx from the remote agent, not
// a condition callers branch on), so it is matched on its own fixed
// message substring instead of adding one.
func classifyError(err error) (int, map[string]any) {
	var (
		validationErr *validate.Error
		outputErr     *state.OutputError
		toolMissing   *tool.MissingError
		gateErr       *engine.GateError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &outputErr):
		return http.StatusBadRequest, map[string]any{"error": err.Error()}
	case errors.As(err, &toolMissing), errors.Is(err, orchestrator.ErrAgentUnreachable):
		return http.StatusNotFound, map[string]any{"error": err.Error()}
	case strings.Contains(err.Error(), "agent rejected"):
		return http.StatusUnauthorized, map[string]any{"error": err.Error()}
	case errors.As(err, &gateErr):
		return http.StatusUnprocessableEntity, map[string]any{"error": err.Error()}
	default:
		return http.StatusInternalServerError, map[string]any{"error": "internal error"}
	}
}
