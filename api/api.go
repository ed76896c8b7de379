// Package api implements the REST surface with github.com/labstack/echo/v4
// (+ echo-jwt for the authenticated trigger). Handlers stay thin: they
// validate the request shape, delegate to workflow/engine/webhook, and
// marshal JSON responses.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/shipsec/workflow-engine/compiler"
	"github.com/shipsec/workflow-engine/engine"
	"github.com/shipsec/workflow-engine/port"
	"github.com/shipsec/workflow-engine/store"
	"github.com/shipsec/workflow-engine/webhook"
	"github.com/shipsec/workflow-engine/workflow"
)

// Server bundles the collaborators a request handler needs.
type Server struct {
	Workflows *workflow.Registry
	Engine    *engine.Engine
	Webhooks  *webhook.Registry
	Emitter   LogReader
	JWTSecret string // empty disables JWT auth on the mutating (non-GET) /workflows routes
}

// LogReader streams structured log events for a run, satisfied by
// emit.Emitter implementations that retain a queryable history.
type LogReader interface {
	EventsForRun(ctx context.Context, runID string) ([]byte, error)
}

// NewEcho builds the configured *echo.Echo router.
func NewEcho(s *Server) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	wf := e.Group("/workflows")
	if s.JWTSecret != "" {
		wf.Use(echojwt.WithConfig(echojwt.Config{
			SigningKey:  []byte(s.JWTSecret),
			TokenLookup: "header:Authorization:Bearer ",
			Skipper: func(c echo.Context) bool {
				// Reads (status polling) stay open to unauthenticated
				// pollers sharing only a run id; only mutating routes
				// require the trigger's bearer token.
				return c.Request().Method == http.MethodGet
			},
		}))
	}
	wf.POST("", s.createWorkflow)
	wf.PUT("/:id", s.updateWorkflow)
	wf.POST("/:id/commit", s.commitWorkflow)
	wf.POST("/:id/run", s.runWorkflow)
	wf.GET("/runs/:runId/status", s.runStatus)
	wf.POST("/runs/:runId/cancel", s.cancelRun)

	ex := e.Group("/executions")
	ex.GET("/:runId/logs", s.runLogs)
	ex.GET("/:runId/config", s.runConfig)

	e.POST("/humanInputs/:id/resolve", s.resolveHumanInput)

	wh := e.Group("/webhooks")
	wh.POST("/configurations", s.registerWebhook)
	wh.POST("/inbound/:path", s.inboundWebhook)

	return e
}

type createWorkflowRequest struct {
	Name string `json:"name"`
}

func (s *Server) createWorkflow(c echo.Context) error {
	var req createWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	w := s.Workflows.Create(req.Name)
	return c.JSON(http.StatusOK, map[string]string{"id": w.ID})
}

type updateWorkflowRequest struct {
	Graph compiler.Graph `json:"graph"`
}

func (s *Server) updateWorkflow(c echo.Context) error {
	var req updateWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	if err := s.Workflows.UpdateGraph(c.Param("id"), req.Graph); err != nil {
		return c.JSON(http.StatusNotFound, errorBody(err))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) commitWorkflow(c echo.Context) error {
	v, compileErrs := s.Workflows.Commit(c.Request().Context(), c.Param("id"))
	if len(compileErrs) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{"errors": compileErrs})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"versionId": v.ID, "planHash": v.Plan.Hash})
}

type runWorkflowRequest struct {
	Inputs    map[string]interface{} `json:"inputs"`
	VersionID string                 `json:"versionId"`
	Version   int                    `json:"version"` // 1-based position in the commit history
}

func (s *Server) runWorkflow(c echo.Context) error {
	w, ok := s.Workflows.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody(errors.New("workflow not found")))
	}
	var req runWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}

	var version *workflow.Version
	switch {
	case req.VersionID != "":
		version, ok = w.VersionByID(req.VersionID)
		if !ok {
			return c.JSON(http.StatusNotFound, errorBody(errors.New("version not found")))
		}
	case req.Version > 0:
		if req.Version > len(w.Versions) {
			return c.JSON(http.StatusNotFound, errorBody(errors.New("version not found")))
		}
		version = w.Versions[req.Version-1]
	default:
		version, ok = w.LatestVersion()
		if !ok {
			return c.JSON(http.StatusUnprocessableEntity, errorBody(errors.New("workflow has no committed version")))
		}
	}

	run := s.Engine.NewRun(version.Plan, engine.TriggerAPI, port.MapFromJSON(req.Inputs))
	go func() {
		_ = s.Engine.Start(context.Background(), run)
	}()
	return c.JSON(http.StatusOK, map[string]string{"runId": run.ID})
}

func (s *Server) runStatus(c echo.Context) error {
	run, err := s.Engine.GetRun(c.Request().Context(), c.Param("runId"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody(err))
	}
	outstanding := make([]*engine.Suspension, 0)
	for _, susp := range run.Suspensions {
		if susp.Status == engine.SuspensionPending {
			outstanding = append(outstanding, susp)
		}
	}
	nodeStates := make([]*engine.NodeState, 0, len(run.NodeStates))
	for _, ns := range run.NodeStates {
		nodeStates = append(nodeStates, ns)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":                 run.Status,
		"nodeStates":             nodeStates,
		"outstandingSuspensions": outstanding,
	})
}

func (s *Server) cancelRun(c echo.Context) error {
	s.Engine.Cancel(c.Param("runId"))
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) runLogs(c echo.Context) error {
	if s.Emitter == nil {
		return c.JSON(http.StatusNotImplemented, errorBody(errors.New("log streaming not configured")))
	}
	body, err := s.Emitter.EventsForRun(c.Request().Context(), c.Param("runId"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody(err))
	}
	return c.JSONBlob(http.StatusOK, body)
}

func (s *Server) runConfig(c echo.Context) error {
	run, err := s.Engine.GetRun(c.Request().Context(), c.Param("runId"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody(err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"inputs":           run.RuntimeInputs,
		"workflowVersionId": run.PlanHash,
	})
}

type resolveHumanInputRequest struct {
	Status       string                 `json:"status"` // "approved" | "rejected" | "resolved"
	ResponseData map[string]interface{} `json:"responseData"`
	Comment      string                 `json:"comment"`
}

func (s *Server) resolveHumanInput(c echo.Context) error {
	var req resolveHumanInputRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	runID := c.QueryParam("runId")
	token := c.QueryParam("token")
	var fields map[string]port.Value
	if len(req.ResponseData) > 0 {
		fields = port.MapFromJSON(req.ResponseData)
	}
	approved := req.Status == "approved"
	if s, ok := fields["status"]; ok && s.Str == "approved" {
		// Clients may carry the verdict inside responseData
		// ({status:"resolved", responseData:{status:"approved"}}).
		approved = true
	}
	payload := engine.ResolutionPayload{
		Approved:     approved,
		ResponseNote: req.Comment,
		Fields:       fields,
	}
	if err := s.Engine.Resolve(c.Request().Context(), runID, c.Param("id"), token, payload); err != nil {
		if errors.Is(err, store.ErrAlreadyResolved) {
			return c.JSON(http.StatusConflict, errorBody(err))
		}
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	return c.NoContent(http.StatusNoContent)
}

type registerWebhookRequest struct {
	Path          string `json:"path"`
	WorkflowID    string `json:"workflowId"`
	VersionID     string `json:"versionId"`
	ParsingScript string `json:"parsingScript"`
	Secret        string `json:"secret"`
}

func (s *Server) registerWebhook(c echo.Context) error {
	var req registerWebhookRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	cfg := webhook.Configuration{
		Path:          req.Path,
		WorkflowID:    req.WorkflowID,
		VersionID:     req.VersionID,
		ParsingScript: req.ParsingScript,
		Secret:        req.Secret,
	}
	if err := s.Webhooks.Register(cfg); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	return c.JSON(http.StatusOK, map[string]string{"path": req.Path})
}

func (s *Server) inboundWebhook(c echo.Context) error {
	var body map[string]interface{}
	_ = c.Bind(&body)

	// Header keys are lowercased so parsing scripts match them without
	// knowing Go's canonical MIME casing (scripts address
	// headers["x-github-event"], not "X-Github-Event").
	headers := map[string]string{}
	for k := range c.Request().Header {
		headers[strings.ToLower(k)] = c.Request().Header.Get(k)
	}
	query := map[string]string{}
	for k := range c.QueryParams() {
		query[k] = c.QueryParam(k)
	}

	runID, err := s.Webhooks.Handle(c.Request().Context(), c.Param("path"), webhook.InboundRequest{
		Headers: headers,
		Body:    body,
		Query:   query,
	})
	if err != nil {
		if errors.Is(err, webhook.ErrNoMatch) {
			return c.JSON(http.StatusNotFound, errorBody(err))
		}
		if errors.Is(err, webhook.ErrSecretMismatch) {
			return c.JSON(http.StatusUnauthorized, errorBody(err))
		}
		return c.JSON(http.StatusBadRequest, errorBody(err))
	}
	return c.JSON(http.StatusOK, map[string]string{"runId": runID})
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

// NewWebhookTrigger adapts an engine + workflow registry into a
// webhook.Trigger that starts a run against a workflow's latest (or
// specified) committed version.
func NewWebhookTrigger(workflows *workflow.Registry, eng *engine.Engine) webhook.Trigger {
	return func(ctx context.Context, workflowID, versionID string, inputs map[string]port.Value) (string, error) {
		w, ok := workflows.Get(workflowID)
		if !ok {
			return "", errors.New("api: workflow not found")
		}
		var version *workflow.Version
		if versionID != "" {
			version, ok = w.VersionByID(versionID)
		} else {
			version, ok = w.LatestVersion()
		}
		if !ok {
			return "", errors.New("api: no committed version available")
		}
		run := eng.NewRun(version.Plan, engine.TriggerWebhook, inputs)
		go func() {
			_ = eng.Start(context.Background(), run)
		}()
		return run.ID, nil
	}
}
