// Package web provides the HTTP surface of the engine: on-demand execution,
// execution inspection, cancellation and platform event ingest.
package web

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/campushive/flowkit/pkg/persistence"
	"github.com/campushive/flowkit/pkg/runtime"
	"github.com/campushive/flowkit/pkg/triggers"
)

type APIHandlers struct {
	persistence persistence.Persistence
	runner      *runtime.Runner
	router      *triggers.Router
	validator   *validator.Validate
}

func NewAPIHandlers(
	store persistence.Persistence,
	runner *runtime.Runner,
	router *triggers.Router,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		persistence: store,
		runner:      runner,
		router:      router,
		validator:   validate,
	}
}

// StartExecution runs the workflow synchronously and returns the finished
// execution. Workflows are short HTTP-node chains; long chains belong on the
// scheduler path, not this endpoint.
func (h *APIHandlers) StartExecution(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req StartExecutionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	execution, err := h.runner.Run(c.Context(), runtime.RunRequest{
		WorkflowID: workflowID,
		Input:      req.Input,
	})
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toExecutionResponse(execution))
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.persistence.Executions().ExecutionByID(c.Context(), executionID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(toExecutionResponse(execution))
}

func (h *APIHandlers) GetExecutionLogs(c fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		return badRequest(c, "Execution ID is required")
	}

	if _, err := h.persistence.Executions().ExecutionByID(c.Context(), executionID); err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	logs, err := h.persistence.Executions().LogsByExecution(c.Context(), executionID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"execution_id": executionID,
		"logs":         logs,
	})
}

// CancelExecution flags a running execution for cooperative cancellation.
// The runner honors the flag at the next node boundary; a node already in
// flight completes first.
func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.persistence.Executions().ExecutionByID(c.Context(), executionID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	if execution.IsTerminal() {
		return conflict(c, "Execution already finished with status "+string(execution.Status))
	}

	execution.CancelRequested = true
	if err := h.persistence.Executions().UpdateExecution(c.Context(), execution); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"execution_id":     executionID,
		"cancel_requested": true,
	})
}

// IngestEvent feeds a named platform event into the trigger router. Events
// with no binding and duplicates both return 200 with the outcome flags set.
func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	var req IngestEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.router.HandleEvent(c.Context(), req.InstituteID, req.EventName, req.Payload)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(IngestEventResponse{
		Fired:       result.Fired,
		Duplicate:   result.Duplicate,
		ExecutionID: result.ExecutionID,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
	})
}
