package gateway

import (
	"context"
	"errors"

	"vahan/internal/core/lookup"
	"vahan/internal/logger"
	"vahan/internal/utils/parser"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	missingParamsMsg = "Missing parameters. Use /lookup?reg=XX00YY0000&chassis=12345"
	timeoutMsg       = "Process timeout. Browser automation took too long."
	malformedMsg     = "Invalid JSON output from lookup process"
)

// ErrorResponse is the body of every non-200 gateway response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LookupQuery is the query string accepted by GET /lookup. Both values are
// trimmed of surrounding whitespace before they reach the lookup process, and
// a whitespace-only value counts as missing.
type LookupQuery struct {
	Reg     string `form:"reg,required"`
	Chassis string `form:"chassis,required"`
}

// LookupRunner runs one lookup to completion.
type LookupRunner interface {
	Run(ctx context.Context, requestID, reg, chassis string) (lookup.Result, error)
}

type Handler struct {
	log    *logger.Logger
	runner LookupRunner
}

func NewHandler(runner LookupRunner) *Handler {
	return &Handler{log: logger.New("Gateway"), runner: runner}
}

func (h *Handler) HandleHome(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "Vehicle OSINT API Running",
		"service": "vahan",
	})
}

func (h *Handler) HandleLookup(c *fiber.Ctx) error {
	var q LookupQuery
	if err := parser.ParseQuery(c, &q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: missingParamsMsg})
	}
	reg, chassis := q.Reg, q.Chassis

	requestID := uuid.NewString()
	c.Set("X-Request-ID", requestID)
	log := h.log.With("request_id", requestID)
	log.LogInfof("lookup started for %s", reg)

	res, err := h.runner.Run(c.UserContext(), requestID, reg, chassis)
	var exitErr *ExitError
	switch {
	case err == nil:
		log.LogInfof("lookup finished: success=%t in %.2fs", res.Success, res.ResponseTimeSeconds)
		return c.JSON(res)
	case errors.Is(err, ErrTimeout):
		log.LogWarnf("lookup timed out")
		return c.Status(fiber.StatusGatewayTimeout).JSON(ErrorResponse{Error: timeoutMsg})
	case errors.As(err, &exitErr):
		log.LogErrorf("lookup process exited with code %d", exitErr.Code)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: exitErr.Output})
	case errors.Is(err, ErrMalformedOutput):
		log.LogErrorf("lookup output unusable: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: malformedMsg})
	default:
		log.LogErrorf("lookup failed: %v", err)
		return err
	}
}

// ErrorHandler renders errors that escape a handler, including recovered
// panics, as {"error": "..."}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}
