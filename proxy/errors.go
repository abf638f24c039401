package proxy

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/deepgate/pkg/llm"
	"github.com/papercomputeco/deepgate/pkg/llm/provider/deepseek"
)

// requestError is a client error detected by the gateway before any upstream
// call.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: fiber.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func unprocessable(format string, args ...any) error {
	return &requestError{status: fiber.StatusUnprocessableEntity, msg: fmt.Sprintf(format, args...)}
}

// errorStatus maps err to an HTTP status and client facing message.
// configStatus is the status used for a missing credential.
func errorStatus(err error, configStatus int) (int, string) {
	var (
		reqErr  *requestError
		cfgErr  *deepseek.ConfigError
		httpErr *deepseek.UpstreamHTTPError
		netErr  *deepseek.UpstreamNetworkError
	)

	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, reqErr.msg
	case errors.As(err, &cfgErr):
		return configStatus, cfgErr.Error()
	case errors.As(err, &httpErr):
		return httpErr.StatusCode, httpErr.Error()
	case errors.As(err, &netErr):
		return fiber.StatusBadGateway, "upstream request failed"
	default:
		return fiber.StatusInternalServerError, "internal error"
	}
}

// sendError writes err as an llm.ErrorResponse.
func (p *Proxy) sendError(c *fiber.Ctx, reqID string, err error, configStatus int) error {
	status, msg := errorStatus(err, configStatus)

	log := p.logger.Warn
	if status >= fiber.StatusInternalServerError {
		log = p.logger.Error
	}
	log("request failed",
		"request_id", reqID,
		"path", c.Path(),
		"status", status,
		"error", err,
	)

	return c.Status(status).JSON(llm.NewErrorResponse(msg))
}

// fiberErrorHandler renders routing errors (404, 405) in the gateway's
// error shape.
func fiberErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	return c.Status(status).JSON(llm.NewErrorResponse(err.Error()))
}
