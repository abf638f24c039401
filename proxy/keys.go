package proxy

import (
	"errors"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/deepgate/pkg/llm"
	"github.com/papercomputeco/deepgate/pkg/llm/provider/deepseek"
)

// handleCheckAPIKey reports whether a credential is configured and whether
// upstream accepts it. Rejections and network failures are reported in the
// body rather than as HTTP errors.
func (p *Proxy) handleCheckAPIKey(c *fiber.Ctx) error {
	reqID := p.headerHandler.RequestID(c)

	key := p.keys.APIKey()
	if key == "" {
		return c.JSON(llm.KeyStatus{
			IsSet:   false,
			IsValid: false,
			Message: "API key is not configured",
		})
	}

	err := p.provider.ValidateKey(c.Context(), key)
	if err == nil {
		return c.JSON(llm.KeyStatus{IsSet: true, IsValid: true, Message: "API key is valid"})
	}

	var (
		httpErr *deepseek.UpstreamHTTPError
		netErr  *deepseek.UpstreamNetworkError
	)
	switch {
	case errors.As(err, &httpErr):
		return c.JSON(llm.KeyStatus{
			IsSet:   true,
			IsValid: false,
			Message: "API key is invalid: " + httpErr.Message(),
		})
	case errors.As(err, &netErr):
		return c.JSON(llm.KeyStatus{
			IsSet:   true,
			IsValid: false,
			Message: "network error while validating API key: " + netErr.Err.Error(),
		})
	default:
		return p.sendError(c, reqID, err, fiber.StatusInternalServerError)
	}
}

// handleSetAPIKey validates a candidate key against upstream and persists it
// only when upstream accepts it.
func (p *Proxy) handleSetAPIKey(c *fiber.Ctx) error {
	reqID := p.headerHandler.RequestID(c)

	var body llm.SetKeyRequest
	if err := sonic.ConfigStd.Unmarshal(c.Body(), &body); err != nil {
		return p.sendError(c, reqID, unprocessable("invalid request body: %v", err), fiber.StatusInternalServerError)
	}

	key := strings.TrimSpace(body.APIKey)
	if key == "" {
		return p.sendError(c, reqID, badRequest("api_key is required"), fiber.StatusInternalServerError)
	}

	if err := p.provider.ValidateKey(c.Context(), key); err != nil {
		var httpErr *deepseek.UpstreamHTTPError
		if errors.As(err, &httpErr) {
			p.logger.Info("rejected api key update",
				"request_id", reqID,
				"status", httpErr.StatusCode,
			)
			return c.JSON(llm.SetKeyResult{
				Success: false,
				Message: "API key is invalid: " + httpErr.Message(),
			})
		}
		return p.sendError(c, reqID, err, fiber.StatusInternalServerError)
	}

	if err := p.keys.SetAPIKey(key); err != nil {
		p.logger.Error("failed to persist api key",
			"request_id", reqID,
			"error", err,
		)
		return c.JSON(llm.SetKeyResult{
			Success: false,
			Message: "failed to save API key: " + err.Error(),
		})
	}

	p.logger.Info("api key updated", "request_id", reqID)

	msg := "API key updated and saved"
	if p.keys.EnvKeyOverrides() {
		msg += "; DEEPSEEK_API_KEY is set in the environment and remains in effect"
	}
	return c.JSON(llm.SetKeyResult{Success: true, Message: msg})
}
