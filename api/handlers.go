package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/deepgate/pkg/llm"
	"github.com/papercomputeco/deepgate/pkg/storage"
)

// UsageList is the response of GET /usage.
type UsageList struct {
	Records []*storage.Record `json:"records"`
	Count   int               `json:"count"`
	Limit   int               `json:"limit"`
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListUsage handles GET /usage.
// Query parameters:
//   - limit (optional, default 50, max 1000): number of records to return
func (s *Server) handleListUsage(c *fiber.Ctx) error {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.NewErrorResponse(err.Error()))
	}

	records, err := s.driver.List(c.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list usage records", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.NewErrorResponse("failed to list usage records"))
	}
	if records == nil {
		records = []*storage.Record{}
	}

	return c.JSON(UsageList{
		Records: records,
		Count:   len(records),
		Limit:   limit,
	})
}

// handleUsageSummary handles GET /usage/summary.
func (s *Server) handleUsageSummary(c *fiber.Ctx) error {
	summary, err := s.driver.Summary(c.Context())
	if err != nil {
		s.logger.Error("failed to summarize usage", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.NewErrorResponse("failed to summarize usage"))
	}

	return c.JSON(summary)
}

type limitError string

func (e limitError) Error() string { return string(e) }

// parseLimit parses the limit query parameter. An empty value selects
// storage.DefaultListLimit; larger values are clamped to MaxListLimit.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return storage.DefaultListLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, limitError("limit must be a positive integer")
	}

	return min(limit, storage.MaxListLimit), nil
}
