package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-service/internal/observability"
)

// MetricsHandler exposes the in-process request counters.
type MetricsHandler struct {
	metrics *observability.Metrics
}

// NewMetricsHandler returns a new handler instance.
func NewMetricsHandler(metrics *observability.Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Snapshot GET /metrics.
func (h *MetricsHandler) Snapshot(c *fiber.Ctx) error {
	requests, errs := h.metrics.Snapshot()
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"requests": requests,
			"errors":   errs,
		},
	})
}
