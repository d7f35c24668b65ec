package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"symposium/internal/config"
)

// getPerformanceConfig implements `GET /discussions/performance/config`.
func (s *Server) getPerformanceConfig(c *fiber.Ctx) error {
	return ok(c, fiber.StatusOK, s.tunables.Get())
}

// putPerformanceConfig implements `PUT /discussions/performance/config`:
// the body replaces the full tunables document (spec §6's enumerated
// options); callers that only want to nudge one preset should use
// /optimize instead.
func (s *Server) putPerformanceConfig(c *fiber.Ctx) error {
	var t config.Tunables
	if err := c.BodyParser(&t); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.tunables.Set(t); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, s.tunables.Get())
}

type optimizeRequest struct {
	Mode string `json:"mode"`
}

// optimizePerformance implements `POST /discussions/performance/optimize`
// with mode in {fast, balanced, quality}.
func (s *Server) optimizePerformance(c *fiber.Ctx) error {
	var req optimizeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	t, err := s.tunables.Optimize(config.PerformanceMode(req.Mode))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return ok(c, fiber.StatusOK, t)
}
