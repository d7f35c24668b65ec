package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"symposium/internal/domain/discussion"
)

// createRequest is the wire shape of `POST /discussions` (spec §6).
type createRequest struct {
	Topic        string   `json:"topic"`
	Models       []string `json:"models"`
	SummaryModel string   `json:"summaryModel"`
	MaxRounds    int      `json:"maxRounds"`
}

func (s *Server) create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}

	d, err := s.orchestrator.Create(discussion.CreateRequest{
		Topic:        req.Topic,
		Models:       req.Models,
		SummaryModel: req.SummaryModel,
		MaxRounds:    req.MaxRounds,
	})
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, d)
}

func (s *Server) start(c *fiber.Ctx) error {
	d, err := s.orchestrator.Start(c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, d)
}

func (s *Server) stop(c *fiber.Ctx) error {
	d, err := s.orchestrator.Stop(c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, d)
}

func (s *Server) get(c *fiber.Ctx) error {
	d, err := s.orchestrator.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, d)
}

func (s *Server) list(c *fiber.Ctx) error {
	return ok(c, fiber.StatusOK, s.orchestrator.List())
}

func (s *Server) delete(c *fiber.Ctx) error {
	if err := s.orchestrator.Delete(c.Params("id")); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, fiber.Map{"id": c.Params("id"), "deleted": true})
}

// messages paginates a discussion's message list; spec §6:
// `GET /discussions/{id}/messages?page=…&limit=…`. page is 1-indexed.
func (s *Server) messages(c *fiber.Ctx) error {
	d, err := s.orchestrator.Get(c.Params("id"))
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 {
		limit = 50
	}

	total := len(d.Messages)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return ok(c, fiber.StatusOK, fiber.Map{
		"messages": d.Messages[start:end],
		"page":     page,
		"limit":    limit,
		"total":    total,
	})
}

func (s *Server) summary(c *fiber.Ctx) error {
	d, err := s.orchestrator.Get(c.Params("id"))
	if err != nil {
		return err
	}
	if d.Summary == nil {
		return fiber.NewError(fiber.StatusNotFound, "summary not available")
	}
	return ok(c, fiber.StatusOK, d.Summary)
}

// modelDescriptor describes one of a discussion's configured backends for
// `GET /discussions/{id}/models`.
type modelDescriptor struct {
	Model     string `json:"model"`
	Provider  string `json:"provider,omitempty"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// models reports live reachability for each model a discussion was created
// with, resolving each through the provider registry rather than trusting
// the name alone.
func (s *Server) models(c *fiber.Ctx) error {
	d, err := s.orchestrator.Get(c.Params("id"))
	if err != nil {
		return err
	}

	registry := s.orchestrator.Registry()
	descriptors := make([]modelDescriptor, 0, len(d.Models))
	for _, m := range d.Models {
		desc := modelDescriptor{Model: m}
		p, _, resolveErr := registry.Resolve(m)
		if resolveErr != nil {
			desc.Error = resolveErr.Error()
			descriptors = append(descriptors, desc)
			continue
		}
		desc.Provider = p.Name()
		if healthErr := p.Health(c.Context()); healthErr != nil {
			desc.Error = healthErr.Error()
		} else {
			desc.Reachable = true
		}
		descriptors = append(descriptors, desc)
	}
	return ok(c, fiber.StatusOK, descriptors)
}
