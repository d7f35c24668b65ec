package httpapi

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"symposium/internal/domain"
	"symposium/internal/domain/discussion"
)

// export implements `GET /discussions/{id}/export?format=json|txt` (spec
// §6): only completed discussions may be exported; txt renders a fixed
// human-readable layout (header, one block per message, a closing summary
// block).
func (s *Server) export(c *fiber.Ctx) error {
	d, err := s.orchestrator.Get(c.Params("id"))
	if err != nil {
		return err
	}
	if d.Status != discussion.StatusCompleted {
		return fmt.Errorf("%w: discussion %s has not completed", domain.ErrValidation, d.ID)
	}

	format := c.Query("format", "json")
	switch format {
	case "json":
		return ok(c, fiber.StatusOK, d)
	case "txt":
		c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
		return c.Status(fiber.StatusOK).SendString(renderText(d))
	default:
		return fiber.NewError(fiber.StatusBadRequest, "format must be json or txt")
	}
}

func renderText(d *discussion.Discussion) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Discussion: %s\n", d.Topic)
	fmt.Fprintf(&b, "Participants: %s\n", strings.Join(d.Models, ", "))
	fmt.Fprintf(&b, "Rounds: %d\n", d.MaxRounds)
	fmt.Fprintf(&b, "Status: %s\n", d.Status)
	fmt.Fprintf(&b, "Created: %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	if d.CompletedAt != nil {
		fmt.Fprintf(&b, "Completed: %s\n", d.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, m := range d.Messages {
		if m.Role == discussion.RoleSystem {
			fmt.Fprintf(&b, "[SYSTEM]\n%s\n\n", m.Content)
			continue
		}
		round := 0
		if m.Round != nil {
			round = *m.Round
		}
		fmt.Fprintf(&b, "[Round %d] %s:\n%s\n\n", round, m.ModelName, m.Content)
	}

	b.WriteString(strings.Repeat("-", 60) + "\n")
	b.WriteString("SUMMARY\n")
	b.WriteString(strings.Repeat("-", 60) + "\n")
	if d.Summary != nil {
		fmt.Fprintf(&b, "%s\n", d.Summary.Content)
		fmt.Fprintf(&b, "\n(generated by %s)\n", d.Summary.GeneratedBy)
	} else {
		b.WriteString("(no summary available)\n")
	}

	return b.String()
}
