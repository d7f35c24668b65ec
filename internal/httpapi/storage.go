package httpapi

import (
	"github.com/gofiber/fiber/v2"
)

// backup implements `POST /discussions/storage/backup` (spec §4.3/§6).
func (s *Server) backup(c *fiber.Ctx) error {
	if err := s.store.Backup(); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, fiber.Map{"backed_up": true})
}

// storageInfo implements `GET /discussions/storage/info`: a lightweight
// summary of what's on disk, derived from the same listing index the REST
// list endpoint uses.
func (s *Server) storageInfo(c *fiber.Ctx) error {
	entries := s.store.List()
	return ok(c, fiber.StatusOK, fiber.Map{
		"discussion_count": len(entries),
		"discussions":      entries,
	})
}

// cleanup implements `POST /discussions/storage/cleanup`.
func (s *Server) cleanup(c *fiber.Ctx) error {
	removed, err := s.store.Cleanup()
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, fiber.Map{"removed": removed})
}
