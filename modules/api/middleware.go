package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
)

const (
	// identityKey is the key used to store the resolved identity in the
	// Fiber context.
	identityKey = "identity"
	// viewerHeader carries the caller's id. A real deployment puts a
	// reverse proxy or SSO gateway in front that sets this header; the
	// service itself never verifies credentials.
	viewerHeader = "X-Viewer"
)

// IdentityMiddleware resolves the request's Identity: the configured
// subject, the viewer from the request, and the owner role iff the viewer
// is the configured owner.
func IdentityMiddleware(subjectID, ownerID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		viewer := strings.TrimSpace(c.Get(viewerHeader))
		role := domain.RoleViewer
		if viewer != "" && strings.EqualFold(viewer, ownerID) {
			role = domain.RoleOwner
		}
		c.Locals(identityKey, domain.Identity{
			SubjectID: subjectID,
			ViewerID:  viewer,
			Role:      role,
		})
		return c.Next()
	}
}

// identityFrom reads the resolved identity from the request context.
func identityFrom(c *fiber.Ctx) domain.Identity {
	if id, ok := c.Locals(identityKey).(domain.Identity); ok {
		return id
	}
	return domain.Identity{Role: domain.RoleViewer}
}
