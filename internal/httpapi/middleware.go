package httpapi

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
)

const localsUser = "user"

func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireUser resolves the bearer token to an end user.
func (s *Server) requireUser(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return entity.ErrUnauthorized
	}
	user, err := s.deps.Verifier.VerifyToken(c.UserContext(), token)
	if err != nil {
		return err
	}
	c.Locals(localsUser, user)
	return c.Next()
}

// requireServiceKey admits internal callers presenting the service role key
// either as bearer token or apikey header.
func (s *Server) requireServiceKey(c *fiber.Ctx) error {
	if s.deps.ServiceKey == "" {
		return entity.ErrUnauthorized
	}
	for _, candidate := range []string{bearerToken(c), c.Get("apikey")} {
		if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(s.deps.ServiceKey)) == 1 {
			return c.Next()
		}
	}
	return entity.ErrUnauthorized
}

func currentUser(c *fiber.Ctx) *port.AuthUser {
	u, _ := c.Locals(localsUser).(*port.AuthUser)
	return u
}
