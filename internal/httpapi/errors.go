package httpapi

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
)

func errorStatus(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, entity.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, entity.ErrInvalidRequest), errors.Is(err, entity.ErrEmptyTranscript):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrJobConflict), errors.Is(err, entity.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// statusError forces a status code while keeping err's message.
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func withStatus(code int, err error) error {
	return &statusError{code: code, err: err}
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := errorStatus(err)
	var se *statusError
	if errors.As(err, &se) {
		code = se.code
	}

	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"success": false, "error": err.Error()})
}
