// Package auth verifies end-user bearer tokens against the GoTrue-compatible
// auth server that issues them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/momentumjournal/transcription-service/internal/apiclient"
	"github.com/momentumjournal/transcription-service/internal/domain/entity"
	"github.com/momentumjournal/transcription-service/internal/domain/port"
	"github.com/momentumjournal/transcription-service/internal/retry"
)

type Verifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewVerifier(authURL, apiKey string, timeout time.Duration) *Verifier {
	return &Verifier{
		baseURL: strings.TrimRight(authURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (v *Verifier) VerifyToken(ctx context.Context, token string) (*port.AuthUser, error) {
	if token == "" {
		return nil, entity.ErrUnauthorized
	}

	headers := map[string]string{"Authorization": "Bearer " + token}
	if v.apiKey != "" {
		headers["apikey"] = v.apiKey
	}

	var user userResponse
	err := apiclient.DoJSON(ctx, v.client, http.MethodGet, v.baseURL+"/auth/v1/user", headers, nil, &user)
	if err != nil {
		var se *retry.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
			return nil, entity.ErrUnauthorized
		}
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if user.ID == "" {
		return nil, entity.ErrUnauthorized
	}

	return &port.AuthUser{ID: user.ID, Email: user.Email}, nil
}
