package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentumjournal/transcription-service/internal/domain/entity"
)

func TestVerifyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"user-1","email":"user@example.com","role":"authenticated"}`))
		case "Bearer anonymous":
			_, _ = w.Write([]byte(`{}`))
		case "Bearer broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
		}
	}))
	defer srv.Close()

	v := NewVerifier(srv.URL+"/", "service-key", 2*time.Second)
	ctx := context.Background()

	user, err := v.VerifyToken(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "user@example.com", user.Email)

	_, err = v.VerifyToken(ctx, "expired")
	assert.ErrorIs(t, err, entity.ErrUnauthorized)

	_, err = v.VerifyToken(ctx, "anonymous")
	assert.ErrorIs(t, err, entity.ErrUnauthorized)

	_, err = v.VerifyToken(ctx, "")
	assert.ErrorIs(t, err, entity.ErrUnauthorized)

	_, err = v.VerifyToken(ctx, "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, entity.ErrUnauthorized)
}
