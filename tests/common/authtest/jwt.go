//go:build unit || e2e

package authtest

import (
	"testing"
	"time"

	"merchant-backend/internal/pkg/clock"
	"merchant-backend/internal/pkg/config"
	"merchant-backend/internal/pkg/jwt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const tokenDuration = 15 * time.Minute

// JWTHelper mints tokens the way the auth service does.
type JWTHelper struct {
	cfg config.JWTConfig
}

func NewJWTHelper(cfg config.JWTConfig) *JWTHelper {
	return &JWTHelper{cfg: cfg}
}

func (h *JWTHelper) GenerateToken(t *testing.T, merchantID uuid.UUID, email string) string {
	t.Helper()
	service := jwt.NewService(h.cfg.Secret, tokenDuration, clock.NewRealClock())
	token, err := service.GenerateToken(merchantID, email)
	require.NoError(t, err)
	return token
}

// CreateExpiredToken signs a token whose expiry is already in the past.
func (h *JWTHelper) CreateExpiredToken(t *testing.T, merchantID uuid.UUID, email string) string {
	t.Helper()
	past := clock.NewMockClock(time.Now().Add(-time.Hour))
	service := jwt.NewService(h.cfg.Secret, time.Minute, past)
	token, err := service.GenerateToken(merchantID, email)
	require.NoError(t, err)
	return token
}
