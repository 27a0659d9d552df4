package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// AuthService exchanges the operator key for ops API tokens.
type AuthService struct {
	adminKeyHash string
	tokenMgr     *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, tokens *auth.TokenManager) *AuthService {
	return &AuthService{adminKeyHash: cfg.AdminKeyHash, tokenMgr: tokens}
}

// IssueToken checks key against the configured hash and signs a token with
// the requested role. An empty role means admin.
func (s *AuthService) IssueToken(_ context.Context, key string, role auth.Role) (string, time.Time, error) {
	if s.adminKeyHash == "" {
		return "", time.Time{}, apperrors.NewUnauthorized("ops api login disabled")
	}
	if strings.TrimSpace(key) == "" {
		return "", time.Time{}, apperrors.NewValidationError("key is required", nil)
	}
	switch role {
	case "":
		role = auth.RoleAdmin
	case auth.RoleAdmin, auth.RoleViewer:
	default:
		return "", time.Time{}, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}

	if err := auth.CompareKey(s.adminKeyHash, key); err != nil {
		if errors.Is(err, auth.ErrKeyMismatch) {
			return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return s.tokenMgr.GenerateToken("operator", role)
}
