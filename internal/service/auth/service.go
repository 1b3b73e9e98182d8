package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/pkg/auth"
	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
	"github.com/jwalitptl/vip-booking/pkg/logger"
	"github.com/jwalitptl/vip-booking/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const tokenType = "Bearer"

// Admin is the single console account. PasswordHash is a bcrypt hash.
type Admin struct {
	Username     string
	PasswordHash string
}

type Service struct {
	admin  Admin
	jwtSvc auth.JWTService
	hasher security.PasswordHasher
	log    *logger.Logger
}

func NewService(admin Admin, jwtSvc auth.JWTService, hasher security.PasswordHasher, log *logger.Logger) *Service {
	return &Service{
		admin:  admin,
		jwtSvc: jwtSvc,
		hasher: hasher,
		log:    log,
	}
}

// Login checks the administrator credentials and issues an admin token.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	if req == nil {
		return nil, apperrors.Validation("credentials are required")
	}
	if s.admin.PasswordHash == "" {
		s.log.Warn("admin login attempted without a configured password hash")
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	username := strings.TrimSpace(req.Username)
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	if err := s.hasher.Compare(s.admin.PasswordHash, req.Password); err != nil || !userOK {
		if err != nil && !errors.Is(err, security.ErrPasswordMismatch) {
			s.log.Error(err, "failed to compare admin password hash")
		}
		s.log.Warn("admin login failed", "username", username)
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	resp, err := s.issue(s.admin.Username, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.log.Info("admin logged in", "username", username)
	return resp, nil
}

// IssueClientToken mints a client-role token. It stands in for the identity
// provider that owns client accounts.
func (s *Service) IssueClientToken(ctx context.Context, req *model.ClientTokenRequest) (*model.TokenResponse, error) {
	if req == nil || strings.TrimSpace(req.ClientID) == "" {
		return nil, apperrors.Validation("client_id is required")
	}
	return s.issue(strings.TrimSpace(req.ClientID), auth.RoleClient)
}

func (s *Service) issue(subject string, role auth.Role) (*model.TokenResponse, error) {
	token, expiresAt, err := s.jwtSvc.Issue(subject, role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   tokenType,
		Role:        string(role),
		Subject:     subject,
		ExpiresAt:   expiresAt,
	}, nil
}
