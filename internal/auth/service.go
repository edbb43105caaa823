package auth

import (
	"errors"
)

var (
	// ErrInvalidToken is returned when a bearer credential fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotAdmin is returned when a valid token lacks the admin claim.
	ErrNotAdmin = errors.New("not an admin")
	// ErrBadAdminSecret is returned when the shared admin secret does not match.
	ErrBadAdminSecret = errors.New("bad admin secret")
)

// Service validates credentials presented by connecting clients and by the
// external administrative component. Issuing user credentials is out of
// scope here; tokens come from the account service.
type Service struct {
	jwtConfig       *JWTConfig
	adminSecretHash string
}

// NewService creates a new authentication service.
func NewService(jwtConfig *JWTConfig, adminSecretHash string) *Service {
	return &Service{
		jwtConfig:       jwtConfig,
		adminSecretHash: adminSecretHash,
	}
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := ValidateToken(s.jwtConfig, tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAdminToken validates a JWT token and requires the admin claim.
func (s *Service) ValidateAdminToken(tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.IsAdmin {
		return nil, ErrNotAdmin
	}
	return claims, nil
}

// VerifyAdminSecret checks a presented shared secret against the configured
// bcrypt hash. An empty configured hash disables shared-secret auth.
func (s *Service) VerifyAdminSecret(secret string) error {
	if s.adminSecretHash == "" {
		return ErrBadAdminSecret
	}
	if err := CompareAdminSecret(s.adminSecretHash, secret); err != nil {
		return ErrBadAdminSecret
	}
	return nil
}

// IssueToken mints a token with this server's JWT config. Used by bootstrap
// tooling and tests; production tokens come from the account service.
func (s *Service) IssueToken(userID int64, username string, isAdmin bool) (string, error) {
	return GenerateToken(s.jwtConfig, userID, username, isAdmin)
}
