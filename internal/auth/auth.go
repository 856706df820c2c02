// Package auth issues and validates operator bearer tokens for the
// node's REST ops surface. It has no bearing on consensus: a
// node's standing in the section is governed entirely by idkeys
// identities and peerlist voting rights (internal/consensus), never
// by this package.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ruvnet/parsec/internal/config"
	parsecerrors "github.com/ruvnet/parsec/internal/errors"
)

// Operator identifies a caller of the ops surface.
type Operator struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Claims is the JWT payload issued for an authenticated operator.
type Claims struct {
	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and validates operator bearer tokens.
type Service struct {
	cfg config.JWTConfig
}

// NewService builds a Service from the node's JWT configuration.
func NewService(cfg config.JWTConfig) *Service {
	return &Service{cfg: cfg}
}

// HashPassword hashes an operator password for storage.
func (s *Service) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword validates password against its stored hash.
func (s *Service) CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// IssueToken signs a bearer token for op, valid for the configured
// expiration window.
func (s *Service) IssueToken(op Operator) (string, error) {
	now := time.Now()
	claims := Claims{
		OperatorID: op.ID,
		Role:       op.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.ExpirationTime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Secret))
}

// ValidateToken parses and verifies a bearer token, returning its
// claims if the signature and expiry check out.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, parsecerrors.New(parsecerrors.Unauthorized, "unexpected signing method")
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, parsecerrors.Wrap(parsecerrors.Unauthorized, "invalid or expired token", err)
	}
	if !token.Valid {
		return nil, parsecerrors.New(parsecerrors.Unauthorized, "invalid token")
	}
	return claims, nil
}

// IsAuthorized applies the ops surface's coarse role policy: admin
// may do anything, operator may read and mutate but not administer
// peers, viewer may only read.
func (s *Service) IsAuthorized(role, action string) bool {
	switch role {
	case "admin":
		return true
	case "operator":
		return action != "admin"
	case "viewer":
		return action == "read"
	default:
		return false
	}
}

// RefreshToken issues a new token for the operator identified by a
// still-valid existing token.
func (s *Service) RefreshToken(oldToken string) (string, error) {
	claims, err := s.ValidateToken(oldToken)
	if err != nil {
		return "", err
	}
	if claims.OperatorID == "" {
		return "", errors.New("token carries no operator id")
	}
	return s.IssueToken(Operator{ID: claims.OperatorID, Role: claims.Role})
}
