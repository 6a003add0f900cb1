package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
)

// AccessTokenClaims represents the JWT claims carried by access tokens.
type AccessTokenClaims struct {
	UserID      string   `json:"user_id"`
	TenantID    string   `json:"tenant_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// JWTService handles JWT creation and validation
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
}

// GenerateAccessToken mints an HS256 token for principal.
func (s *JWTService) GenerateAccessToken(principal id.Principal, expiresIn time.Duration) (string, error) {
	now := s.now()
	perms := make([]string, 0, len(principal.Permissions))
	for _, p := range principal.Permissions {
		perms = append(perms, string(p))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		UserID:      principal.UserID.String(),
		TenantID:    principal.TenantID.String(),
		Role:        string(principal.Role),
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

func (s *JWTService) ValidateToken(tokenString string) (*AccessTokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*AccessTokenClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" || claims.TenantID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing user or tenant")
	}
	return claims, nil
}
