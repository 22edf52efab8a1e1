// Package auth issues and validates the signed bearer tokens that guard the
// API's administrative endpoints.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of every token.
const Issuer = "logodeth"

// Roles
const (
	RoleAdmin = "admin"
)

// DefaultTokenExpiry is the lifetime of tokens minted without an explicit TTL.
const DefaultTokenExpiry = time.Hour

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

// Token errors
var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrEmptySubject  = errors.New("subject cannot be empty")
	ErrForbiddenRole = errors.New("insufficient role")
)

// Claims are the JWT claims carried by an admin token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// HasRole reports whether the token grants role.
func (c *Claims) HasRole(role string) bool {
	return c != nil && c.Role == role
}

// JWTService signs and validates HS256 tokens.
// Tokens are signed with the current secret and accepted under either the
// current or the previous secret, so a key can be rotated without logging
// operators out.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
	now            func() time.Time
}

// NewJWTService creates a JWTService. previousSecret may be empty.
func NewJWTService(currentSecret, previousSecret string) *JWTService {
	svc := &JWTService{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
		now:           time.Now,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// WithLeeway sets the clock skew tolerated during validation.
func (s *JWTService) WithLeeway(leeway time.Duration) *JWTService {
	s.leeway = leeway
	return s
}

// Issue mints a token for subject with role. A non-positive ttl means
// DefaultTokenExpiry.
func (s *JWTService) Issue(subject, role string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	if ttl <= 0 {
		ttl = DefaultTokenExpiry
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// Validate parses tokenString and returns its claims. It tries the current
// secret first, then the previous one.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, s.currentSecret)
	if err == nil {
		return claims, nil
	}

	if s.previousSecret != nil && errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		claims, err = s.parse(tokenString, s.previousSecret)
		if err == nil {
			return claims, nil
		}
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

// RequireRole validates tokenString and checks that it grants role.
func (s *JWTService) RequireRole(tokenString, role string) (*Claims, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.HasRole(role) {
		return nil, ErrForbiddenRole
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
