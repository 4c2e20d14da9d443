package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"parkingapi/internal/db"
)

const issuer = "parking-api"

type Claims struct {
	Role  db.Role `json:"role"`
	Email string  `json:"email"`
	jwt.RegisteredClaims
}

// Caller is the authenticated identity every service operation receives.
type Caller struct {
	UserID int64
	Role   db.Role
}

func (c Caller) IsStaff() bool { return c.Role.IsStaff() }

// CanAccess reports whether the caller may act on a record owned by ownerID.
func (c Caller) CanAccess(ownerID int64) bool {
	return c.UserID == ownerID || c.IsStaff()
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate issues an HS256 token whose subject is the user id.
func (m *TokenManager) Generate(user *db.User) (string, error) {
	now := m.now()
	claims := Claims{
		Role:  user.Role,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse validates a token (with or without the "Bearer " prefix) and returns its claims.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if _, err := db.ParseRole(string(claims.Role)); err != nil {
		return nil, err
	}
	return claims, nil
}

// Caller converts validated claims into the identity passed to services.
func (c *Claims) Caller() (Caller, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return Caller{}, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return Caller{UserID: id, Role: c.Role}, nil
}
