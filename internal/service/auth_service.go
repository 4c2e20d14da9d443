package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"parkingapi/internal/auth"
	"parkingapi/internal/db"
	apperrors "parkingapi/internal/errors"
	"parkingapi/internal/utils"
)

const minPasswordLength = 8

type UserStore interface {
	GetUser(ctx context.Context, id int64) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	ListUsers(ctx context.Context) ([]db.User, error)
	CreateUser(ctx context.Context, u *db.User) error
	UpdateUser(ctx context.Context, u *db.User) error
	UserReferenced(ctx context.Context, id int64) (bool, error)
	DeleteUser(ctx context.Context, id int64) (bool, error)
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string   `json:"token"`
	User  *db.User `json:"user"`
}

type AuthService struct {
	users  UserStore
	tokens *auth.TokenManager
}

func NewAuthService(users UserStore, tokens *auth.TokenManager) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register creates a USER account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	u, err := newUser(in.Email, in.Password, in.Name, in.Phone, db.RoleUser)
	if err != nil {
		return nil, err
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if apperrors.IsConflict(err) {
			return nil, apperrors.Conflict("email %s is already registered", u.Email)
		}
		return nil, err
	}
	log.Info().Int64("user_id", u.ID).Msg("user_registered")
	return s.issue(u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetUserByEmail(ctx, utils.NormalizeEmail(email))
	if apperrors.IsNotFound(err) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !checkPasswordHash(password, u.PasswordHash) {
		return nil, ErrBadCredentials
	}
	log.Info().Int64("user_id", u.ID).Msg("user_logged_in")
	return s.issue(u)
}

// Verify resolves a bearer token to the current user record.
func (s *AuthService) Verify(ctx context.Context, token string) (*db.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid token")
	}
	caller, err := claims.Caller()
	if err != nil {
		return nil, apperrors.Unauthorized("invalid token")
	}
	u, err := s.users.GetUser(ctx, caller.UserID)
	if apperrors.IsNotFound(err) {
		return nil, apperrors.Unauthorized("user no longer exists")
	}
	return u, err
}

func (s *AuthService) issue(u *db.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(u)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: u}, nil
}

func newUser(email, password, name, phone string, role db.Role) (*db.User, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.Validation("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.Validation("password must have at least %d characters", minPasswordLength)
	}
	hash, err := hashPassword(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperrors.Validation("password is too long")
		}
		return nil, err
	}
	return &db.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Phone:        strings.TrimSpace(phone),
		Role:         role,
	}, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
