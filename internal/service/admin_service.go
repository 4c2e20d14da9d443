package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"parkingapi/internal/auth"
	"parkingapi/internal/db"
	"parkingapi/internal/entities"
	apperrors "parkingapi/internal/errors"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type AdminStore interface {
	Summary(ctx context.Context) (*entities.ReportSummary, error)
	ListPricingRules(ctx context.Context) ([]db.PricingRule, error)
	CreatePricingRule(ctx context.Context, p *db.PricingRule) error
	DeletePricingRule(ctx context.Context, id int64) (bool, error)
	ListAuditLogs(ctx context.Context, limit int) ([]db.AuditLog, error)
}

type UserInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// UserUpdate changes profile fields; nil fields keep their value.
type UserUpdate struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Role  *string `json:"role"`
}

type PricingRuleInput struct {
	Name       string  `json:"name"`
	SpaceType  string  `json:"space_type"`
	Multiplier float64 `json:"multiplier"`
	StartHour  int     `json:"start_hour"`
	EndHour    int     `json:"end_hour"`
}

// AdminService backs the back-office: user management, reports, pricing
// rules and the audit trail. Every operation requires staff, user
// management requires ADMIN.
type AdminService struct {
	users UserStore
	admin AdminStore
}

func NewAdminService(users UserStore, admin AdminStore) *AdminService {
	return &AdminService{users: users, admin: admin}
}

func requireAdmin(caller auth.Caller) error {
	if caller.Role != db.RoleAdmin {
		return apperrors.Forbidden("admin role required")
	}
	return nil
}

func requireStaff(caller auth.Caller) error {
	if !caller.IsStaff() {
		return apperrors.Forbidden("staff role required")
	}
	return nil
}

// parseRole rejects anything outside the closed role set.
func parseRole(s string) (db.Role, error) {
	r, err := db.ParseRole(s)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindValidation, ErrInvalidRole, err.Error())
	}
	return r, nil
}

func (s *AdminService) CreateUser(ctx context.Context, caller auth.Caller, in UserInput) (*db.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	role := db.RoleUser
	if in.Role != "" {
		r, err := parseRole(in.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}
	u, err := newUser(in.Email, in.Password, in.Name, in.Phone, role)
	if err != nil {
		return nil, err
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if apperrors.IsConflict(err) {
			return nil, apperrors.Conflict("email %s is already registered", u.Email)
		}
		return nil, err
	}
	log.Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Int64("by", caller.UserID).Msg("user_created")
	return u, nil
}

func (s *AdminService) GetUser(ctx context.Context, caller auth.Caller, id int64) (*db.User, error) {
	if !caller.CanAccess(id) {
		return nil, apperrors.Forbidden("cannot read user %d", id)
	}
	return s.users.GetUser(ctx, id)
}

func (s *AdminService) ListUsers(ctx context.Context, caller auth.Caller) ([]db.User, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	return s.users.ListUsers(ctx)
}

func (s *AdminService) UpdateUser(ctx context.Context, caller auth.Caller, id int64, in UserUpdate) (*db.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Role != nil {
		r, err := parseRole(*in.Role)
		if err != nil {
			return nil, err
		}
		u.Role = r
	}
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	log.Info().Int64("user_id", u.ID).Int64("by", caller.UserID).Msg("user_updated")
	return u, nil
}

// DeleteUser refuses to remove users that vehicles or bookings still reference.
func (s *AdminService) DeleteUser(ctx context.Context, caller auth.Caller, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	referenced, err := s.users.UserReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return apperrors.Conflict("user %d still has vehicles or bookings", id)
	}
	ok, err := s.users.DeleteUser(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("user %d not found", id)
	}
	log.Info().Int64("user_id", id).Int64("by", caller.UserID).Msg("user_deleted")
	return nil
}

func (s *AdminService) Summary(ctx context.Context, caller auth.Caller) (*entities.ReportSummary, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	return s.admin.Summary(ctx)
}

func (s *AdminService) ListPricingRules(ctx context.Context, caller auth.Caller) ([]db.PricingRule, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	return s.admin.ListPricingRules(ctx)
}

func (s *AdminService) CreatePricingRule(ctx context.Context, caller auth.Caller, in PricingRuleInput) (*db.PricingRule, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}
	typ, err := db.ParseSpaceType(in.SpaceType)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	if in.Multiplier <= 0 {
		return nil, apperrors.Validation("multiplier must be positive")
	}
	if in.StartHour < 0 || in.StartHour > 23 || in.EndHour < 1 || in.EndHour > 24 || in.EndHour <= in.StartHour {
		return nil, apperrors.Validation("hours must satisfy 0 <= start_hour < end_hour <= 24")
	}

	rule := &db.PricingRule{Name: name, SpaceType: typ, Multiplier: in.Multiplier, StartHour: in.StartHour, EndHour: in.EndHour}
	if err := s.admin.CreatePricingRule(ctx, rule); err != nil {
		return nil, err
	}
	log.Info().Int64("pricing_rule_id", rule.ID).Msg("pricing_rule_created")
	return rule, nil
}

func (s *AdminService) DeletePricingRule(ctx context.Context, caller auth.Caller, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	ok, err := s.admin.DeletePricingRule(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("pricing rule %d not found", id)
	}
	return nil
}

// ListAuditLogs returns the newest entries, limit defaulting to 100.
func (s *AdminService) ListAuditLogs(ctx context.Context, caller auth.Caller, limit int) ([]db.AuditLog, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	return s.admin.ListAuditLogs(ctx, limit)
}
