package repository

import (
	"context"
	"database/sql"

	"parkingapi/internal/db"
	"parkingapi/internal/entities"
)

// AdminRepository serves the back-office: reports, pricing rules and the audit trail.
type AdminRepository struct {
	db DBTX
}

func NewAdminRepository(db DBTX) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) countByStatus(ctx context.Context, query string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err, "count by status")
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, classify(err, "scan status count")
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate status counts")
	}
	return counts, nil
}

// Summary aggregates space and booking counts by status and paid revenue per currency.
func (r *AdminRepository) Summary(ctx context.Context) (*entities.ReportSummary, error) {
	spaces, err := r.countByStatus(ctx, `SELECT status, COUNT(*) FROM parking_spaces GROUP BY status`)
	if err != nil {
		return nil, err
	}
	bookings, err := r.countByStatus(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT currency, COALESCE(SUM(amount), 0) FROM payments WHERE status = $1 GROUP BY currency ORDER BY currency`,
		db.PaymentPaid)
	if err != nil {
		return nil, classify(err, "revenue")
	}
	defer rows.Close()

	revenue := map[string]float64{}
	for rows.Next() {
		var currency string
		var total float64
		if err := rows.Scan(&currency, &total); err != nil {
			return nil, classify(err, "scan revenue")
		}
		revenue[currency] = total
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate revenue")
	}

	return &entities.ReportSummary{
		SpacesByStatus:    spaces,
		BookingsByStatus:  bookings,
		RevenueByCurrency: revenue,
	}, nil
}

func (r *AdminRepository) ListPricingRules(ctx context.Context) ([]db.PricingRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, space_type, multiplier, start_hour, end_hour, created_at FROM pricing_rules ORDER BY id`)
	if err != nil {
		return nil, classify(err, "list pricing rules")
	}
	defer rows.Close()

	rules := []db.PricingRule{}
	for rows.Next() {
		var p db.PricingRule
		if err := rows.Scan(&p.ID, &p.Name, &p.SpaceType, &p.Multiplier, &p.StartHour, &p.EndHour, &p.CreatedAt); err != nil {
			return nil, classify(err, "scan pricing rule")
		}
		rules = append(rules, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate pricing rules")
	}
	return rules, nil
}

func (r *AdminRepository) CreatePricingRule(ctx context.Context, p *db.PricingRule) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO pricing_rules (name, space_type, multiplier, start_hour, end_hour)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		p.Name, p.SpaceType, p.Multiplier, p.StartHour, p.EndHour,
	).Scan(&p.ID, &p.CreatedAt)
	return classify(err, "create pricing rule %q", p.Name)
}

func (r *AdminRepository) DeletePricingRule(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pricing_rules WHERE id = $1`, id)
	return affected(res, err, "delete pricing rule %d", id)
}

// InsertAuditLog appends an entry. Inside a booking transaction it commits or
// rolls back together with the booking change.
func (r *AdminRepository) InsertAuditLog(ctx context.Context, l *db.AuditLog) error {
	var userID sql.NullInt64
	if l.UserID != nil {
		userID = sql.NullInt64{Int64: *l.UserID, Valid: true}
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (user_id, action, entity, entity_id, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		userID, l.Action, l.Entity, l.EntityID, l.Details,
	).Scan(&l.ID, &l.CreatedAt)
	return classify(err, "insert audit log %s", l.Action)
}

// ListAuditLogs returns the newest entries first.
func (r *AdminRepository) ListAuditLogs(ctx context.Context, limit int) ([]db.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, action, entity, entity_id, details, created_at
		FROM audit_logs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, classify(err, "list audit logs")
	}
	defer rows.Close()

	logs := []db.AuditLog{}
	for rows.Next() {
		var l db.AuditLog
		var userID sql.NullInt64
		if err := rows.Scan(&l.ID, &userID, &l.Action, &l.Entity, &l.EntityID, &l.Details, &l.CreatedAt); err != nil {
			return nil, classify(err, "scan audit log")
		}
		if userID.Valid {
			id := userID.Int64
			l.UserID = &id
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate audit logs")
	}
	return logs, nil
}
