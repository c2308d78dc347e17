package repositories

import (
	"context"
	"database/sql"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/platform/obs"
	"dispatch-coordination-service/internal/ports"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var _ ports.AlertRepository = (*SQLStore)(nil)

var alertColumns = []string{
	"id", "load_id", "courier_id", "alert_type", "severity", "title", "message",
	"status", "created_at", "acknowledged_at", "resolved_at",
}

func (s *SQLStore) CreateAlert(ctx context.Context, alert *domain.Alert) (err error) {
	defer obs.Time(ctx, "store.CreateAlert")(&err)
	return s.insertAlert(ctx, s.DB, alert)
}

func (s *SQLStore) insertAlert(ctx context.Context, r runner, a *domain.Alert) error {
	ins := s.sb.Insert("alerts").Columns(alertColumns...).Values(
		a.ID, nullString(a.LoadID), nullString(a.CourierID), string(a.Type), string(a.Severity),
		a.Title, a.Message, string(a.Status), toMillis(a.CreatedAt),
		nullMillis(a.AcknowledgedAt), nullMillis(a.ResolvedAt),
	)
	if _, err := execAffected(ctx, r, ins); err != nil {
		return fmt.Errorf("insert alert %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLStore) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	row, err := queryRow(ctx, s.DB, s.sb.Select(alertColumns...).From("alerts").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("alert", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}
	return a, nil
}

func (s *SQLStore) ListAlertsSince(ctx context.Context, since time.Time) (_ []*domain.Alert, err error) {
	defer obs.Time(ctx, "store.ListAlertsSince")(&err)

	rows, err := queryRows(ctx, s.DB, s.sb.Select(alertColumns...).From("alerts").
		Where(sq.GtOrEq{"created_at": toMillis(since)}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*domain.Alert, 0, 16)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("list alerts: scan row: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alerts: row iteration: %w", err)
	}
	return alerts, nil
}

// AcknowledgeAlerts moves the given active alerts to acknowledged and returns how many changed.
func (s *SQLStore) AcknowledgeAlerts(ctx context.Context, ids []string, at time.Time) (_ int, err error) {
	defer obs.Time(ctx, "store.AcknowledgeAlerts")(&err)

	if len(ids) == 0 {
		return 0, nil
	}

	upd := s.sb.Update("alerts").
		Set("status", string(domain.AlertAcknowledged)).
		Set("acknowledged_at", toMillis(at)).
		Where(sq.Eq{"id": ids, "status": string(domain.AlertActive)})

	n, err := execAffected(ctx, s.DB, upd)
	if err != nil {
		return 0, fmt.Errorf("acknowledge alerts: %w", err)
	}
	return int(n), nil
}

// ResolveAlert closes an active or acknowledged alert. Resolving twice is a no-op.
func (s *SQLStore) ResolveAlert(ctx context.Context, id string, at time.Time) (err error) {
	defer obs.Time(ctx, "store.ResolveAlert")(&err)

	upd := s.sb.Update("alerts").
		Set("status", string(domain.AlertResolved)).
		Set("resolved_at", toMillis(at)).
		Where(sq.Eq{
			"id":     id,
			"status": []string{string(domain.AlertActive), string(domain.AlertAcknowledged)},
		})

	n, err := execAffected(ctx, s.DB, upd)
	if err != nil {
		return fmt.Errorf("resolve alert %s: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	_, err = s.GetAlert(ctx, id)
	return err
}

func scanAlert(sc scanner) (*domain.Alert, error) {
	var (
		a         domain.Alert
		loadID    sql.NullString
		courierID sql.NullString
		typ       string
		severity  string
		status    string
		createdAt int64
		ackAt     sql.NullInt64
		resolved  sql.NullInt64
	)
	err := sc.Scan(&a.ID, &loadID, &courierID, &typ, &severity, &a.Title, &a.Message,
		&status, &createdAt, &ackAt, &resolved)
	if err != nil {
		return nil, err
	}
	a.LoadID = loadID.String
	a.CourierID = courierID.String
	a.Type = domain.AlertType(typ)
	a.Severity = domain.Severity(severity)
	a.Status = domain.AlertStatus(status)
	a.CreatedAt = fromMillis(createdAt)
	a.AcknowledgedAt = timePtr(ackAt)
	a.ResolvedAt = timePtr(resolved)
	return &a, nil
}
