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
	"github.com/google/uuid"
)

var _ ports.BlastRepository = (*SQLStore)(nil)

var blastColumns = []string{
	"id", "load_id", "created_by", "priority", "radius_miles", "status",
	"accepted_by", "accepted_at", "expires_at",
	"notified_count", "viewed_count", "declined_count", "created_at",
}

var responseColumns = []string{
	"id", "blast_id", "courier_id", "status", "response_seconds",
	"decline_reason", "lat", "lon", "responded_at", "created_at",
}

// Responses that can still move forward.
var openResponseStatuses = []string{
	string(domain.ResponsePending),
	string(domain.ResponseViewed),
	string(domain.ResponseInterested),
}

// CreateBlast inserts the blast, its pending responses and the load's move to
// blasted as one transaction.
func (s *SQLStore) CreateBlast(
	ctx context.Context,
	blast *domain.Blast,
	courierIDs []string,
) (_ *domain.BlastDetail, err error) {
	defer obs.Time(ctx, "store.CreateBlast")(&err)

	detail := &domain.BlastDetail{Blast: blast, Responses: make([]*domain.Response, 0, len(courierIDs))}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		load, err := s.getLoad(ctx, tx, blast.LoadID)
		if err != nil {
			return err
		}
		if err := domain.CheckTransition(load.Status, domain.StatusBlasted); err != nil {
			return fmt.Errorf("load %s: %w", load.ID, err)
		}

		ins := s.sb.Insert("blasts").Columns(blastColumns...).Values(
			blast.ID, blast.LoadID, blast.CreatedBy, string(blast.Priority), blast.RadiusMiles,
			string(blast.Status), nullString(blast.AcceptedBy), nullMillis(blast.AcceptedAt),
			toMillis(blast.ExpiresAt), blast.NotifiedCount, blast.ViewedCount, blast.DeclinedCount,
			toMillis(blast.CreatedAt),
		)
		if _, err := execAffected(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert blast: %w", err)
		}

		respIns := s.sb.Insert("blast_responses").Columns("id", "blast_id", "courier_id", "status", "created_at")
		for _, courierID := range courierIDs {
			r := &domain.Response{
				ID:        uuid.NewString(),
				BlastID:   blast.ID,
				CourierID: courierID,
				Status:    domain.ResponsePending,
				CreatedAt: blast.CreatedAt,
			}
			respIns = respIns.Values(r.ID, r.BlastID, r.CourierID, string(r.Status), toMillis(r.CreatedAt))
			detail.Responses = append(detail.Responses, r)
		}
		if _, err := execAffected(ctx, tx, respIns); err != nil {
			return fmt.Errorf("insert responses: %w", err)
		}

		return s.swapLoadStatus(ctx, tx, load.ID, load.Status, domain.StatusBlasted, "", blast.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("create blast: %w", err)
	}

	return detail, nil
}

func (s *SQLStore) GetBlast(ctx context.Context, id string) (*domain.BlastDetail, error) {
	blast, err := s.getBlast(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}

	rows, err := queryRows(ctx, s.DB, s.sb.Select(responseColumns...).
		From("blast_responses").
		Where(sq.Eq{"blast_id": id}).
		OrderBy("created_at", "courier_id"))
	if err != nil {
		return nil, fmt.Errorf("get blast responses: %w", err)
	}
	defer rows.Close()

	responses, err := collectResponses(rows)
	if err != nil {
		return nil, fmt.Errorf("get blast responses: %w", err)
	}

	return &domain.BlastDetail{Blast: blast, Responses: responses}, nil
}

// MarkViewed moves a pending response to viewed and bumps the blast's view counter.
// Viewing again, or after responding, changes nothing.
func (s *SQLStore) MarkViewed(ctx context.Context, blastID, courierID string, at time.Time) (_ *domain.Response, err error) {
	defer obs.Time(ctx, "store.MarkViewed")(&err)

	var out *domain.Response
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		upd := s.sb.Update("blast_responses").
			Set("status", string(domain.ResponseViewed)).
			Where(sq.Eq{"blast_id": blastID, "courier_id": courierID, "status": string(domain.ResponsePending)})

		n, err := execAffected(ctx, tx, upd)
		if err != nil {
			return fmt.Errorf("update response: %w", err)
		}
		if n == 1 {
			if err := s.incrementCounter(ctx, tx, blastID, "viewed_count"); err != nil {
				return err
			}
		}

		out, err = s.requireResponse(ctx, tx, blastID, courierID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("mark viewed: %w", err)
	}
	return out, nil
}

// ExpressInterest records that a courier is available. It never assigns the load.
func (s *SQLStore) ExpressInterest(
	ctx context.Context,
	blastID string,
	courierID string,
	loc *domain.Coordinates,
	at time.Time,
) (_ *domain.Response, err error) {
	defer obs.Time(ctx, "store.ExpressInterest")(&err)

	var out *domain.Response
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		blast, err := s.getBlast(ctx, tx, blastID)
		if err != nil {
			return err
		}
		if blast.Status != domain.BlastActive || blast.IsStale(at) {
			if _, err := s.requireResponse(ctx, tx, blastID, courierID); err != nil {
				return err
			}
			return domain.ErrBlastClosed
		}

		var lat, lon any
		if loc != nil {
			lat, lon = loc.Lat, loc.Lon
		}

		upd := s.sb.Update("blast_responses").
			Set("status", string(domain.ResponseInterested)).
			Set("response_seconds", at.Sub(blast.CreatedAt).Seconds()).
			Set("lat", lat).
			Set("lon", lon).
			Set("responded_at", toMillis(at)).
			Where(sq.Eq{
				"blast_id":   blastID,
				"courier_id": courierID,
				"status":     []string{string(domain.ResponsePending), string(domain.ResponseViewed)},
			})

		n, err := execAffected(ctx, tx, upd)
		if err != nil {
			return fmt.Errorf("update response: %w", err)
		}

		out, err = s.requireResponse(ctx, tx, blastID, courierID)
		if err != nil {
			return err
		}
		if n == 1 || out.Status == domain.ResponseInterested {
			return nil
		}
		return domain.ErrResponseFinal
	})
	if err != nil {
		return nil, fmt.Errorf("express interest: %w", err)
	}
	return out, nil
}

// ConfirmAssignment grants the load to one courier.
//
// The blast row is claimed with a single conditional UPDATE (active, unexpired, and
// the courier still holds an open response). Whoever changes that row wins; every
// other caller sees zero rows affected and gets ErrAlreadyAssigned without having
// written anything. Sibling expiry and the load transition commit in the same
// transaction, so a rejected load transition undoes the claim.
func (s *SQLStore) ConfirmAssignment(
	ctx context.Context,
	blastID string,
	courierID string,
	at time.Time,
) (_ *ports.ConfirmOutcome, err error) {
	defer obs.Time(ctx, "store.ConfirmAssignment")(&err)

	var out ports.ConfirmOutcome
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		resp, err := s.getResponse(ctx, tx, blastID, courierID)
		if err != nil {
			return err
		}
		if resp == nil {
			if _, err := s.getBlast(ctx, tx, blastID); err != nil {
				return err
			}
			return domain.NotFound("response", blastID+"/"+courierID)
		}

		claim := s.sb.Update("blasts").
			Set("status", string(domain.BlastAccepted)).
			Set("accepted_by", courierID).
			Set("accepted_at", toMillis(at)).
			Where(sq.Eq{"id": blastID, "status": string(domain.BlastActive)}).
			Where(sq.Gt{"expires_at": toMillis(at)}).
			Where(sq.Expr(
				"EXISTS (SELECT 1 FROM blast_responses WHERE blast_id = ? AND courier_id = ? AND status IN (?,?,?))",
				blastID, courierID, openResponseStatuses[0], openResponseStatuses[1], openResponseStatuses[2],
			))

		n, err := execAffected(ctx, tx, claim)
		if err != nil {
			return fmt.Errorf("claim blast: %w", err)
		}
		if n == 0 {
			return s.explainLostClaim(ctx, tx, blastID, at)
		}

		blast, err := s.getBlast(ctx, tx, blastID)
		if err != nil {
			return err
		}
		out.Blast = blast

		latency := at.Sub(blast.CreatedAt).Seconds()
		win := s.sb.Update("blast_responses").
			Set("status", string(domain.ResponseInterested)).
			Set("responded_at", sq.Expr("COALESCE(responded_at, ?)", toMillis(at))).
			Set("response_seconds", sq.Expr("COALESCE(response_seconds, ?)", latency)).
			Where(sq.Eq{"blast_id": blastID, "courier_id": courierID})
		if _, err := execAffected(ctx, tx, win); err != nil {
			return fmt.Errorf("confirm response: %w", err)
		}

		expire := s.sb.Update("blast_responses").
			Set("status", string(domain.ResponseExpired)).
			Where(sq.Eq{"blast_id": blastID}).
			Where(sq.NotEq{"courier_id": courierID})
		expired, err := execAffected(ctx, tx, expire)
		if err != nil {
			return fmt.Errorf("expire sibling responses: %w", err)
		}
		out.ExpiredResponses = int(expired)

		load, err := s.getLoad(ctx, tx, blast.LoadID)
		if err != nil {
			return err
		}
		from := load.Status
		if err := load.Transition(domain.StatusAssigned, courierID, at); err != nil {
			return fmt.Errorf("load %s: %w", load.ID, err)
		}
		if err := s.swapLoadStatus(ctx, tx, load.ID, from, load.Status, load.CourierID, at); err != nil {
			return err
		}
		out.Load = load

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("confirm assignment: %w", err)
	}
	return &out, nil
}

// explainLostClaim classifies a claim that matched no row. It only reads.
func (s *SQLStore) explainLostClaim(ctx context.Context, r runner, blastID string, at time.Time) error {
	blast, err := s.getBlast(ctx, r, blastID)
	if err != nil {
		return err
	}
	switch {
	case blast.Status == domain.BlastAccepted:
		return fmt.Errorf("%w: blast %s accepted by another courier", domain.ErrAlreadyAssigned, blastID)
	case blast.Status != domain.BlastActive, blast.IsStale(at):
		return domain.ErrBlastClosed
	default:
		return domain.ErrResponseFinal
	}
}

// DeclineBlast records a decline. The counter increment happens in the same
// transaction and only when the response actually changed, so repeated declines
// are counted once.
func (s *SQLStore) DeclineBlast(
	ctx context.Context,
	blastID string,
	courierID string,
	reason string,
	at time.Time,
) (_ *domain.Response, changed bool, err error) {
	defer obs.Time(ctx, "store.DeclineBlast")(&err)

	var out *domain.Response
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		upd := s.sb.Update("blast_responses").
			Set("status", string(domain.ResponseDeclined)).
			Set("decline_reason", nullString(reason)).
			Set("responded_at", toMillis(at)).
			Where(sq.Eq{"blast_id": blastID, "courier_id": courierID, "status": openResponseStatuses})

		n, err := execAffected(ctx, tx, upd)
		if err != nil {
			return fmt.Errorf("update response: %w", err)
		}
		if n == 1 {
			if err := s.incrementCounter(ctx, tx, blastID, "declined_count"); err != nil {
				return err
			}
			changed = true
		}

		out, err = s.requireResponse(ctx, tx, blastID, courierID)
		if err != nil {
			return err
		}
		if n == 0 && out.Status != domain.ResponseDeclined {
			return domain.ErrResponseFinal
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("decline blast: %w", err)
	}
	return out, changed, nil
}

// CancelBlast closes an active blast and expires its open responses.
// The load status is left for the operator to change.
func (s *SQLStore) CancelBlast(ctx context.Context, blastID string) (_ *domain.Blast, err error) {
	defer obs.Time(ctx, "store.CancelBlast")(&err)

	var out *domain.Blast
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		upd := s.sb.Update("blasts").
			Set("status", string(domain.BlastCancelled)).
			Where(sq.Eq{"id": blastID, "status": string(domain.BlastActive)})

		n, err := execAffected(ctx, tx, upd)
		if err != nil {
			return fmt.Errorf("update blast: %w", err)
		}

		out, err = s.getBlast(ctx, tx, blastID)
		if err != nil {
			return err
		}
		if n == 0 {
			if out.Status == domain.BlastCancelled {
				return nil
			}
			return domain.ErrBlastClosed
		}

		return s.expireOpenResponses(ctx, tx, blastID)
	})
	if err != nil {
		return nil, fmt.Errorf("cancel blast: %w", err)
	}
	return out, nil
}

// ExpireStale closes active blasts past their expiry. Each blast is closed in its own
// transaction with a status CAS, so a confirmation racing the sweep wins or loses cleanly.
func (s *SQLStore) ExpireStale(ctx context.Context, now time.Time) (_ []ports.SweepOutcome, err error) {
	defer obs.Time(ctx, "store.ExpireStale")(&err)

	rows, err := queryRows(ctx, s.DB, s.sb.Select("id").From("blasts").
		Where(sq.Eq{"status": string(domain.BlastActive)}).
		Where(sq.LtOrEq{"expires_at": toMillis(now)}).
		OrderBy("expires_at"))
	if err != nil {
		return nil, fmt.Errorf("expire stale: list: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("expire stale: scan: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("expire stale: row iteration: %w", err)
	}

	out := make([]ports.SweepOutcome, 0, len(ids))
	for _, id := range ids {
		outcome, err := s.expireOne(ctx, id, now)
		if err != nil {
			return out, fmt.Errorf("expire stale blast %s: %w", id, err)
		}
		if outcome != nil {
			out = append(out, *outcome)
		}
	}
	return out, nil
}

func (s *SQLStore) expireOne(ctx context.Context, blastID string, now time.Time) (*ports.SweepOutcome, error) {
	var out *ports.SweepOutcome
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		upd := s.sb.Update("blasts").
			Set("status", string(domain.BlastExpired)).
			Where(sq.Eq{"id": blastID, "status": string(domain.BlastActive)}).
			Where(sq.LtOrEq{"expires_at": toMillis(now)})

		n, err := execAffected(ctx, tx, upd)
		if err != nil {
			return fmt.Errorf("update blast: %w", err)
		}
		if n == 0 {
			return nil
		}

		if err := s.expireOpenResponses(ctx, tx, blastID); err != nil {
			return err
		}

		blast, err := s.getBlast(ctx, tx, blastID)
		if err != nil {
			return err
		}
		load, err := s.getLoad(ctx, tx, blast.LoadID)
		if err != nil {
			return err
		}
		if load.Status == domain.StatusBlasted {
			from := load.Status
			if err := load.Transition(domain.StatusPending, "", now); err != nil {
				return err
			}
			if err := s.swapLoadStatus(ctx, tx, load.ID, from, load.Status, "", now); err != nil {
				return err
			}
		}

		alert := &domain.Alert{
			ID:        uuid.NewString(),
			LoadID:    load.ID,
			Type:      domain.AlertUnassigned,
			Severity:  domain.SeverityWarning,
			Title:     "Load unassigned",
			Message:   fmt.Sprintf("Blast for load %s expired with no courier confirmed", load.ID),
			Status:    domain.AlertActive,
			CreatedAt: now,
		}
		if err := s.insertAlert(ctx, tx, alert); err != nil {
			return err
		}

		out = &ports.SweepOutcome{Blast: blast, Load: load, Alert: alert}
		return nil
	})
	return out, err
}

func (s *SQLStore) ListBlastHistory(
	ctx context.Context,
	since time.Time,
) (_ []*domain.Blast, _ []*domain.Response, err error) {
	defer obs.Time(ctx, "store.ListBlastHistory")(&err)

	rows, err := queryRows(ctx, s.DB, s.sb.Select(blastColumns...).From("blasts").
		Where(sq.GtOrEq{"created_at": toMillis(since)}).
		OrderBy("created_at"))
	if err != nil {
		return nil, nil, fmt.Errorf("list blasts: %w", err)
	}
	blasts := make([]*domain.Blast, 0, 32)
	for rows.Next() {
		b, err := scanBlast(rows)
		if err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("list blasts: scan row: %w", err)
		}
		blasts = append(blasts, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("list blasts: row iteration: %w", err)
	}

	respRows, err := queryRows(ctx, s.DB, s.sb.Select(responseColumns...).From("blast_responses").
		Where(sq.Expr("blast_id IN (SELECT id FROM blasts WHERE created_at >= ?)", toMillis(since))))
	if err != nil {
		return nil, nil, fmt.Errorf("list responses: %w", err)
	}
	defer respRows.Close()

	responses, err := collectResponses(respRows)
	if err != nil {
		return nil, nil, fmt.Errorf("list responses: %w", err)
	}

	return blasts, responses, nil
}

// incrementCounter bumps a blast counter in place; the column name is never user input.
func (s *SQLStore) incrementCounter(ctx context.Context, r runner, blastID, column string) error {
	upd := s.sb.Update("blasts").
		Set(column, sq.Expr(column+" + 1")).
		Where(sq.Eq{"id": blastID})
	if _, err := execAffected(ctx, r, upd); err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}

func (s *SQLStore) expireOpenResponses(ctx context.Context, r runner, blastID string) error {
	upd := s.sb.Update("blast_responses").
		Set("status", string(domain.ResponseExpired)).
		Where(sq.Eq{"blast_id": blastID, "status": openResponseStatuses})
	if _, err := execAffected(ctx, r, upd); err != nil {
		return fmt.Errorf("expire responses: %w", err)
	}
	return nil
}

func (s *SQLStore) getBlast(ctx context.Context, r runner, id string) (*domain.Blast, error) {
	row, err := queryRow(ctx, r, s.sb.Select(blastColumns...).From("blasts").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get blast: %w", err)
	}
	b, err := scanBlast(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("blast", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get blast %s: %w", id, err)
	}
	return b, nil
}

// getResponse returns nil, nil when the courier has no response under the blast.
func (s *SQLStore) getResponse(ctx context.Context, r runner, blastID, courierID string) (*domain.Response, error) {
	row, err := queryRow(ctx, r, s.sb.Select(responseColumns...).From("blast_responses").
		Where(sq.Eq{"blast_id": blastID, "courier_id": courierID}))
	if err != nil {
		return nil, fmt.Errorf("get response: %w", err)
	}
	resp, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get response %s/%s: %w", blastID, courierID, err)
	}
	return resp, nil
}

func (s *SQLStore) requireResponse(ctx context.Context, r runner, blastID, courierID string) (*domain.Response, error) {
	resp, err := s.getResponse(ctx, r, blastID, courierID)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, domain.NotFound("response", blastID+"/"+courierID)
	}
	return resp, nil
}

func scanBlast(sc scanner) (*domain.Blast, error) {
	var (
		b          domain.Blast
		priority   string
		status     string
		acceptedBy sql.NullString
		acceptedAt sql.NullInt64
		expiresAt  int64
		createdAt  int64
	)
	err := sc.Scan(
		&b.ID, &b.LoadID, &b.CreatedBy, &priority, &b.RadiusMiles, &status,
		&acceptedBy, &acceptedAt, &expiresAt,
		&b.NotifiedCount, &b.ViewedCount, &b.DeclinedCount, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	b.Priority = domain.BlastPriority(priority)
	b.Status = domain.BlastStatus(status)
	b.AcceptedBy = acceptedBy.String
	b.AcceptedAt = timePtr(acceptedAt)
	b.ExpiresAt = fromMillis(expiresAt)
	b.CreatedAt = fromMillis(createdAt)
	return &b, nil
}

func scanResponse(sc scanner) (*domain.Response, error) {
	var (
		r           domain.Response
		status      string
		seconds     sql.NullFloat64
		reason      sql.NullString
		lat, lon    sql.NullFloat64
		respondedAt sql.NullInt64
		createdAt   int64
	)
	err := sc.Scan(&r.ID, &r.BlastID, &r.CourierID, &status, &seconds, &reason, &lat, &lon, &respondedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Status = domain.ResponseStatus(status)
	r.ResponseSeconds = floatPtr(seconds)
	r.DeclineReason = reason.String
	if lat.Valid && lon.Valid {
		r.Location = &domain.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	r.RespondedAt = timePtr(respondedAt)
	r.CreatedAt = fromMillis(createdAt)
	return &r, nil
}

func collectResponses(rows *sql.Rows) ([]*domain.Response, error) {
	out := make([]*domain.Response, 0, 8)
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return out, nil
}
