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

var _ ports.LoadRepository = (*SQLStore)(nil)

var loadColumns = []string{
	"id", "status", "pickup_address", "delivery_address",
	"pickup_lat", "pickup_lon", "delivery_lat", "delivery_lon",
	"courier_id", "revenue_cents", "package_count", "created_at", "updated_at",
}

func (s *SQLStore) CreateLoad(ctx context.Context, load *domain.Load) (err error) {
	defer obs.Time(ctx, "store.CreateLoad")(&err)

	if err := load.Validate(); err != nil {
		return err
	}

	ins := s.sb.Insert("loads").Columns(loadColumns...).Values(
		load.ID, string(load.Status), load.PickupAddress, load.DeliveryAddress,
		load.Pickup.Lat, load.Pickup.Lon, load.Delivery.Lat, load.Delivery.Lon,
		nullString(load.CourierID), load.RevenueCents, load.PackageCount,
		toMillis(load.CreatedAt), toMillis(load.UpdatedAt),
	)
	if _, err := execAffected(ctx, s.DB, ins); err != nil {
		return fmt.Errorf("create load %s: %w", load.ID, err)
	}
	return nil
}

func (s *SQLStore) GetLoad(ctx context.Context, id string) (*domain.Load, error) {
	return s.getLoad(ctx, s.DB, id)
}

func (s *SQLStore) getLoad(ctx context.Context, r runner, id string) (*domain.Load, error) {
	row, err := queryRow(ctx, r, s.sb.Select(loadColumns...).From("loads").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get load: %w", err)
	}

	load, err := scanLoad(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("load", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get load %s: %w", id, err)
	}
	return load, nil
}

// UpdateLoadStatus is a compare-and-swap on the load's current status.
func (s *SQLStore) UpdateLoadStatus(
	ctx context.Context,
	id string,
	from domain.LoadStatus,
	to domain.LoadStatus,
	courierID string,
	at time.Time,
) (err error) {
	defer obs.Time(ctx, "store.UpdateLoadStatus")(&err)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.swapLoadStatus(ctx, tx, id, from, to, courierID, at)
	})
}

func (s *SQLStore) swapLoadStatus(
	ctx context.Context,
	r runner,
	id string,
	from domain.LoadStatus,
	to domain.LoadStatus,
	courierID string,
	at time.Time,
) error {
	if err := domain.CheckTransition(from, to); err != nil {
		return err
	}

	upd := s.sb.Update("loads").
		Set("status", string(to)).
		Set("courier_id", nullString(courierID)).
		Set("updated_at", toMillis(at)).
		Where(sq.Eq{"id": id, "status": string(from)})

	n, err := execAffected(ctx, r, upd)
	if err != nil {
		return fmt.Errorf("update load %s status: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	current, err := s.getLoad(ctx, r, id)
	if err != nil {
		return err
	}
	return &domain.IllegalTransitionError{From: current.Status, To: to}
}

func (s *SQLStore) ListCourierLoads(
	ctx context.Context,
	courierID string,
	statuses []domain.LoadStatus,
) (_ []*domain.Load, err error) {
	defer obs.Time(ctx, "store.ListCourierLoads")(&err)

	where := sq.Eq{"courier_id": courierID}
	if len(statuses) > 0 {
		vals := make([]string, 0, len(statuses))
		for _, st := range statuses {
			vals = append(vals, string(st))
		}
		where["status"] = vals
	}

	rows, err := queryRows(ctx, s.DB, s.sb.Select(loadColumns...).From("loads").Where(where).OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("list courier loads: %w", err)
	}
	defer rows.Close()

	loads := make([]*domain.Load, 0, 16)
	for rows.Next() {
		load, err := scanLoad(rows)
		if err != nil {
			return nil, fmt.Errorf("list courier loads: scan row: %w", err)
		}
		loads = append(loads, load)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list courier loads: row iteration: %w", err)
	}

	return loads, nil
}

func (s *SQLStore) SetLoadCoordinates(ctx context.Context, id string, pickup, delivery domain.Coordinates) error {
	upd := s.sb.Update("loads").
		Set("pickup_lat", pickup.Lat).
		Set("pickup_lon", pickup.Lon).
		Set("delivery_lat", delivery.Lat).
		Set("delivery_lon", delivery.Lon).
		Where(sq.Eq{"id": id})

	n, err := execAffected(ctx, s.DB, upd)
	if err != nil {
		return fmt.Errorf("set load %s coordinates: %w", id, err)
	}
	if n == 0 {
		return domain.NotFound("load", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLoad(sc scanner) (*domain.Load, error) {
	var (
		l       domain.Load
		status  string
		courier sql.NullString
		created int64
		updated int64
	)
	err := sc.Scan(
		&l.ID, &status, &l.PickupAddress, &l.DeliveryAddress,
		&l.Pickup.Lat, &l.Pickup.Lon, &l.Delivery.Lat, &l.Delivery.Lon,
		&courier, &l.RevenueCents, &l.PackageCount, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	l.Status = domain.LoadStatus(status)
	l.CourierID = courier.String
	l.CreatedAt = fromMillis(created)
	l.UpdatedAt = fromMillis(updated)
	return &l, nil
}
