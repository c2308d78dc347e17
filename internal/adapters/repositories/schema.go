package repositories

import (
	"context"
	"database/sql"
	"dispatch-coordination-service/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Initialize the database schema. The DDL is portable between SQLite and Postgres.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createLoadsQuery := `
	CREATE TABLE IF NOT EXISTS loads (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		pickup_address TEXT NOT NULL DEFAULT '',
		delivery_address TEXT NOT NULL DEFAULT '',
		pickup_lat DOUBLE PRECISION NOT NULL DEFAULT 0,
		pickup_lon DOUBLE PRECISION NOT NULL DEFAULT 0,
		delivery_lat DOUBLE PRECISION NOT NULL DEFAULT 0,
		delivery_lon DOUBLE PRECISION NOT NULL DEFAULT 0,
		courier_id TEXT,
		revenue_cents BIGINT NOT NULL DEFAULT 0,
		package_count INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	);
	`

	createBlastsQuery := `
	CREATE TABLE IF NOT EXISTS blasts (
		id TEXT PRIMARY KEY,
		load_id TEXT NOT NULL REFERENCES loads(id),
		created_by TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL,
		radius_miles DOUBLE PRECISION NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		accepted_by TEXT,
		accepted_at BIGINT,
		expires_at BIGINT NOT NULL,
		notified_count INTEGER NOT NULL DEFAULT 0,
		viewed_count INTEGER NOT NULL DEFAULT 0,
		declined_count INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL
	);
	`

	createResponsesQuery := `
	CREATE TABLE IF NOT EXISTS blast_responses (
		id TEXT PRIMARY KEY,
		blast_id TEXT NOT NULL REFERENCES blasts(id) ON DELETE CASCADE,
		courier_id TEXT NOT NULL,
		status TEXT NOT NULL,
		response_seconds DOUBLE PRECISION,
		decline_reason TEXT,
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION,
		responded_at BIGINT,
		created_at BIGINT NOT NULL,
		UNIQUE (blast_id, courier_id)
	);
	`

	createAlertsQuery := `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		load_id TEXT,
		courier_id TEXT,
		alert_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		acknowledged_at BIGINT,
		resolved_at BIGINT
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
        address TEXT PRIMARY KEY,
        lon DOUBLE PRECISION NOT NULL,
        lat DOUBLE PRECISION NOT NULL
    );
	`

	statements := []string{
		createLoadsQuery,
		createBlastsQuery,
		createResponsesQuery,
		createAlertsQuery,
		createGeocodeCacheQuery,
		`CREATE INDEX IF NOT EXISTS idx_loads_courier_status ON loads(courier_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_blasts_status_expires ON blasts(status, expires_at);`,
		`CREATE INDEX IF NOT EXISTS idx_blasts_created ON blasts(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);`,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type LoadSeed struct {
	ID              string  `json:"id"`
	PickupAddress   string  `json:"pickup_address"`
	DeliveryAddress string  `json:"delivery_address"`
	DeliveryLat     float64 `json:"delivery_lat"`
	DeliveryLon     float64 `json:"delivery_lon"`
	RevenueCents    int64   `json:"revenue_cents"`
	PackageCount    int     `json:"package_count"`
}

// Populate the database with pending loads from a JSON file.
// Existing loads are left untouched so re-seeding never rewinds a status.
func SeedFromJSON(ctx context.Context, store *SQLStore, jsonPath string) (int, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("seed loads: read %q: %w", jsonPath, err)
	}

	var data []LoadSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return 0, fmt.Errorf("seed loads: parse json: %w", err)
	}

	now := time.Now().UTC()
	inserted := 0
	for i, item := range data {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return inserted, fmt.Errorf("seed loads: item at index %d: id cannot be empty", i+1)
		}

		if _, err := store.GetLoad(ctx, id); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrNotFound) {
			return inserted, fmt.Errorf("seed loads: lookup %q: %w", id, err)
		}

		load := &domain.Load{
			ID:              id,
			Status:          domain.StatusPending,
			PickupAddress:   strings.TrimSpace(item.PickupAddress),
			DeliveryAddress: strings.TrimSpace(item.DeliveryAddress),
			Delivery:        domain.Coordinates{Lat: item.DeliveryLat, Lon: item.DeliveryLon},
			RevenueCents:    item.RevenueCents,
			PackageCount:    item.PackageCount,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := store.CreateLoad(ctx, load); err != nil {
			return inserted, fmt.Errorf("seed loads: insert id=%s: %w", id, err)
		}
		inserted++
	}

	return inserted, nil
}
