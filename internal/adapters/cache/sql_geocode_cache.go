package cache

import (
	"context"
	"database/sql"
	"dispatch-coordination-service/internal/domain"
	"dispatch-coordination-service/internal/platform/db"
	"dispatch-coordination-service/internal/platform/obs"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// SQLGeocodeCache is a SQL-backed cache mapping normalized addresses to coordinates.
// It works on both SQLite and Postgres.
type SQLGeocodeCache struct {
	DB *sql.DB
	sb sq.StatementBuilderType
}

func NewSQLGeocodeCache(conn *sql.DB, driver string) *SQLGeocodeCache {
	var format sq.PlaceholderFormat = sq.Question
	if driver == db.DriverPostgres {
		format = sq.Dollar
	}
	return &SQLGeocodeCache{DB: conn, sb: sq.StatementBuilder.PlaceholderFormat(format)}
}

// Fetch cached coordinates for the given addresses. Misses are simply absent.
func (s *SQLGeocodeCache) GetMany(
	ctx context.Context,
	addresses []string,
) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("geocode cache: db is nil")
	}

	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(addresses))
	for _, a := range addresses {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		uniq = append(uniq, a)
	}

	if len(uniq) == 0 {
		return map[string]domain.Coordinates{}, nil
	}

	q, args, err := s.sb.Select("address", "lon", "lat").
		From("geocode_cache").
		Where(sq.Eq{"address": uniq}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("get geocode cache: build query: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get geocode cache: query geocode_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Coordinates, len(uniq))
	for rows.Next() {
		var addr string
		var lon, lat float64
		if err := rows.Scan(&addr, &lon, &lat); err != nil {
			return nil, fmt.Errorf("get geocode cache: scan rows: %w", err)
		}
		out[addr] = domain.Coordinates{Lon: lon, Lat: lat}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get geocode cache: row iteration: %w", err)
	}

	return out, nil
}

// Store address -> coordinate mappings in the cache, overwriting older entries.
func (s *SQLGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) error {
	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}

	if len(results) == 0 {
		return nil
	}

	ins := s.sb.Insert("geocode_cache").Columns("address", "lon", "lat")
	for addr, c := range results {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("insert geocode cache: empty address key")
		}
		ins = ins.Values(addr, c.Lon, c.Lat)
	}
	ins = ins.Suffix("ON CONFLICT (address) DO UPDATE SET lon = EXCLUDED.lon, lat = EXCLUDED.lat")

	q, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("insert geocode cache: build statement: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert geocode cache: %w", err)
	}

	return nil
}
