package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/example/ride-exchange/internal/models"
)

// PostgresStore persists rides in a single table with the chat log as a
// jsonb column. Chat appends and the arrive-once transition are single
// statements, so concurrent chat and arrival events cannot lose updates.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Create(ctx context.Context, r *models.Ride) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	chat, err := json.Marshal(r.Chat)
	if err != nil {
		return "", err
	}
	if r.Chat == nil {
		chat = []byte("[]")
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO rides(id, driver_id, rider_id, pickup_lat, pickup_lon, dest_lat, dest_lon, dest_text, requested_time, chat, arrived, cost, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,FALSE,0,$11,$12)`,
		r.ID, r.DriverID, r.RiderID, r.Pickup.Lat, r.Pickup.Lon, r.Destination.Lat, r.Destination.Lon,
		r.DestinationText, r.RequestedTime, chat, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, driver_id, rider_id, pickup_lat, pickup_lon, dest_lat, dest_lon, dest_text, requested_time, chat, arrived, cost, created_at, updated_at
		 FROM rides WHERE id = $1`, id)
	return scanRide(row)
}

func (p *PostgresStore) AppendChat(ctx context.Context, id string, entry models.ChatEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE rides SET chat = chat || $1::jsonb, updated_at = $2 WHERE id = $3`,
		b, time.Now(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresStore) SetArrived(ctx context.Context, id string, cost int) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE rides SET arrived = TRUE, cost = $1, updated_at = $2 WHERE id = $3 AND arrived = FALSE`,
		cost, time.Now(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing or already invoiced; distinguish for the caller.
		if _, err := p.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyArrived
	}
	return nil
}

func (p *PostgresStore) FindActiveByDriver(ctx context.Context, driverID string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, driver_id, rider_id, pickup_lat, pickup_lon, dest_lat, dest_lon, dest_text, requested_time, chat, arrived, cost, created_at, updated_at
		 FROM rides WHERE driver_id = $1 AND arrived = FALSE LIMIT 1`, driverID)
	return scanRide(row)
}

func (p *PostgresStore) FindActiveByRider(ctx context.Context, riderID string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, driver_id, rider_id, pickup_lat, pickup_lon, dest_lat, dest_lon, dest_text, requested_time, chat, arrived, cost, created_at, updated_at
		 FROM rides WHERE rider_id = $1 AND arrived = FALSE LIMIT 1`, riderID)
	return scanRide(row)
}

func scanRide(row *sql.Row) (*models.Ride, error) {
	var r models.Ride
	var chat []byte
	err := row.Scan(&r.ID, &r.DriverID, &r.RiderID, &r.Pickup.Lat, &r.Pickup.Lon,
		&r.Destination.Lat, &r.Destination.Lon, &r.DestinationText, &r.RequestedTime,
		&chat, &r.Arrived, &r.Cost, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(chat, &r.Chat); err != nil {
		return nil, fmt.Errorf("decode chat log for ride %s: %w", r.ID, err)
	}
	return &r, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
