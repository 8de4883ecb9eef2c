package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/emergency-dispatch/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveRequest(ctx context.Context, r *models.DispatchRequest) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO requests(id, user_id, kind, hospital_id, status, origin_lat, origin_lng, eta_seconds, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, r.UserID, r.Kind, r.HospitalID, r.Status, r.Origin.Lat, r.Origin.Lng, r.ETASeconds, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateRequest(ctx context.Context, r *models.DispatchRequest) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE requests SET hospital_id=$1, status=$2, eta_seconds=$3, updated_at=$4 WHERE id=$5`,
		r.HospitalID, r.Status, r.ETASeconds, time.Now(), r.ID)
	return err
}

func (p *PostgresStore) ListActive(ctx context.Context, userID string) ([]models.DispatchRequest, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, kind, hospital_id, status, origin_lat, origin_lng, eta_seconds, created_at, updated_at
		 FROM requests
		 WHERE user_id=$1 AND status NOT IN ('completed','cancelled')
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DispatchRequest
	for rows.Next() {
		var r models.DispatchRequest
		var eta sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.UserID, &r.Kind, &r.HospitalID, &r.Status,
			&r.Origin.Lat, &r.Origin.Lng, &eta, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if eta.Valid {
			v := eta.Float64
			r.ETASeconds = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
