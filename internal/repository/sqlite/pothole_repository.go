package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"potholewatch/internal/geo"
	"potholewatch/internal/model"
	"potholewatch/internal/repository"
)

const potholeColumns = `id, latitude, longitude, severity, title, description, image_url,
	vehicle_id, status, reported_at, created_at, updated_at`

// PotholeRepository implements repository.PotholeRepository for SQLite.
type PotholeRepository struct {
	db *DB
}

// NewPotholeRepository creates a new SQLite pothole repository.
func NewPotholeRepository(db *DB) *PotholeRepository {
	return &PotholeRepository{db: db}
}

// Insert adds a new pothole record to the database.
func (r *PotholeRepository) Insert(p *model.Pothole) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO potholes (`+potholeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Latitude, p.Longitude, p.Severity, p.Title, p.Description, p.ImageURL,
		p.VehicleID, p.Status, utc(p.ReportedAt), utc(p.CreatedAt), utc(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert pothole: %w", err)
	}
	return nil
}

// GetByID retrieves a pothole by its id.
func (r *PotholeRepository) GetByID(id string) (*model.Pothole, error) {
	r.db.RLock()
	defer r.db.RUnlock()
	return r.getByID(id)
}

func (r *PotholeRepository) getByID(id string) (*model.Pothole, error) {
	row := r.db.Conn().QueryRow(`SELECT `+potholeColumns+` FROM potholes WHERE id = ?`, id)
	p, err := scanPothole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pothole: %w", err)
	}
	return p, nil
}

// List returns potholes matching the filter, newest first.
func (r *PotholeRepository) List(filter model.PotholeFilter) ([]model.Pothole, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := potholeWhere(filter)
	query := `SELECT ` + potholeColumns + ` FROM potholes` + where + ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}
	return r.query(query, args...)
}

// ListInBounds returns potholes inside the rectangle, newest first.
func (r *PotholeRepository) ListInBounds(b geo.Bounds) ([]model.Pothole, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.query(`
		SELECT `+potholeColumns+` FROM potholes
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
		ORDER BY created_at DESC
	`, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
}

// Count returns the number of potholes matching the filter (without limit/offset).
func (r *PotholeRepository) Count(filter model.PotholeFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := potholeWhere(filter)
	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM potholes`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count potholes: %w", err)
	}
	return count, nil
}

// UpdateStatus sets the status and updated_at and returns the new row.
func (r *PotholeRepository) UpdateStatus(id string, status model.Status, at time.Time) (*model.Pothole, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`UPDATE potholes SET status = ?, updated_at = ? WHERE id = ?`, status, utc(at), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update pothole: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}
	return r.getByID(id)
}

func (r *PotholeRepository) query(query string, args ...interface{}) ([]model.Pothole, error) {
	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query potholes: %w", err)
	}
	defer rows.Close()

	potholes := []model.Pothole{}
	for rows.Next() {
		p, err := scanPothole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pothole: %w", err)
		}
		potholes = append(potholes, *p)
	}
	return potholes, rows.Err()
}

func potholeWhere(filter model.PotholeFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if filter.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.VehicleID != "" {
		clauses = append(clauses, "vehicle_id = ?")
		args = append(args, filter.VehicleID)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, utc(filter.Since))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPothole(row rowScanner) (*model.Pothole, error) {
	var p model.Pothole
	var imageURL sql.NullString
	err := row.Scan(&p.ID, &p.Latitude, &p.Longitude, &p.Severity, &p.Title, &p.Description, &imageURL,
		&p.VehicleID, &p.Status, &p.ReportedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if imageURL.Valid {
		p.ImageURL = &imageURL.String
	}
	return &p, nil
}
