package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"potholewatch/internal/model"
	"potholewatch/internal/repository"
)

// VehicleRepository implements repository.VehicleRepository for SQLite.
type VehicleRepository struct {
	db *DB
}

func NewVehicleRepository(db *DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

func (r *VehicleRepository) Insert(v *model.Vehicle) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO vehicles (id, vehicle_id, name, is_active, last_ping, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.ID, v.VehicleID, v.Name, v.IsActive, utc(v.LastPing), utc(v.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert vehicle: %w", err)
	}
	return nil
}

func (r *VehicleRepository) GetByID(id string) (*model.Vehicle, error) {
	r.db.RLock()
	defer r.db.RUnlock()
	return r.getByID(id)
}

func (r *VehicleRepository) getByID(id string) (*model.Vehicle, error) {
	var v model.Vehicle
	err := r.db.Conn().QueryRow(`
		SELECT id, vehicle_id, name, is_active, last_ping, created_at FROM vehicles WHERE id = ?
	`, id).Scan(&v.ID, &v.VehicleID, &v.Name, &v.IsActive, &v.LastPing, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicle: %w", err)
	}
	return &v, nil
}

// List returns every vehicle ordered by name.
func (r *VehicleRepository) List() ([]model.Vehicle, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, vehicle_id, name, is_active, last_ping, created_at FROM vehicles ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	vehicles := []model.Vehicle{}
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.VehicleID, &v.Name, &v.IsActive, &v.LastPing, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// UpdateStatus sets is_active and records the ping time.
func (r *VehicleRepository) UpdateStatus(id string, active bool, at time.Time) (*model.Vehicle, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`UPDATE vehicles SET is_active = ?, last_ping = ? WHERE id = ?`, active, utc(at), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update vehicle: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}
	return r.getByID(id)
}
