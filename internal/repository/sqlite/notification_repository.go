package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"potholewatch/internal/model"
	"potholewatch/internal/repository"
)

// NotificationRepository implements repository.NotificationRepository for SQLite.
type NotificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Insert(n *model.Notification) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO notifications (id, pothole_id, message, type, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.PotholeID, n.Message, n.Type, n.Read, utc(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// List returns the newest notifications first, at most limit of them.
func (r *NotificationRepository) List(limit int) ([]model.Notification, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT id, pothole_id, message, type, read, created_at FROM notifications ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(query, args...)
}

func (r *NotificationRepository) UnreadCount() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM notifications WHERE read = 0`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

func (r *NotificationRepository) MarkRead(id string) (*model.Notification, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}

	var n model.Notification
	err = r.db.Conn().QueryRow(`
		SELECT id, pothole_id, message, type, read, created_at FROM notifications WHERE id = ?
	`, id).Scan(&n.ID, &n.PotholeID, &n.Message, &n.Type, &n.Read, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query notification: %w", err)
	}
	return &n, nil
}

func (r *NotificationRepository) MarkAllRead() ([]model.Notification, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT id, pothole_id, message, type, read, created_at FROM notifications WHERE read = 0 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unread notifications: %w", err)
	}
	changed, err := scanNotifications(rows)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(`UPDATE notifications SET read = 1 WHERE read = 0`); err != nil {
		return nil, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	for i := range changed {
		changed[i].Read = true
	}
	return changed, nil
}

func (r *NotificationRepository) query(query string, args ...interface{}) ([]model.Notification, error) {
	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	return scanNotifications(rows)
}

func scanNotifications(rows *sql.Rows) ([]model.Notification, error) {
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.PotholeID, &n.Message, &n.Type, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
