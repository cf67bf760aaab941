package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potholewatch/internal/geo"
	"potholewatch/internal/model"
	"potholewatch/internal/repository"
)

var (
	_ repository.PotholeRepository      = (*PotholeRepository)(nil)
	_ repository.VehicleRepository      = (*VehicleRepository)(nil)
	_ repository.NotificationRepository = (*NotificationRepository)(nil)
	_ repository.SettingsRepository     = (*SettingsRepository)(nil)
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newPothole(id string, severity model.Severity, createdAt time.Time) *model.Pothole {
	return &model.Pothole{
		ID:          id,
		Latitude:    28.6129,
		Longitude:   77.2295,
		Severity:    severity,
		Title:       "Pothole " + id,
		Description: "test",
		VehicleID:   "DASHCAM-001",
		Status:      model.StatusPending,
		ReportedAt:  createdAt,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ========================================
// Database / migration tests
// ========================================

func TestDatabase_Connection(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_MigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.MigrateUp())
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
}

func TestDatabase_MigrateDown(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	_, err = NewSettingsRepository(db).GetModelSettings()
	assert.Error(t, err, "model_settings should be gone after rolling back")

	require.NoError(t, db.MigrateUp())
	_, err = NewSettingsRepository(db).GetModelSettings()
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDatabase_OpenWithoutMigrations(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "bare.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

// ========================================
// Pothole repository tests
// ========================================

func TestPotholeRepository_InsertAndGet(t *testing.T) {
	repo := NewPotholeRepository(newTestDB(t))
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	url := "/api/snapshots/view?image=a.jpg"

	p := newPothole("p1", model.SeverityHigh, now)
	p.ImageURL = &url
	require.NoError(t, repo.Insert(p))

	got, err := repo.GetByID("p1")
	require.NoError(t, err)
	assert.Equal(t, model.SeverityHigh, got.Severity)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.True(t, now.Equal(got.CreatedAt))
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, url, *got.ImageURL)

	_, err = repo.GetByID("missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPotholeRepository_ListFiltersAndOrder(t *testing.T) {
	repo := NewPotholeRepository(newTestDB(t))
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(newPothole("old", model.SeverityLow, base)))
	require.NoError(t, repo.Insert(newPothole("mid", model.SeverityHigh, base.Add(time.Hour))))
	require.NoError(t, repo.Insert(newPothole("new", model.SeverityHigh, base.Add(2*time.Hour))))

	all, err := repo.List(model.PotholeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})

	high, err := repo.List(model.PotholeFilter{Severity: model.SeverityHigh})
	require.NoError(t, err)
	assert.Len(t, high, 2)

	recent, err := repo.List(model.PotholeFilter{Since: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	page, err := repo.List(model.PotholeFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "mid", page[0].ID)

	count, err := repo.Count(model.PotholeFilter{Severity: model.SeverityLow})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPotholeRepository_UpdateStatus(t *testing.T) {
	repo := NewPotholeRepository(newTestDB(t))
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Insert(newPothole("p1", model.SeverityMedium, created)))

	later := created.Add(48 * time.Hour)
	got, err := repo.UpdateStatus("p1", model.StatusRepaired, later)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRepaired, got.Status)
	assert.True(t, later.Equal(got.UpdatedAt))
	assert.True(t, created.Equal(got.CreatedAt))

	_, err = repo.UpdateStatus("nope", model.StatusVerified, later)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestPotholeRepository_ListInBounds(t *testing.T) {
	repo := NewPotholeRepository(newTestDB(t))
	now := time.Now()

	inside := newPothole("inside", model.SeverityLow, now)
	outside := newPothole("outside", model.SeverityLow, now)
	outside.Latitude = 19.07
	outside.Longitude = 72.87
	require.NoError(t, repo.Insert(inside))
	require.NoError(t, repo.Insert(outside))

	got, err := repo.ListInBounds(geo.BoundsAround(28.6129, 77.2295, 1000))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "inside", got[0].ID)
}

// ========================================
// Vehicle repository tests
// ========================================

func TestVehicleRepository(t *testing.T) {
	repo := NewVehicleRepository(newTestDB(t))
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(&model.Vehicle{ID: "v2", VehicleID: "BUS-2", Name: "Zulu", LastPing: now, CreatedAt: now}))
	require.NoError(t, repo.Insert(&model.Vehicle{ID: "v1", VehicleID: "BUS-1", Name: "Alpha", LastPing: now, CreatedAt: now}))

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Name)

	ping := now.Add(time.Minute)
	v, err := repo.UpdateStatus("v2", true, ping)
	require.NoError(t, err)
	assert.True(t, v.IsActive)
	assert.True(t, ping.Equal(v.LastPing))

	_, err = repo.UpdateStatus("missing", true, ping)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.Insert(&model.Vehicle{ID: "v3", VehicleID: "BUS-1", Name: "Dup", LastPing: now, CreatedAt: now})
	assert.Error(t, err, "vehicle_id must be unique")
}

// ========================================
// Notification repository tests
// ========================================

func TestNotificationRepository(t *testing.T) {
	repo := NewNotificationRepository(newTestDB(t))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, repo.Insert(&model.Notification{
			ID:        id,
			PotholeID: "p1",
			Message:   "msg " + id,
			Type:      model.NotificationDetection,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := repo.List(2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n3", list[0].ID)

	unread, err := repo.UnreadCount()
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	n, err := repo.MarkRead("n1")
	require.NoError(t, err)
	assert.True(t, n.Read)

	_, err = repo.MarkRead("missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	changed, err := repo.MarkAllRead()
	require.NoError(t, err)
	assert.Len(t, changed, 2)
	for _, c := range changed {
		assert.True(t, c.Read)
	}

	unread, err = repo.UnreadCount()
	require.NoError(t, err)
	assert.Zero(t, unread)
}

// ========================================
// Settings repository tests
// ========================================

func TestSettingsRepository_Upsert(t *testing.T) {
	repo := NewSettingsRepository(newTestDB(t))

	_, err := repo.GetModelSettings()
	require.ErrorIs(t, err, repository.ErrNotFound)

	now := time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC)
	require.NoError(t, repo.SaveModelSettings(&model.ModelSettings{ModelType: model.ModelRoboflow, ModelID: "potholes", Version: "2", UpdatedAt: now}))
	require.NoError(t, repo.SaveModelSettings(&model.ModelSettings{ModelType: model.ModelCustom, ModelEndpoint: "http://x", UpdatedAt: now}))

	got, err := repo.GetModelSettings()
	require.NoError(t, err)
	assert.Equal(t, model.ModelCustom, got.ModelType)
	assert.Equal(t, "http://x", got.ModelEndpoint)
	assert.Empty(t, got.ModelID)
}
