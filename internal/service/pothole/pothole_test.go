package pothole

import (
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potholewatch/internal/logger"
	"potholewatch/internal/model"
	"potholewatch/internal/repository"
	"potholewatch/internal/repository/sqlite"
	"potholewatch/internal/service/notification"
	"potholewatch/internal/service/realtime"
)

type recorded struct {
	table string
	typ   realtime.EventType
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recorded
}

func (p *recordingPublisher) Publish(table string, typ realtime.EventType, _, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recorded{table: table, typ: typ})
}

type fixture struct {
	svc           *Service
	notifications *notification.Service
	publisher     *recordingPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pub := &recordingPublisher{}
	notes := notification.NewService(sqlite.NewNotificationRepository(db), pub)
	log := logger.NewTestLogger(t.TempDir(), io.Discard)
	return fixture{
		svc:           NewService(sqlite.NewPotholeRepository(db), notes, pub, log),
		notifications: notes,
		publisher:     pub,
	}
}

func validInput() CreateInput {
	return CreateInput{
		Latitude:    28.6129,
		Longitude:   77.2295,
		Severity:    model.SeverityHigh,
		Title:       "Pothole detected via live camera",
		Description: "AI detected pothole with 91.0% confidence",
		VehicleID:   "DASHCAM-001",
	}
}

func TestCreate_StoresPublishesAndNotifies(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Create(validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, model.StatusPending, p.Status)
	assert.False(t, p.ReportedAt.IsZero())

	stored, err := f.svc.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, stored.Title)

	inbox, err := f.notifications.Inbox()
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, "New pothole detected: Pothole detected via live camera - Severity: high", inbox.Notifications[0].Message)
	assert.Equal(t, model.NotificationDetection, inbox.Notifications[0].Type)
	assert.Equal(t, 1, inbox.UnreadCount)

	assert.Equal(t, []recorded{
		{realtime.TablePotholes, realtime.EventInsert},
		{realtime.TableNotifications, realtime.EventInsert},
	}, f.publisher.events)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"latitude out of range", func(in *CreateInput) { in.Latitude = 91 }},
		{"longitude out of range", func(in *CreateInput) { in.Longitude = -181 }},
		{"unknown severity", func(in *CreateInput) { in.Severity = "critical" }},
		{"blank title", func(in *CreateInput) { in.Title = "  " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := f.svc.Create(in)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
	assert.Empty(t, f.publisher.events)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	p, err := f.svc.Create(validInput())
	require.NoError(t, err)

	verified, err := f.svc.UpdateStatus(p.ID, model.StatusVerified)
	require.NoError(t, err)
	assert.Equal(t, model.StatusVerified, verified.Status)

	repaired, err := f.svc.UpdateStatus(p.ID, model.StatusRepaired)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRepaired, repaired.Status)

	inbox, err := f.notifications.Inbox()
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 2)
	var types []model.NotificationType
	for _, n := range inbox.Notifications {
		types = append(types, n.Type)
	}
	assert.Contains(t, types, model.NotificationRepair)

	_, err = f.svc.UpdateStatus(p.ID, "fixed")
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.svc.UpdateStatus("missing", model.StatusVerified)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNearby(t *testing.T) {
	f := newFixture(t)
	near := validInput()
	far := validInput()
	far.Latitude, far.Longitude = 28.70, 77.10

	_, err := f.svc.Create(near)
	require.NoError(t, err)
	_, err = f.svc.Create(far)
	require.NoError(t, err)

	got, err := f.svc.Nearby(28.6130, 77.2296, 250)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Less(t, got[0].DistanceMeters, 250.0)

	_, err = f.svc.Nearby(28.6, 77.2, 0)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestList_Since(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(validInput())
	require.NoError(t, err)

	got, err := f.svc.List(model.PotholeFilter{Since: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = f.svc.List(model.PotholeFilter{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, got)
}
