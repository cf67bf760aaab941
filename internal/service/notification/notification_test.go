package notification

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potholewatch/internal/model"
	"potholewatch/internal/repository/sqlite"
	"potholewatch/internal/service/realtime"
)

type countingPublisher struct {
	updates int
	inserts int
}

func (p *countingPublisher) Publish(_ string, typ realtime.EventType, _, _ interface{}) {
	switch typ {
	case realtime.EventInsert:
		p.inserts++
	case realtime.EventUpdate:
		p.updates++
	}
}

func TestService_ReadFlow(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	pub := &countingPublisher{}
	svc := NewService(sqlite.NewNotificationRepository(db), pub)

	first, err := svc.Notify("p1", model.NotificationDetection, "one")
	require.NoError(t, err)
	_, err = svc.Notify("p2", model.NotificationAlert, "two")
	require.NoError(t, err)
	_, err = svc.Notify("p3", model.NotificationDetection, "three")
	require.NoError(t, err)

	_, err = svc.MarkRead(first.ID)
	require.NoError(t, err)

	unread, err := svc.UnreadCount()
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	changed, err := svc.MarkAllRead()
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	inbox, err := svc.Inbox()
	require.NoError(t, err)
	assert.Len(t, inbox.Notifications, 3)
	assert.Zero(t, inbox.UnreadCount)

	assert.Equal(t, 3, pub.inserts)
	assert.Equal(t, 3, pub.updates)
}
