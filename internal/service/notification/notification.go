// Package notification manages dashboard notifications and their change feed.
package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"potholewatch/internal/model"
	"potholewatch/internal/repository"
	"potholewatch/internal/service/realtime"
)

// ListLimit is the number of notifications the dashboard shows.
const ListLimit = 50

// Publisher receives change events for the realtime feed.
type Publisher interface {
	Publish(table string, typ realtime.EventType, newRecord, oldRecord interface{})
}

type Service struct {
	repo      repository.NotificationRepository
	publisher Publisher
	now       func() time.Time
}

func NewService(repo repository.NotificationRepository, publisher Publisher) *Service {
	return &Service{repo: repo, publisher: publisher, now: time.Now}
}

// Notify stores a new notification and announces it.
func (s *Service) Notify(potholeID string, typ model.NotificationType, message string) (*model.Notification, error) {
	n := &model.Notification{
		ID:        uuid.NewString(),
		PotholeID: potholeID,
		Message:   message,
		Type:      typ,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(n); err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	s.publisher.Publish(realtime.TableNotifications, realtime.EventInsert, n, nil)
	return n, nil
}

// Inbox is the latest notifications plus the unread total.
type Inbox struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unread_count"`
}

func (s *Service) Inbox() (*Inbox, error) {
	list, err := s.repo.List(ListLimit)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.UnreadCount()
	if err != nil {
		return nil, err
	}
	return &Inbox{Notifications: list, UnreadCount: unread}, nil
}

func (s *Service) List() ([]model.Notification, error) {
	return s.repo.List(ListLimit)
}

func (s *Service) MarkRead(id string) (*model.Notification, error) {
	n, err := s.repo.MarkRead(id)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(realtime.TableNotifications, realtime.EventUpdate, n, nil)
	return n, nil
}

// MarkAllRead returns how many notifications changed.
func (s *Service) MarkAllRead() (int, error) {
	changed, err := s.repo.MarkAllRead()
	if err != nil {
		return 0, err
	}
	for i := range changed {
		s.publisher.Publish(realtime.TableNotifications, realtime.EventUpdate, &changed[i], nil)
	}
	return len(changed), nil
}

// UnreadCount returns the number of unread notifications.
func (s *Service) UnreadCount() (int, error) {
	return s.repo.UnreadCount()
}
