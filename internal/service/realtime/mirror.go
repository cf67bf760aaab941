package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Mirror is a client-side copy of one table kept current by applying
// change events. Rows are held as raw JSON keyed by their "id" field.
type Mirror struct {
	mu      sync.RWMutex
	table   string
	order   []string
	records map[string]json.RawMessage
}

func NewMirror(table string) *Mirror {
	return &Mirror{table: table, records: make(map[string]json.RawMessage)}
}

type idOnly struct {
	ID string `json:"id"`
}

// Apply folds one event into the mirror. Events for other tables are ignored.
func (m *Mirror) Apply(ev ChangeEvent) error {
	if ev.Table != m.table {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Type {
	case EventSnapshot:
		var rows []json.RawMessage
		if err := json.Unmarshal(ev.New, &rows); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		m.order = m.order[:0]
		m.records = make(map[string]json.RawMessage, len(rows))
		for _, row := range rows {
			id, err := rowID(row)
			if err != nil {
				return err
			}
			if _, dup := m.records[id]; !dup {
				m.order = append(m.order, id)
			}
			m.records[id] = row
		}

	case EventInsert:
		id, err := rowID(ev.New)
		if err != nil {
			return err
		}
		if _, exists := m.records[id]; !exists {
			m.order = append(m.order, id)
		}
		m.records[id] = ev.New

	case EventUpdate:
		id, err := rowID(ev.New)
		if err != nil {
			return err
		}
		if _, exists := m.records[id]; exists {
			m.records[id] = ev.New
		}

	case EventDelete:
		id, err := rowID(ev.Old)
		if err != nil {
			return err
		}
		if _, exists := m.records[id]; !exists {
			return nil
		}
		delete(m.records, id)
		for i, v := range m.order {
			if v == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

// Len returns the number of rows.
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Rows returns the rows in mirror order.
func (m *Mirror) Rows() []json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]json.RawMessage, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out
}

// Decode unmarshals every row into a slice pointed to by dst.
func (m *Mirror) Decode(dst interface{}) error {
	raw, err := json.Marshal(m.Rows())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func rowID(row json.RawMessage) (string, error) {
	var v idOnly
	if err := json.Unmarshal(row, &v); err != nil {
		return "", fmt.Errorf("decode row id: %w", err)
	}
	if v.ID == "" {
		return "", fmt.Errorf("row has no id")
	}
	return v.ID, nil
}
