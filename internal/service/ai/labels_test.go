package ai

import "testing"

func TestClassLabel(t *testing.T) {
	tests := []struct {
		id   int
		want string
	}{
		{1, "person"},
		{3, "car"},
		{10, "traffic light"},
		{12, "unknown12"},
		{999, "unknown999"},
	}
	for _, tt := range tests {
		if got := ClassLabel(tt.id); got != tt.want {
			t.Errorf("ClassLabel(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
