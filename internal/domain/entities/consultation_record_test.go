package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConsultationRecord_EditableAt(t *testing.T) {
	created := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	record := &ConsultationRecord{ID: 1, CreatedAt: created}

	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"just created", 0, true},
		{"one hour later", time.Hour, true},
		{"exactly at the boundary", 24 * time.Hour, true},
		{"one nanosecond past", 24*time.Hour + time.Nanosecond, false},
		{"one second past", 24*time.Hour + time.Second, false},
		{"a week later", 7 * 24 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, record.EditableAt(created.Add(tt.elapsed), DefaultEditWindow))
		})
	}
}
