package filter

import (
	"testing"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/stretchr/testify/assert"
)

func TestCriteria_Matches(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &bus.Message{ID: "m1", Type: bus.TypeTaskStarted, Source: "w1", Timestamp: bus.At(base)}

	tests := []struct {
		name     string
		criteria Criteria
		want     bool
	}{
		{"no filters", Criteria{}, true},
		{"type glob match", Criteria{TypeGlob: "TASK_*"}, true},
		{"type glob miss", Criteria{TypeGlob: "LOCK_*"}, false},
		{"exact type", Criteria{TypeGlob: "TASK_STARTED"}, true},
		{"source match", Criteria{Source: "w1"}, true},
		{"source miss", Criteria{Source: "w2"}, false},
		{"since before", Criteria{Since: base.Add(-time.Minute)}, true},
		{"since after", Criteria{Since: base.Add(time.Minute)}, false},
		{"until after", Criteria{Until: base.Add(time.Minute)}, true},
		{"until before", Criteria{Until: base.Add(-time.Minute)}, false},
		{"inclusive bounds", Criteria{Since: base, Until: base}, true},
		{"all combined", Criteria{TypeGlob: "TASK_*", Source: "w1", Since: base.Add(-time.Hour)}, true},
		{"malformed glob", Criteria{TypeGlob: "[TASK"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Matches(msg))
		})
	}
}

func TestCriteria_NoTimestamp(t *testing.T) {
	msg := &bus.Message{ID: "m1", Type: "CUSTOM"}
	c := Criteria{Since: time.Now()}
	assert.False(t, c.Matches(msg))
}

func TestCriteria_HasFiltersAndValidate(t *testing.T) {
	assert.False(t, (&Criteria{}).HasFilters())
	assert.True(t, (&Criteria{Source: "w1"}).HasFilters())
	assert.True(t, (&Criteria{Until: time.Now()}).HasFilters())

	assert.NoError(t, (&Criteria{TypeGlob: "TASK_*"}).Validate())
	assert.Error(t, (&Criteria{TypeGlob: "[TASK"}).Validate())
}
