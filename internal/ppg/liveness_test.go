package ppg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sample Sample
		want   bool
	}{
		{"fingertip channel ordering", Sample{Red: 200, Green: 100, Blue: 50}, true},
		{"no red dominance", Sample{Red: 100, Green: 100, Blue: 100}, false},
		{"green not above blue", Sample{Red: 200, Green: 50, Blue: 180}, false},
		{"red below blue", Sample{Red: 90, Green: 80, Blue: 100}, false},
		{"ratio too low", Sample{Red: 120, Green: 110, Blue: 100}, false},
		{"zero blue treated as one", Sample{Red: 200, Green: 100, Blue: 0}, true},
		{"dark frame", Sample{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLive(tt.sample))
		})
	}
}
