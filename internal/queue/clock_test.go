package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinutesOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"00:00", 0},
		{"08:30", 510},
		{"09:00", 540},
		{"23:59", 1439},
		{"08:30:45", 510},
		{"2024-03-05T08:30:00", 510},
		{"2024-03-05 14:15", 855},
		{" 10:05 ", 605},
		{"", 0},
		{"2024-03-05", 0},
		{"no es hora", 0},
		{"25:00", 0},
		{"12:75", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, minutesOfDay(tt.in), "input %q", tt.in)
	}
}
