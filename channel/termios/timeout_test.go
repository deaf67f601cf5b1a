package termios

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadControl(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		vmin    uint8
		vtime   uint8
	}{
		{timeout: -1, vmin: 1, vtime: 0},
		{timeout: 0, vmin: 0, vtime: 0},
		{timeout: time.Millisecond, vmin: 0, vtime: 1},
		{timeout: 50 * time.Millisecond, vmin: 0, vtime: 1},
		{timeout: 100 * time.Millisecond, vmin: 0, vtime: 1},
		{timeout: 101 * time.Millisecond, vmin: 0, vtime: 2},
		{timeout: 3 * time.Second, vmin: 0, vtime: 30},
		{timeout: time.Minute, vmin: 0, vtime: 255},
	}

	for _, tt := range tests {
		t.Run(tt.timeout.String(), func(t *testing.T) {
			vmin, vtime := readControl(tt.timeout)
			assert.Equal(t, tt.vmin, vmin)
			assert.Equal(t, tt.vtime, vtime)
		})
	}
}
