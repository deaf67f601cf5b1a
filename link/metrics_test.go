package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Snapshot(t *testing.T) {
	var m Metrics
	m.incFramesSent()
	m.incFramesSent()
	m.incFramesReceived()
	m.incRetransmissions()
	m.incFramesRejected()
	m.incTimeouts()
	m.incDuplicatesReceived()
	m.incRejectsSent()
	m.addPayloadSent(10)
	m.addPayloadReceived(7)

	s := m.snapshot()
	assert.Equal(t, Statistics{
		FramesSent:           2,
		FramesReceived:       1,
		Retransmissions:      1,
		FramesRejected:       1,
		Timeouts:             1,
		DuplicatesReceived:   1,
		RejectsSent:          1,
		PayloadBytesSent:     10,
		PayloadBytesReceived: 7,
	}, s)
}

func TestStatistics_String(t *testing.T) {
	s := Statistics{FramesSent: 4, Retransmissions: 3, Establishment: 1500 * time.Microsecond}
	out := s.String()

	assert.Contains(t, out, "frames sent:            4\n")
	assert.Contains(t, out, "retransmissions:        3\n")
	assert.Contains(t, out, "establishment:          1.5ms\n")
}
