package link

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics contains atomic counters for a Link.
// Counters can be used as the value of a prometheus CounterFunc.
type Metrics struct {
	// FramesSent counts every frame written to the channel, retransmissions included.
	FramesSent atomic.Uint64
	// FramesReceived counts every valid frame recognized on the channel.
	FramesReceived atomic.Uint64
	// Retransmissions counts frames re-sent after a timeout or a REJ.
	Retransmissions atomic.Uint64
	// FramesRejected counts candidate frames dropped by the synchronizer.
	FramesRejected atomic.Uint64
	// Timeouts counts exchanges that exhausted their retry budget.
	Timeouts atomic.Uint64
	// DuplicatesReceived counts information frames discarded as already delivered.
	DuplicatesReceived atomic.Uint64
	// RejectsSent counts REJ frames issued by the receiver.
	RejectsSent atomic.Uint64
	// PayloadBytesSent counts acknowledged payload bytes.
	PayloadBytesSent atomic.Uint64
	// PayloadBytesReceived counts delivered payload bytes.
	PayloadBytesReceived atomic.Uint64
}

func (m *Metrics) incFramesSent()         { m.FramesSent.Add(1) }
func (m *Metrics) incFramesReceived()     { m.FramesReceived.Add(1) }
func (m *Metrics) incRetransmissions()    { m.Retransmissions.Add(1) }
func (m *Metrics) incFramesRejected()     { m.FramesRejected.Add(1) }
func (m *Metrics) incTimeouts()           { m.Timeouts.Add(1) }
func (m *Metrics) incDuplicatesReceived() { m.DuplicatesReceived.Add(1) }
func (m *Metrics) incRejectsSent()        { m.RejectsSent.Add(1) }

func (m *Metrics) addPayloadSent(n int)     { m.PayloadBytesSent.Add(uint64(n)) }
func (m *Metrics) addPayloadReceived(n int) { m.PayloadBytesReceived.Add(uint64(n)) }

// Statistics is a point-in-time copy of a Link's counters.
type Statistics struct {
	FramesSent           uint64
	FramesReceived       uint64
	Retransmissions      uint64
	FramesRejected       uint64
	Timeouts             uint64
	DuplicatesReceived   uint64
	RejectsSent          uint64
	PayloadBytesSent     uint64
	PayloadBytesReceived uint64

	// Establishment is the time the SET/UA handshake took.
	Establishment time.Duration
	// Uptime is the time since the link reached Open.
	Uptime time.Duration
}

func (m *Metrics) snapshot() Statistics {
	return Statistics{
		FramesSent:           m.FramesSent.Load(),
		FramesReceived:       m.FramesReceived.Load(),
		Retransmissions:      m.Retransmissions.Load(),
		FramesRejected:       m.FramesRejected.Load(),
		Timeouts:             m.Timeouts.Load(),
		DuplicatesReceived:   m.DuplicatesReceived.Load(),
		RejectsSent:          m.RejectsSent.Load(),
		PayloadBytesSent:     m.PayloadBytesSent.Load(),
		PayloadBytesReceived: m.PayloadBytesReceived.Load(),
	}
}

// String renders the statistics as an aligned, multi-line report.
func (s Statistics) String() string {
	var sb strings.Builder

	rows := []struct {
		name  string
		value any
	}{
		{"frames sent", s.FramesSent},
		{"frames received", s.FramesReceived},
		{"retransmissions", s.Retransmissions},
		{"frames rejected", s.FramesRejected},
		{"timeouts", s.Timeouts},
		{"duplicates received", s.DuplicatesReceived},
		{"REJ sent", s.RejectsSent},
		{"payload bytes sent", s.PayloadBytesSent},
		{"payload bytes received", s.PayloadBytesReceived},
		{"establishment", s.Establishment.Round(time.Microsecond)},
		{"uptime", s.Uptime.Round(time.Millisecond)},
	}
	for _, r := range rows {
		fmt.Fprintf(&sb, "%-23s %v\n", r.name+":", r.value)
	}

	return sb.String()
}
