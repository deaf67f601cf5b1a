// Package link implements a stop-and-wait data-link protocol over a raw byte
// channel such as a serial line.
//
// # Protocol Overview
//
// Two peers with fixed roles share one channel. The transmitter opens the
// link with SET and the receiver answers UA. Each payload then travels in one
// information frame carrying a one-bit sequence number Ns; the receiver
// answers RR(Ns+1) when it accepts the frame, REJ(Ns) when the payload is
// corrupt, and RR again for a retransmitted frame it already delivered. The
// transmitter releases the link with DISC, the receiver echoes DISC, and the
// transmitter confirms with UA.
//
// Frame layouts and the byte-level synchronizer live in package frame.
//
// # Timeouts and Retries
//
// Every request waits Timeout for its answer and is re-sent up to MaxRetries
// times; after that the operation fails with ErrTimeout. Reads are bounded by
// PollInterval so that deadlines and Close are observed promptly even when
// the channel is silent.
//
//	cfg, _ := link.NewConfig(link.WithTimeout(time.Second), link.WithMaxRetries(3))
//	l, err := link.Open(ctx, port, cfg)
//	if err != nil {
//		return err
//	}
//	defer l.Close()
//
//	err = l.Send(ctx, []byte("Hello"))
//
// # Channels
//
// A Channel is any byte stream with a bounded read. Backends for serial
// devices, raw termios, network connections and in-memory pairs are in the
// channel/ subpackages. A Channel backs at most one open Link at a time.
package link
