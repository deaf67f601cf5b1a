// Package frame implements the wire format of the data-link protocol and the
// byte-level synchronizer that recovers frames from a raw serial stream.
//
// # Wire Format
//
// Every frame is delimited by the flag byte 0x7E:
//
//	control frame:     FLAG A C BCC1 FLAG
//	information frame: FLAG A C BCC1 D1 ... Dn BCC2 FLAG
//
// BCC1 is A XOR C and BCC2 is the XOR of all payload bytes. Addresses
// identify the peer that issued the frame: 0x03 for the transmitter and 0x01
// for the receiver.
//
// Control bytes:
//
//   - SET (0x03), UA (0x07), DISC (0x0B): link establishment and release
//   - I0 (0x00), I1 (0x40): information frames, Ns in bit 6
//   - RR0 (0x05), RR1 (0x85): positive acknowledgment, Nr in bit 7
//   - REJ0 (0x01), REJ1 (0x81): negative acknowledgment, Nr in bit 7
//
// No byte stuffing is performed. Payloads containing the flag value, or whose
// checksum equals it, cannot be framed and are rejected by EncodeInformation.
//
// # Synchronizer
//
// A Synchronizer consumes one byte at a time and reports NeedMore, FrameReady
// or Discarded. Corrupted input is always absorbed as Discarded; it never
// surfaces as a frame and never stops the machine from locking onto the next
// flag.
package frame
