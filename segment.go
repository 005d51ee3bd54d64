package dcp

import "fmt"

// Command identifies the purpose of a segment. Commands are encoded on the
// wire as a single byte but only three values are ever recognised; any
// other value is accepted by the wire codec but ignored by Input.
type Command uint32

const (
	CmdPush  Command = 81 // 0x51 - carries a payload fragment.
	CmdAck   Command = 82 // 0x52 - carries no payload, only window/una.
	CmdProbe Command = 85 // 0x55 - reserved, recognised but has no defined effect.
)

func (c Command) String() string {
	switch c {
	case CmdPush:
		return "PUSH"
	case CmdAck:
		return "ACK"
	case CmdProbe:
		return "PROBE"
	default:
		return fmt.Sprintf("CMD(%d)", uint32(c))
	}
}

// headerSize is the fixed wire size of a segment header, not counting the
// payload. See wire.go for the exact field layout.
const headerSize = 24

// Segment is the unit of transmission: a 24-byte header plus payload bytes.
// A Segment participates in exactly one of a ControlBlock's four ordered
// segment sequences at a time (send-queue, send-buffer, receive-buffer,
// receive-queue).
type Segment struct {
	ConvID uint32
	Cmd    Command
	Frg    uint32 // fragment-remaining count; 0 marks the last fragment of a message.
	Wnd    uint32 // advertised receive window, in segments.
	TS     uint32 // sender timestamp; echoed by ACK for RTT sampling.
	SN     uint32 // per-direction sequence number.
	UNA    uint32 // sender's current cumulative-ACK: lowest unacked SN.
	Data   []byte

	// Transmission bookkeeping. Never placed on the wire.
	RTO     uint32 // current retransmission timeout for this segment.
	FastAck uint32 // count of higher-SN acknowledgements observed.
	Xmit    uint32 // transmission attempt count.
}

// Len returns the payload length in bytes.
func (s *Segment) Len() int { return len(s.Data) }

// wireSize returns the total encoded size of the segment: header + payload.
func (s *Segment) wireSize() int { return headerSize + len(s.Data) }

// isLastFragment reports whether s is the final fragment of its message.
func (s *Segment) isLastFragment() bool { return s.Frg == 0 }
