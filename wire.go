package dcp

import "encoding/binary"

// Wire layout (big-endian, 24 bytes total, matching MSS = MTU - 24):
//
//	offset  size  field
//	0       4     conv_id
//	4       1     cmd
//	5       1     frg
//	6       2     wnd
//	8       4     ts
//	12      4     sn
//	16      4     una
//	20      4     len
//	24      len   payload
//
// See DESIGN.md for why cmd/frg/wnd are packed narrower than 32 bits
// instead of the naive 8x32-bit reading, which would total 32 bytes and
// contradict the 24-byte overhead used throughout for MTU/MSS accounting.

// encodeSegment appends the wire representation of seg to buf and returns
// the extended slice.
func encodeSegment(buf []byte, seg *Segment) []byte {
	var hdr [headerSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], seg.ConvID)
	hdr[4] = byte(seg.Cmd)
	hdr[5] = byte(seg.Frg)
	binary.BigEndian.PutUint16(hdr[6:8], uint16(seg.Wnd))
	binary.BigEndian.PutUint32(hdr[8:12], seg.TS)
	binary.BigEndian.PutUint32(hdr[12:16], seg.SN)
	binary.BigEndian.PutUint32(hdr[16:20], seg.UNA)
	binary.BigEndian.PutUint32(hdr[20:24], uint32(len(seg.Data)))
	buf = append(buf, hdr[:]...)
	buf = append(buf, seg.Data...)
	return buf
}

// decodeSegment parses a wire datagram into seg. It returns a RejectError if
// the datagram is shorter than the fixed header or if the declared payload
// length does not match the remaining bytes. decodeSegment does not check
// conv_id; callers compare ConvID against their own control block.
func decodeSegment(data []byte, seg *Segment) error {
	if len(data) < headerSize {
		return errShortHeader
	}
	seg.ConvID = binary.BigEndian.Uint32(data[0:4])
	seg.Cmd = Command(data[4])
	seg.Frg = uint32(data[5])
	seg.Wnd = uint32(binary.BigEndian.Uint16(data[6:8]))
	seg.TS = binary.BigEndian.Uint32(data[8:12])
	seg.SN = binary.BigEndian.Uint32(data[12:16])
	seg.UNA = binary.BigEndian.Uint32(data[16:20])
	declaredLen := binary.BigEndian.Uint32(data[20:24])
	payload := data[headerSize:]
	if int(declaredLen) != len(payload) {
		return errBadLength
	}
	seg.Data = payload
	return nil
}
