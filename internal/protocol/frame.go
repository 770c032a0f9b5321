// Package protocol implements the framed binary IPC codec shared by every
// zmx socket: a tag byte, a little-endian u32 length, and a payload.
package protocol

import (
	"encoding/binary"

	"github.com/neurosnap/zmx-sub000/internal/zmxerr"
)

// Tag identifies the meaning of a frame's payload.
type Tag uint8

const (
	TagInput      Tag = 0
	TagOutput     Tag = 1
	TagResize     Tag = 2
	TagInit       Tag = 3
	TagDetach     Tag = 4
	TagDetachAll  Tag = 5
	TagKill       Tag = 6
	TagInfo       Tag = 7
)

// HeaderLen is the fixed byte length of tag + length preceding every
// frame's payload.
const HeaderLen = 5

// MaxPayload bounds a single frame's payload to guard against a
// malicious or corrupt length field forcing unbounded buffering.
const MaxPayload = 16 << 20 // 16 MiB

// Frame is one decoded wire unit. Payload aliases the decoder's internal
// buffer and is only valid until the next Feed call.
type Frame struct {
	Tag     Tag
	Payload []byte
}

// Encode appends the wire representation of (tag, payload) to dst and
// returns the extended slice. It performs no allocation beyond what
// append needs to grow dst.
func Encode(dst []byte, tag Tag, payload []byte) []byte {
	var hdr [HeaderLen]byte
	hdr[0] = byte(tag)
	binary.LittleEndian.PutUint32(hdr[1:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	return dst
}

// ResizePayload encodes a Resize/Init payload: rows then cols, both
// little-endian u16.
func ResizePayload(rows, cols uint16) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], rows)
	binary.LittleEndian.PutUint16(buf[2:4], cols)
	return buf
}

// DecodeResizePayload parses the payload written by ResizePayload.
func DecodeResizePayload(payload []byte) (rows, cols uint16, ok bool) {
	if len(payload) < 4 {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint16(payload[0:2]), binary.LittleEndian.Uint16(payload[2:4]), true
}

// InfoPayload encodes an Info response: client count then supervisor pid.
func InfoPayload(clients uint32, pid int32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], clients)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(pid))
	return buf
}

// DecodeInfoPayload parses the payload written by InfoPayload.
func DecodeInfoPayload(payload []byte) (clients uint32, pid int32, ok bool) {
	if len(payload) < 8 {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint32(payload[0:4]), int32(binary.LittleEndian.Uint32(payload[4:8])), true
}

// Decoder accumulates bytes read from a connection and yields complete
// frames. A returned Frame's Payload aliases the decoder's internal
// buffer and is valid only until the next Feed call, at which point the
// already-consumed prefix is compacted away in O(n); callers that need a
// payload to outlive the next read must copy it themselves.
type Decoder struct {
	buf      []byte
	consumed int
}

// Feed appends newly-read bytes to the decoder's internal buffer,
// compacting away any already-decoded prefix first.
func (d *Decoder) Feed(b []byte) {
	if d.consumed > 0 {
		copy(d.buf, d.buf[d.consumed:])
		d.buf = d.buf[:len(d.buf)-d.consumed]
		d.consumed = 0
	}
	d.buf = append(d.buf, b...)
}

// Decode returns the next complete frame, if one is buffered. ok is
// false when more bytes are needed. err is non-nil only for a
// *zmxerr.ProtocolError (oversized length); the caller must close the
// connection in that case.
func (d *Decoder) Decode() (frame Frame, ok bool, err error) {
	avail := d.buf[d.consumed:]
	if len(avail) < HeaderLen {
		return Frame{}, false, nil
	}
	tag := Tag(avail[0])
	length := binary.LittleEndian.Uint32(avail[1:HeaderLen])
	if length > MaxPayload {
		return Frame{}, false, &zmxerr.ProtocolError{
			Reason: "frame length exceeds maximum payload size",
		}
	}
	total := HeaderLen + int(length)
	if len(avail) < total {
		return Frame{}, false, nil
	}
	payload := avail[HeaderLen:total]
	d.consumed += total
	return Frame{Tag: tag, Payload: payload}, true, nil
}

// Pending reports how many bytes are buffered awaiting a complete frame.
func (d *Decoder) Pending() int {
	return len(d.buf) - d.consumed
}
