// Package codec implements the key-segment encoding that makes raw
// memcmp yield the correct semantic ordering across signed and
// endian-varying integer fields (spec.md §4.1).
package codec

import (
	"encoding/binary"
	"fmt"
)

// SegmentType identifies the Go type a key segment was extracted from.
// Values are persisted in the key-descriptor block and must not change.
type SegmentType uint8

const (
	TypeBytes SegmentType = 1 // u8-bytes, treated as an opaque byte string
	TypeS16   SegmentType = 2
	TypeU16   SegmentType = 3
	TypeS32   SegmentType = 4
	TypeU32   SegmentType = 5
)

// SegmentSize reports whether declaredSize is a valid size for a segment
// of type t: 2 for TypeS16/TypeU16, 4 for TypeS32/TypeU32. TypeBytes
// segments may be any size greater than zero.
func SegmentSize(t SegmentType, declaredSize int) (ok bool) {
	switch t {
	case TypeBytes:
		return declaredSize > 0
	case TypeS16, TypeU16:
		return declaredSize == 2
	case TypeS32, TypeU32:
		return declaredSize == 4
	default:
		return false
	}
}

// EncodeSegment transforms a key segment in place so that, for any two
// values a and b of the same type, memcmp(Encode(a), Encode(b)) has the
// sign of a-b (spec.md §4.1):
//
//   - TypeBytes: identity, compared lexicographically as-is.
//   - TypeU16/TypeU32: big-endian (the on-disk control structures are
//     little-endian; the encoded-key stream deliberately is not).
//   - TypeS16/TypeS32: sign bit flipped (bias by 2^(n-1)), then the
//     unsigned rule.
//
// seg must have exactly the length SegmentSize validates for t.
func EncodeSegment(seg []byte, t SegmentType) error {
	switch t {
	case TypeBytes:
		return nil
	case TypeS16:
		if len(seg) != 2 {
			return fmt.Errorf("codec: s16 segment must be 2 bytes, got %d", len(seg))
		}
		v := binary.LittleEndian.Uint16(seg)
		v += 0x8000
		binary.BigEndian.PutUint16(seg, v)
		return nil
	case TypeU16:
		if len(seg) != 2 {
			return fmt.Errorf("codec: u16 segment must be 2 bytes, got %d", len(seg))
		}
		v := binary.LittleEndian.Uint16(seg)
		binary.BigEndian.PutUint16(seg, v)
		return nil
	case TypeS32:
		if len(seg) != 4 {
			return fmt.Errorf("codec: s32 segment must be 4 bytes, got %d", len(seg))
		}
		v := binary.LittleEndian.Uint32(seg)
		v += 0x80000000
		binary.BigEndian.PutUint32(seg, v)
		return nil
	case TypeU32:
		if len(seg) != 4 {
			return fmt.Errorf("codec: u32 segment must be 4 bytes, got %d", len(seg))
		}
		v := binary.LittleEndian.Uint32(seg)
		binary.BigEndian.PutUint32(seg, v)
		return nil
	default:
		return fmt.Errorf("codec: unknown segment type %d", t)
	}
}

// Segment describes where and how to extract one key segment from a
// record buffer.
type Segment struct {
	Offset int
	Type   SegmentType
	Size   int
}

// EncodeKey builds the composite encoded key for a descriptor by copying
// each segment's bytes out of record (at the record-relative offsets the
// descriptor specifies) and running EncodeSegment on each, concatenating
// the results in descriptor order. Every segment must lie fully within
// record[:dataSize]; otherwise EncodeKey fails so the caller can report
// RECORD_TOO_SMALL.
func EncodeKey(record []byte, dataSize int, segments []Segment) ([]byte, error) {
	totalSize := 0
	for _, s := range segments {
		totalSize += s.Size
	}

	out := make([]byte, totalSize)
	pos := 0
	for _, s := range segments {
		if s.Offset+s.Size > dataSize {
			return nil, fmt.Errorf("codec: segment [%d:%d] exceeds record data size %d", s.Offset, s.Offset+s.Size, dataSize)
		}
		copy(out[pos:pos+s.Size], record[s.Offset:s.Offset+s.Size])
		if err := EncodeSegment(out[pos:pos+s.Size], s.Type); err != nil {
			return nil, err
		}
		pos += s.Size
	}

	return out, nil
}

// ValidPartialLength reports whether truncating a composite encoded key of
// the given segments to length p falls on a segment boundary or inside a
// TypeBytes segment (spec.md §4.1: a truncation inside a multi-byte
// integer segment is INVALID_KEY).
func ValidPartialLength(segments []Segment, p int) bool {
	offset := 0
	for _, s := range segments {
		end := offset + s.Size
		if p == offset || p == end {
			return true
		}
		if p > offset && p < end {
			return s.Type == TypeBytes
		}
		offset = end
	}
	return false
}
