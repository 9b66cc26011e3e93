package ndxstore

import (
	"ndxstore/internal/codec"
	"ndxstore/internal/layout"
)

// SegmentType is the type tag of one key segment, exported so callers can
// build KeyDescriptor values without importing an internal package.
type SegmentType = codec.SegmentType

const (
	TypeBytes SegmentType = codec.TypeBytes
	TypeS16   SegmentType = codec.TypeS16
	TypeU16   SegmentType = codec.TypeU16
	TypeS32   SegmentType = codec.TypeS32
	TypeU32   SegmentType = codec.TypeU32
)

// KeySegment describes one field a key is built from: its byte range
// within a record buffer, and how that range should be encoded (spec.md
// §3, §4.1).
type KeySegment struct {
	Offset int
	Type   SegmentType
	Size   int
}

// KeyDescriptor is the ordered list of segments that make up one search
// key. Segment order determines the order segments are concatenated into
// the encoded key.
type KeyDescriptor []KeySegment

// validateKeyDescriptors checks every descriptor for type/size consistency
// and intra-descriptor segment overlap (spec.md §4.4). Ranges may overlap
// across different descriptors.
func validateKeyDescriptors(descriptors []KeyDescriptor) error {
	if len(descriptors) == 0 {
		return newError(CodeInvalidKeyDescriptor, "key descriptor: at least one key is required")
	}

	for i, d := range descriptors {
		if len(d) == 0 {
			return newError(CodeInvalidKeyDescriptor, "key descriptor %d: has no segments", i)
		}

		for _, seg := range d {
			if !codec.SegmentSize(seg.Type, seg.Size) {
				return newError(CodeInvalidKeyDescriptor, "key descriptor %d: segment at offset %d has size %d invalid for its type", i, seg.Offset, seg.Size)
			}
		}

		if overlaps(d) {
			return newError(CodeInvalidKeyDescriptor, "key descriptor %d: segments overlap", i)
		}
	}

	return nil
}

// overlaps reports whether any two segments of d occupy the same
// record-byte range.
func overlaps(d KeyDescriptor) bool {
	for i := 0; i < len(d); i++ {
		aStart, aEnd := d[i].Offset, d[i].Offset+d[i].Size-1
		for j := i + 1; j < len(d); j++ {
			bStart, bEnd := d[j].Offset, d[j].Offset+d[j].Size-1
			if aStart <= bEnd && bStart <= aEnd {
				return true
			}
		}
	}
	return false
}

func toCodecSegments(d KeyDescriptor) []codec.Segment {
	out := make([]codec.Segment, len(d))
	for i, s := range d {
		out[i] = codec.Segment{Offset: s.Offset, Type: s.Type, Size: s.Size}
	}
	return out
}

func toLayoutSegments(d KeyDescriptor) []layout.Segment {
	out := make([]layout.Segment, len(d))
	for i, s := range d {
		out[i] = layout.Segment{Offset: uint16(s.Offset), Type: uint8(s.Type), Size: uint8(s.Size)}
	}
	return out
}

func fromLayoutSegments(d []layout.Segment) KeyDescriptor {
	out := make(KeyDescriptor, len(d))
	for i, s := range d {
		out[i] = KeySegment{Offset: int(s.Offset), Type: SegmentType(s.Type), Size: int(s.Size)}
	}
	return out
}

func descriptorKeySize(d KeyDescriptor) int {
	n := 0
	for _, s := range d {
		n += s.Size
	}
	return n
}
