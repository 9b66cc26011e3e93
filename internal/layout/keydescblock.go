package layout

import "encoding/binary"

// Segment is the on-disk shape of one key-segment descriptor entry:
// offset(u16), type(u8), size(u8).
type Segment struct {
	Offset uint16
	Type   uint8
	Size   uint8
}

// SegmentSize is the fixed on-disk size of one Segment entry.
const SegmentSize = 4

// EncodeKeyDescriptors serializes the key-descriptor block that follows the
// header frame: for each descriptor, nrOfSegments(u16) followed by that
// many Segment entries.
func EncodeKeyDescriptors(descriptors [][]Segment) []byte {
	size := 0
	for _, d := range descriptors {
		size += 2 + len(d)*SegmentSize
	}

	buf := make([]byte, size)
	pos := 0
	for _, d := range descriptors {
		binary.LittleEndian.PutUint16(buf[pos:], uint16(len(d)))
		pos += 2
		for _, seg := range d {
			binary.LittleEndian.PutUint16(buf[pos:], seg.Offset)
			buf[pos+2] = seg.Type
			buf[pos+3] = seg.Size
			pos += SegmentSize
		}
	}

	return buf
}

// DecodeKeyDescriptors deserializes nrOfKeys descriptors from the start of
// buf, returning the descriptors and the number of bytes consumed.
func DecodeKeyDescriptors(buf []byte, nrOfKeys int) (descriptors [][]Segment, consumed int) {
	descriptors = make([][]Segment, nrOfKeys)
	pos := 0
	for i := 0; i < nrOfKeys; i++ {
		nrOfSegments := int(binary.LittleEndian.Uint16(buf[pos:]))
		pos += 2

		segs := make([]Segment, nrOfSegments)
		for j := 0; j < nrOfSegments; j++ {
			segs[j] = Segment{
				Offset: binary.LittleEndian.Uint16(buf[pos:]),
				Type:   buf[pos+2],
				Size:   buf[pos+3],
			}
			pos += SegmentSize
		}
		descriptors[i] = segs
	}

	return descriptors, pos
}

// KeyDescriptorBlockSize computes the on-disk size of the key-descriptor
// block for the given descriptors, matching EncodeKeyDescriptors.
func KeyDescriptorBlockSize(descriptors [][]Segment) uint16 {
	size := 0
	for _, d := range descriptors {
		size += 2 + len(d)*SegmentSize
	}
	return uint16(size)
}
