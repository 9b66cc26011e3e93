package layout

import "encoding/binary"

// HeaderSize is the fixed on-disk size of a Header, not including the
// key-descriptor block that immediately follows it.
const HeaderSize = 4 + 4 + 4 + 4 + 4 + 4 + 4 + 2 + 2 + 2 + 2

// Header is the database header frame (spec.md §3, §6). It is kept as a
// plain value type; callers own where it lives (on disk, or mirrored in
// a Store's in-memory handle).
type Header struct {
	Version              uint32
	RecordReference      uint32 // monotonically increasing, never reused
	NextFreeData         uint32 // offset to the next free data position
	NrOfRecords          uint32 // number of live (status OK) slots
	NrOfIndexRecords     uint32 // total allocated slots, always a multiple of ReservedIndexRecords
	LastDeletedIndex     int32  // head of the deleted-slot free list, or DeletedListEnd
	NextFreeIndex        uint32 // ordinal of the next never-yet-used RESERVED slot
	ReservedIndexRecords uint16
	NrOfKeys             uint16
	TotalKeySize         uint16 // sum of all key descriptor segment sizes
	KeyDescriptorSize    uint16 // on-disk size of the key-descriptor block
}

// Bytes encodes the header to its fixed-size on-disk little-endian form.
func (h Header) Bytes() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Version)
	binary.LittleEndian.PutUint32(buf[4:], h.RecordReference)
	binary.LittleEndian.PutUint32(buf[8:], h.NextFreeData)
	binary.LittleEndian.PutUint32(buf[12:], h.NrOfRecords)
	binary.LittleEndian.PutUint32(buf[16:], h.NrOfIndexRecords)
	binary.LittleEndian.PutUint32(buf[20:], uint32(h.LastDeletedIndex))
	binary.LittleEndian.PutUint32(buf[24:], h.NextFreeIndex)
	binary.LittleEndian.PutUint16(buf[28:], h.ReservedIndexRecords)
	binary.LittleEndian.PutUint16(buf[30:], h.NrOfKeys)
	binary.LittleEndian.PutUint16(buf[32:], h.TotalKeySize)
	binary.LittleEndian.PutUint16(buf[34:], h.KeyDescriptorSize)
	return buf
}

// HeaderFromBytes decodes a Header from its fixed-size on-disk form.
func HeaderFromBytes(buf []byte) Header {
	return Header{
		Version:              binary.LittleEndian.Uint32(buf[0:]),
		RecordReference:      binary.LittleEndian.Uint32(buf[4:]),
		NextFreeData:         binary.LittleEndian.Uint32(buf[8:]),
		NrOfRecords:          binary.LittleEndian.Uint32(buf[12:]),
		NrOfIndexRecords:     binary.LittleEndian.Uint32(buf[16:]),
		LastDeletedIndex:     int32(binary.LittleEndian.Uint32(buf[20:])),
		NextFreeIndex:        binary.LittleEndian.Uint32(buf[24:]),
		ReservedIndexRecords: binary.LittleEndian.Uint16(buf[28:]),
		NrOfKeys:             binary.LittleEndian.Uint16(buf[30:]),
		TotalKeySize:         binary.LittleEndian.Uint16(buf[32:]),
		KeyDescriptorSize:    binary.LittleEndian.Uint16(buf[34:]),
	}
}
