package layout

import "encoding/binary"

// DataRecordHeader introduces every frame in the store file (spec.md §6):
// the header frame, each reserved index block, the NEXT_INDEX sentinel
// that chains index blocks together, and every data/deleted-data frame
// on the data heap.
type DataRecordHeader struct {
	ID            int32  // one of the RecordID* constants, or >= RecordIDData for DATA frames
	RecordRef     uint32 // verification reference, matched against the owning IndexSlot
	SizeOrNextIdx uint32 // payload size for DATA/DELETED_DATA, or next index-block offset for NEXT_INDEX
	Offset        uint32 // byte offset of the record that follows this one
}

// Bytes encodes the header to its fixed-size on-disk little-endian form.
func (d DataRecordHeader) Bytes() []byte {
	buf := make([]byte, DataRecordHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(d.ID))
	binary.LittleEndian.PutUint32(buf[4:], d.RecordRef)
	binary.LittleEndian.PutUint32(buf[8:], d.SizeOrNextIdx)
	binary.LittleEndian.PutUint32(buf[12:], d.Offset)
	return buf
}

// DataRecordHeaderFromBytes decodes a DataRecordHeader from its fixed-size
// on-disk form.
func DataRecordHeaderFromBytes(buf []byte) DataRecordHeader {
	return DataRecordHeader{
		ID:            int32(binary.LittleEndian.Uint32(buf[0:])),
		RecordRef:     binary.LittleEndian.Uint32(buf[4:]),
		SizeOrNextIdx: binary.LittleEndian.Uint32(buf[8:]),
		Offset:        binary.LittleEndian.Uint32(buf[12:]),
	}
}
