package layout

import "encoding/binary"

// IndexSlot is the fixed-size on-disk tuple that precedes an encoded key in
// an index block (spec.md §3, §6). The original C source overloads a
// single signed field for both status and free-list pointer; here the two
// readings are kept explicit but still persisted through the same Status
// field for on-disk compatibility with that layout, per spec.md §9.
type IndexSlot struct {
	Status     int32  // StatusReserved, StatusOK, or (if deleted) the previous deleted slot id, or DeletedListEnd
	Offset     uint32 // byte offset of this index slot in the file
	DataOffset uint32 // byte offset of the data record this slot points at
	DataSize   uint32 // size of the live payload at DataOffset
	RecordRef  uint32 // verification reference, matched against the data record
}

// IsReserved reports whether the slot has never been used.
func (s IndexSlot) IsReserved() bool { return s.Status == StatusReserved }

// IsOK reports whether the slot holds a live record.
func (s IndexSlot) IsOK() bool { return s.Status == StatusOK }

// IsDeleted reports whether the slot is on the deleted-slot free list,
// including the tail slot whose previous-in-list pointer is DeletedListEnd.
func (s IndexSlot) IsDeleted() bool { return s.Status >= 0 || s.Status == DeletedListEnd }

// PrevDeleted returns the previous entry in the deleted-slot free list.
// Only meaningful when IsDeleted is true; DeletedListEnd terminates the
// list.
func (s IndexSlot) PrevDeleted() int32 { return s.Status }

// Bytes encodes the slot to its fixed-size on-disk little-endian form.
func (s IndexSlot) Bytes() []byte {
	buf := make([]byte, IndexSlotSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(s.Status))
	binary.LittleEndian.PutUint32(buf[4:], s.Offset)
	binary.LittleEndian.PutUint32(buf[8:], s.DataOffset)
	binary.LittleEndian.PutUint32(buf[12:], s.DataSize)
	binary.LittleEndian.PutUint32(buf[16:], s.RecordRef)
	return buf
}

// IndexSlotFromBytes decodes an IndexSlot from its fixed-size on-disk form.
func IndexSlotFromBytes(buf []byte) IndexSlot {
	return IndexSlot{
		Status:     int32(binary.LittleEndian.Uint32(buf[0:])),
		Offset:     binary.LittleEndian.Uint32(buf[4:]),
		DataOffset: binary.LittleEndian.Uint32(buf[8:]),
		DataSize:   binary.LittleEndian.Uint32(buf[12:]),
		RecordRef:  binary.LittleEndian.Uint32(buf[16:]),
	}
}
