// Package layout describes the byte-exact on-disk format of a store file:
// the header frame, the key-descriptor block, reserved index blocks and
// their slots, and the data-record framing that precedes every payload.
package layout

// FormatVersion is the on-disk format version written to every new
// store. major.minor.patch packed as major,minor = 8 bits each.
const FormatVersion uint32 = 0x01000000

// MaxAllocationBytes bounds the slot capacity Open preallocates for the
// in-memory index image: that capacity times the per-slot entry size
// (IndexSlotSize plus the encoded key bytes) stays within this limit.
// Growth past the preallocated capacity through later creates is not
// limited by it.
const MaxAllocationBytes int64 = 1 << 30

// Record ids identify the kind of frame a DataRecordHeader introduces.
// Do not renumber: these values are persisted.
const (
	RecordIDHeader      int32 = -4
	RecordIDIndexBlock  int32 = -3
	RecordIDNextIndex   int32 = -2
	RecordIDDeletedData int32 = -1
	RecordIDData        int32 = 0 // DATA frames use id >= RecordIDData
)

// Index slot status tags. Persisted as IndexSlot.Status. Do not renumber.
const (
	StatusReserved int32 = -2
	StatusOK       int32 = -1
	// Any status >= 0, or DeletedListEnd, means the slot is deleted; the
	// value is the id of the previous deleted slot in the free list, or
	// DeletedListEnd if this is the tail of the list.
)

// DeletedListEnd terminates the deleted-slot free list, persisted in
// IndexSlot.Status (a deleted slot's previous-in-list pointer) and in
// Header.LastDeletedIndex. It is distinct from StatusOK and StatusReserved
// so a deleted tail slot is never mistaken for a live or never-used one.
const DeletedListEnd int32 = -3

// Reserved-block sizing bounds and defaults (spec.md §4.5).
const (
	MinReservedPerBlock     = 10
	MaxReservedPerBlock     = 10000
	DefaultReservedPerBlock = 100
	DefaultPreallocatedKeys = 50000
)

// DataRecordHeaderSize is the fixed size of a DataRecordHeader frame:
// id(i32) + recordRef(u32) + sizeOrNextIdx(u32) + nextOffset(u32).
const DataRecordHeaderSize = 16

// IndexSlotSize is the fixed size of an IndexSlot, excluding the encoded
// key bytes that immediately follow it in both the file and the in-memory
// EncodedKeys image: status(i32) + offset(u32) + dataOffset(u32) +
// dataSize(u32) + recordRef(u32).
const IndexSlotSize = 20
