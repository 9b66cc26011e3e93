// Package ndxstore implements an embedded, single-process indexed record
// store: application records keyed by a stable numeric handle, with one or
// more application-defined search keys derived from the record bytes.
//
// The engine supports create, read by handle, read by (partial) key,
// next-in-order traversal, logical delete, size-bounded update-in-place,
// and rebuild to a new key schema. It provides no query language, no
// concurrency control across store handles, and no crash-safe journalling;
// callers are expected to serialize access externally.
package ndxstore

import (
	"fmt"

	"ndxstore/internal/codec"
	"ndxstore/internal/fileio"
	"ndxstore/internal/indexarray"
	"ndxstore/internal/layout"
)

// Store is a single open indexed file. All exported methods run to
// completion synchronously; concurrent calls on the same Store from
// multiple goroutines are not safe, matching the single-threaded model
// the on-disk format assumes.
type Store struct {
	file     fileio.FileIO
	name     string
	readOnly bool

	header      layout.Header
	descriptors []KeyDescriptor
	segments    [][]codec.Segment // descriptors, converted once for repeated encode calls
	keyOffsets  []int             // offset of each key's encoded bytes within the combined per-slot blob

	blockOffsets  []int64 // file offset of each INDEX_BLOCK frame header, in reservation order
	sentinelAt    int64   // file offset of the current last block's NEXT_INDEX sentinel

	slots []layout.IndexSlot // EncodedKeys image: ordinal-addressed, len == header.NrOfIndexRecords
	keys  [][]byte           // EncodedKeys image: per-slot combined encoded key blob, parallel to slots

	keyArrays []*indexarray.KeyArray
	dirty     []bool // per key id: true if keyArrays[i].Slots membership needs rebuilding

	lastSearchCount uint32
}

// CreateOptions configures Create. ReservedPerBlock, when zero, defaults to
// layout.DefaultReservedPerBlock.
type CreateOptions struct {
	ReservedPerBlock int
}

// OpenOptions configures Open. PreallocatedSlots, when zero, defaults to
// layout.DefaultPreallocatedKeys; it only affects how much capacity is
// reserved up front for future creates, never how many existing slots are
// read back.
type OpenOptions struct {
	ReadOnly          bool
	PreallocatedSlots int
}

// Name returns the path the store was created or opened with.
func (s *Store) Name() string { return s.name }

// NrOfKeys returns the number of search keys defined for this store.
func (s *Store) NrOfKeys() int { return len(s.descriptors) }

// KeySize returns the total encoded size, in bytes, of the key identified
// by keyID.
func (s *Store) KeySize(keyID int) (int, error) {
	if keyID < 0 || keyID >= len(s.descriptors) {
		return 0, newError(CodeInvalidKeyIndex, "ndxstore: key id %d out of range", keyID)
	}
	return descriptorKeySize(s.descriptors[keyID]), nil
}

// NrOfRecords returns the number of live records currently in the store.
func (s *Store) NrOfRecords() uint32 { return s.header.NrOfRecords }

// NextFreeIndex returns the ordinal of the next never-yet-used reserved
// slot. It is exposed for diagnostics and for tests that assert on block
// growth; it has nothing to do with the ExistRecord/GetNextRecord
// iteration cursor (see GetNextIndex for that).
func (s *Store) NextFreeIndex() uint32 { return s.header.NextFreeIndex }

// SearchCount returns the number of matches found by the most recent
// ExistRecord call for any key.
func (s *Store) SearchCount() uint32 { return s.lastSearchCount }

// EncodeSearchKey builds the encoded search key for keyID from record,
// exposed so callers can build partial keys and verify codec ordering
// without going through ExistRecord.
func (s *Store) EncodeSearchKey(keyID int, record []byte) ([]byte, error) {
	if keyID < 0 || keyID >= len(s.descriptors) {
		return nil, newError(CodeInvalidKeyIndex, "ndxstore: key id %d out of range", keyID)
	}
	key, err := codec.EncodeKey(record, len(record), s.segments[keyID])
	if err != nil {
		return nil, newError(CodeRecordTooSmall, "ndxstore: %s", err)
	}
	return key, nil
}

// slotFileOffset returns the absolute file byte offset of index slot
// ordinal.
func (s *Store) slotFileOffset(ordinal uint32) int64 {
	perBlock := uint32(s.header.ReservedIndexRecords)
	block := ordinal / perBlock
	pos := ordinal % perBlock
	entrySize := int64(layout.IndexSlotSize) + int64(s.header.TotalKeySize)
	return s.blockOffsets[block] + layout.DataRecordHeaderSize + int64(pos)*entrySize
}

// writeSlot persists slots[ordinal] and keys[ordinal] at their file
// position, and refreshes the in-memory EncodedKeys image to match.
func (s *Store) writeSlot(ordinal uint32, slot layout.IndexSlot, key []byte) error {
	buf := make([]byte, layout.IndexSlotSize+len(key))
	copy(buf, slot.Bytes())
	copy(buf[layout.IndexSlotSize:], key)

	if err := s.file.WriteAt(buf, s.slotFileOffset(ordinal)); err != nil {
		return newError(CodeDatabaseIOError, "ndxstore: write index slot %d: %s", ordinal, err)
	}

	s.slots[ordinal] = slot
	copy(s.keys[ordinal], key)

	return nil
}

// writeHeader persists the current in-memory header at the start of the
// file, immediately after the HEADER frame's DataRecordHeader.
func (s *Store) writeHeader() error {
	if err := s.file.WriteAt(s.header.Bytes(), layout.DataRecordHeaderSize); err != nil {
		return newError(CodeDatabaseIOError, "ndxstore: write header: %s", err)
	}
	return nil
}

func (s *Store) markKeyArraysUnsorted() {
	for i := range s.keyArrays {
		s.keyArrays[i].Sorted = false
	}
}

func (s *Store) markKeyArraysDirty() {
	for i := range s.dirty {
		s.dirty[i] = true
	}
	s.markKeyArraysUnsorted()
}

// keyBytesAt returns the encoded bytes of key keyID for ordinal slot.
func (s *Store) keyBytesAt(keyID int) indexarray.KeyBytes {
	offset := s.keyOffsets[keyID]
	size := descriptorKeySize(s.descriptors[keyID])
	return func(ordinal uint32) []byte {
		return s.keys[ordinal][offset : offset+size]
	}
}

// ensureKeyArray rebuilds keyArrays[keyID]'s membership from the current
// EncodedKeys image if it was marked dirty by a create or delete, then
// sorts it if needed (a key-mutating update only marks it unsorted).
func (s *Store) ensureKeyArray(keyID int) *indexarray.KeyArray {
	ka := s.keyArrays[keyID]

	if s.dirty[keyID] {
		live := make([]uint32, 0, s.header.NrOfRecords)
		for ord, slot := range s.slots {
			if slot.IsOK() {
				live = append(live, uint32(ord))
			}
		}
		ka.Slots = live
		ka.Sorted = false
		s.dirty[keyID] = false
	}

	ka.Sort(s.keyBytesAt(keyID))
	return ka
}

// Close releases the store's file handle. A Store must not be used after
// Close returns, even if it returns an error.
func (s *Store) Close() error {
	unregisterStore(s)
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return newError(CodeDatabaseIOError, "ndxstore: close %s: %s", s.name, err)
	}
	return nil
}

func encodedKeyBlobSize(descriptors []KeyDescriptor) (total int, offsets []int) {
	offsets = make([]int, len(descriptors))
	for i, d := range descriptors {
		offsets[i] = total
		total += descriptorKeySize(d)
	}
	return total, offsets
}

func newKeyArrays(n int) ([]*indexarray.KeyArray, []bool) {
	arrays := make([]*indexarray.KeyArray, n)
	dirty := make([]bool, n)
	for i := range arrays {
		arrays[i] = indexarray.NewKeyArray(nil)
		dirty[i] = true
	}
	return arrays, dirty
}

func (s *Store) String() string {
	return fmt.Sprintf("ndxstore.Store{name=%s, records=%d}", s.name, s.header.NrOfRecords)
}
