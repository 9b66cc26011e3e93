package ndxstore

import (
	"ndxstore/internal/codec"
	"ndxstore/internal/layout"
	"ndxstore/internal/utils"
)

// encodeAllKeys builds the combined encoded-key blob for record: the
// concatenation, in descriptor order, of each key's encoded segments
// (spec.md §4.1, §6 item 2). Any segment extending past len(record) fails
// RECORD_TOO_SMALL.
func (s *Store) encodeAllKeys(record []byte) ([]byte, error) {
	combined := make([]byte, s.header.TotalKeySize)
	for i := range s.descriptors {
		key, err := s.EncodeSearchKey(i, record)
		if err != nil {
			return nil, err
		}
		copy(combined[s.keyOffsets[i]:], key)
	}
	return combined, nil
}

// CreateRecord appends record as a new live record and returns its slot
// id: either a freed slot being reused (when record fits within that
// slot's previously deleted data span) or the next never-used reserved
// slot (spec.md §4.2).
func (s *Store) CreateRecord(record []byte) (uint32, error) {
	if s.readOnly {
		return 0, newError(CodeInvalidParameters, "ndxstore: %s is open read-only", s.name)
	}

	combinedKey, err := s.encodeAllKeys(record)
	if err != nil {
		return 0, err
	}

	ordinal, dataOffset, reusedDeleted, err := s.claimSlot(uint32(len(record)))
	if err != nil {
		return 0, err
	}

	recordRef := s.header.RecordReference
	dataHeader := layout.DataRecordHeader{
		ID:            layout.RecordIDData,
		RecordRef:     recordRef,
		SizeOrNextIdx: uint32(len(record)),
		Offset:        dataOffset + layout.DataRecordHeaderSize + uint32(len(record)),
	}

	if err := s.file.WriteAt(dataHeader.Bytes(), int64(dataOffset)); err != nil {
		return 0, newError(CodeDatabaseIOError, "ndxstore: write data header: %s", err)
	}
	if err := s.file.WriteAt(record, int64(dataOffset)+layout.DataRecordHeaderSize); err != nil {
		return 0, newError(CodeDatabaseIOError, "ndxstore: write record payload: %s", err)
	}

	slot := layout.IndexSlot{
		Status:     layout.StatusOK,
		Offset:     uint32(s.slotFileOffset(ordinal)),
		DataOffset: dataOffset,
		DataSize:   uint32(len(record)),
		RecordRef:  recordRef,
	}
	if err := s.writeSlot(ordinal, slot, combinedKey); err != nil {
		return 0, err
	}

	s.header.NrOfRecords++
	s.header.RecordReference++

	// The data record now occupies [dataOffset, dataHeader.Offset). Only
	// once that span is accounted for in NextFreeData is it safe to
	// advance NextFreeIndex, which may itself append a new reserved index
	// block at the (now correct) end of the data heap.
	if !reusedDeleted {
		s.header.NextFreeData = dataHeader.Offset
		if err := s.advanceNextFreeIndex(); err != nil {
			return 0, err
		}
	}

	if err := s.writeHeader(); err != nil {
		return 0, err
	}

	s.markKeyArraysDirty()

	return ordinal, nil
}

// claimSlot picks the target slot for a new record of the given size:
// the first deleted slot whose freed span fits, otherwise the next fresh
// reserved slot. It returns the slot's ordinal, the data-heap offset to
// write the new record at, and whether a deleted slot was reused.
func (s *Store) claimSlot(dataSize uint32) (ordinal uint32, dataOffset uint32, reusedDeleted bool, err error) {
	cursor := s.header.LastDeletedIndex
	var prevInChain int32 = layout.DeletedListEnd

	for cursor != layout.DeletedListEnd {
		candidate := s.slots[cursor]
		if candidate.DataSize >= dataSize {
			// Unlink candidate from the free list.
			if prevInChain == layout.DeletedListEnd {
				s.header.LastDeletedIndex = candidate.PrevDeleted()
			} else {
				prevSlot := s.slots[prevInChain]
				prevSlot.Status = candidate.PrevDeleted()
				s.slots[prevInChain] = prevSlot
				if err := s.writeSlot(uint32(prevInChain), prevSlot, s.keys[prevInChain]); err != nil {
					return 0, 0, false, err
				}
			}
			return uint32(cursor), candidate.DataOffset, true, nil
		}
		prevInChain = cursor
		cursor = candidate.PrevDeleted()
	}

	ordinal = s.header.NextFreeIndex
	dataOffset = s.header.NextFreeData

	return ordinal, dataOffset, false, nil
}

// advanceNextFreeIndex consumes the next fresh reserved slot, appending a
// new reserved block (and back-patching the previous NEXT_INDEX sentinel)
// if that was the last slot of the current block.
func (s *Store) advanceNextFreeIndex() error {
	s.header.NextFreeIndex++

	if s.header.NextFreeIndex < s.header.NrOfIndexRecords {
		return nil
	}

	return s.appendReservedBlock()
}

// GetRecord reads the live record stored at slotID.
func (s *Store) GetRecord(slotID uint32) ([]byte, error) {
	if slotID >= s.header.NrOfIndexRecords {
		return nil, newError(CodeEntryNotFound, "ndxstore: slot %d out of range", slotID)
	}
	slot := s.slots[slotID]
	if !slot.IsOK() {
		return nil, newError(CodeEntryNotFound, "ndxstore: slot %d is not live", slotID)
	}

	var dataHeader layout.DataRecordHeader
	buf := make([]byte, layout.DataRecordHeaderSize)
	if err := s.file.ReadAt(buf, int64(slot.DataOffset)); err != nil {
		return nil, newError(CodeDatabaseIOError, "ndxstore: read data header for slot %d: %s", slotID, err)
	}
	dataHeader = layout.DataRecordHeaderFromBytes(buf)

	if dataHeader.ID < layout.RecordIDData || dataHeader.RecordRef != slot.RecordRef {
		return nil, newError(CodeIndexCorrupt, "ndxstore: slot %d data header mismatch", slotID)
	}

	record := make([]byte, dataHeader.SizeOrNextIdx)
	if err := s.file.ReadAt(record, int64(slot.DataOffset)+layout.DataRecordHeaderSize); err != nil {
		return nil, newError(CodeDatabaseIOError, "ndxstore: read record payload for slot %d: %s", slotID, err)
	}

	return record, nil
}

// ExistRecord searches key k among the records indexed under keyID, using
// a prefix match when len(searchKey) is shorter than that key's full
// encoded size. On a hit, it seeds the GetNextRecord iteration cursor and
// SearchCount for keyID; on a miss, it reports ENTRY_NOT_FOUND.
func (s *Store) ExistRecord(keyID int, searchKey []byte) (uint32, error) {
	if keyID < 0 || keyID >= len(s.descriptors) {
		return 0, newError(CodeInvalidKeyIndex, "ndxstore: key id %d out of range", keyID)
	}

	fullSize := descriptorKeySize(s.descriptors[keyID])
	if !codec.ValidPartialLength(s.segments[keyID], len(searchKey)) {
		return 0, newError(CodeInvalidKey, "ndxstore: search key of length %d does not fall on a segment boundary for key %d", len(searchKey), keyID)
	}
	if len(searchKey) > fullSize {
		return 0, newError(CodeInvalidKey, "ndxstore: search key longer than key %d", keyID)
	}

	ka := s.ensureKeyArray(keyID)
	res := ka.Find(s.keyBytesAt(keyID), searchKey, len(searchKey), nil)

	if !res.Hit {
		s.lastSearchCount = 0
		return 0, newError(CodeEntryNotFound, "ndxstore: key %d: no record matching %x", keyID, searchKey)
	}

	s.lastSearchCount = uint32(res.Count)

	// ExistRecord itself delivers the first match; the cursor advances so
	// a subsequent GetNextRecord returns the second one, matching the
	// caller pattern of one ExistRecord call followed by Count-1
	// GetNextRecord calls.
	slotID := ka.Slots[ka.Position]
	ka.Position++
	return slotID, nil
}

// GetRecordByKey composes ExistRecord and GetRecord.
func (s *Store) GetRecordByKey(keyID int, searchKey []byte) (uint32, []byte, error) {
	slotID, err := s.ExistRecord(keyID, searchKey)
	if err != nil {
		return 0, nil, err
	}
	record, err := s.GetRecord(slotID)
	return slotID, record, err
}

// GetNextIndex advances the iteration cursor established by the most
// recent ExistRecord(keyID, ...) and returns the next slot id in that
// equal-range, without reading the record payload. Useful for callers
// that only need ids, e.g. to build a result set before bulk-fetching.
// Fails ENTRY_NOT_FOUND once the cursor passes the end of the range.
func (s *Store) GetNextIndex(keyID int) (uint32, error) {
	if keyID < 0 || keyID >= len(s.keyArrays) {
		return 0, newError(CodeInvalidKeyIndex, "ndxstore: key id %d out of range", keyID)
	}

	ka := s.keyArrays[keyID]
	if ka.Position < 0 || ka.Position > ka.SelectionEnd {
		return 0, newError(CodeEntryNotFound, "ndxstore: key %d: no active selection", keyID)
	}

	slotID := ka.Slots[ka.Position]
	ka.Position++

	return slotID, nil
}

// GetNextRecord composes GetNextIndex and GetRecord.
func (s *Store) GetNextRecord(keyID int) (uint32, []byte, error) {
	slotID, err := s.GetNextIndex(keyID)
	if err != nil {
		return 0, nil, err
	}
	record, err := s.GetRecord(slotID)
	return slotID, record, err
}

// DeleteRecord logically deletes the live record at slotID: the data
// frame is marked DELETED_DATA, the slot is pushed onto the deleted-slot
// free list, and every key array is marked for a membership rebuild.
func (s *Store) DeleteRecord(slotID uint32) error {
	if s.readOnly {
		return newError(CodeInvalidParameters, "ndxstore: %s is open read-only", s.name)
	}
	if slotID >= s.header.NrOfIndexRecords {
		return newError(CodeEntryNotFound, "ndxstore: slot %d out of range", slotID)
	}
	slot := s.slots[slotID]
	if !slot.IsOK() {
		return newError(CodeEntryNotFound, "ndxstore: slot %d is not live", slotID)
	}

	buf := make([]byte, layout.DataRecordHeaderSize)
	if err := s.file.ReadAt(buf, int64(slot.DataOffset)); err != nil {
		return newError(CodeDatabaseIOError, "ndxstore: read data header for slot %d: %s", slotID, err)
	}
	dataHeader := layout.DataRecordHeaderFromBytes(buf)
	dataHeader.ID = layout.RecordIDDeletedData
	if err := s.file.WriteAt(dataHeader.Bytes(), int64(slot.DataOffset)); err != nil {
		return newError(CodeDatabaseIOError, "ndxstore: mark data record deleted for slot %d: %s", slotID, err)
	}

	slot.Status = s.header.LastDeletedIndex
	if err := s.writeSlot(slotID, slot, s.keys[slotID]); err != nil {
		return err
	}
	s.header.LastDeletedIndex = int32(slotID)
	s.header.NrOfRecords--

	if err := s.writeHeader(); err != nil {
		return err
	}

	s.markKeyArraysDirty()

	return nil
}

// UpdateRecord overwrites the payload of the live record at slotID with
// record, failing RECORD_TOO_LARGE if record does not fit within the
// slot's originally reserved data span. If any key segment's value
// changes, every key array is marked for re-sort.
func (s *Store) UpdateRecord(slotID uint32, record []byte) error {
	if s.readOnly {
		return newError(CodeInvalidParameters, "ndxstore: %s is open read-only", s.name)
	}
	if slotID >= s.header.NrOfIndexRecords {
		return newError(CodeEntryNotFound, "ndxstore: slot %d out of range", slotID)
	}
	slot := s.slots[slotID]
	if !slot.IsOK() {
		return newError(CodeEntryNotFound, "ndxstore: slot %d is not live", slotID)
	}

	buf := make([]byte, layout.DataRecordHeaderSize)
	if err := s.file.ReadAt(buf, int64(slot.DataOffset)); err != nil {
		return newError(CodeDatabaseIOError, "ndxstore: read data header for slot %d: %s", slotID, err)
	}
	dataHeader := layout.DataRecordHeaderFromBytes(buf)

	if dataHeader.ID < layout.RecordIDData || dataHeader.RecordRef != slot.RecordRef {
		return newError(CodeIndexCorrupt, "ndxstore: slot %d data header mismatch", slotID)
	}

	available := dataHeader.Offset - (slot.DataOffset + layout.DataRecordHeaderSize)
	if uint32(len(record)) > available {
		return newError(CodeRecordTooLarge, "ndxstore: slot %d: %d bytes exceeds reserved span of %d", slotID, len(record), available)
	}

	combinedKey, err := s.encodeAllKeys(record)
	if err != nil {
		return err
	}

	dataHeader.SizeOrNextIdx = uint32(len(record))
	if err := s.file.WriteAt(dataHeader.Bytes(), int64(slot.DataOffset)); err != nil {
		return newError(CodeDatabaseIOError, "ndxstore: update data header for slot %d: %s", slotID, err)
	}
	if err := s.file.WriteAt(record, int64(slot.DataOffset)+layout.DataRecordHeaderSize); err != nil {
		return newError(CodeDatabaseIOError, "ndxstore: update record payload for slot %d: %s", slotID, err)
	}

	slot.DataSize = uint32(len(record))
	keyChanged := !utils.IsEqual(s.keys[slotID], combinedKey)
	if err := s.writeSlot(slotID, slot, combinedKey); err != nil {
		return err
	}

	if keyChanged {
		s.markKeyArraysUnsorted()
	}

	return nil
}
