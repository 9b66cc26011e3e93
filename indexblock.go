package ndxstore

import "ndxstore/internal/layout"

// appendReservedBlock writes a new INDEX_BLOCK frame of
// header.ReservedIndexRecords fresh RESERVED slots at the current
// end-of-data offset, followed by a NEXT_INDEX sentinel, and back-patches
// the previous block's sentinel to chain to it (spec.md §4.2, §6).
func (s *Store) appendReservedBlock() error {
	perBlock := int(s.header.ReservedIndexRecords)
	entrySize := int64(layout.IndexSlotSize) + int64(s.header.TotalKeySize)

	blockStart := int64(s.header.NextFreeData)
	payloadSize := int64(perBlock) * entrySize

	blockFrame := layout.DataRecordHeader{
		ID:            layout.RecordIDIndexBlock,
		SizeOrNextIdx: uint32(payloadSize),
		Offset:        uint32(blockStart) + layout.DataRecordHeaderSize + uint32(payloadSize),
	}
	if err := s.file.WriteAt(blockFrame.Bytes(), blockStart); err != nil {
		return newError(CodeDatabaseIOError, "ndxstore: write index block frame: %s", err)
	}

	slotsPayload := make([]byte, payloadSize)
	newSlots := make([]layout.IndexSlot, perBlock)
	for i := 0; i < perBlock; i++ {
		slot := layout.IndexSlot{
			Status: layout.StatusReserved,
			Offset: uint32(blockStart) + layout.DataRecordHeaderSize + uint32(int64(i)*entrySize),
		}
		copy(slotsPayload[int64(i)*entrySize:], slot.Bytes())
		newSlots[i] = slot
	}
	if err := s.file.WriteAt(slotsPayload, blockStart+layout.DataRecordHeaderSize); err != nil {
		return newError(CodeDatabaseIOError, "ndxstore: write reserved slots: %s", err)
	}

	sentinelOffset := blockStart + layout.DataRecordHeaderSize + payloadSize
	sentinel := layout.DataRecordHeader{
		ID:     layout.RecordIDNextIndex,
		Offset: uint32(sentinelOffset) + layout.DataRecordHeaderSize,
	}
	if err := s.file.WriteAt(sentinel.Bytes(), sentinelOffset); err != nil {
		return newError(CodeDatabaseIOError, "ndxstore: write next-index sentinel: %s", err)
	}

	if len(s.blockOffsets) > 0 {
		buf := make([]byte, layout.DataRecordHeaderSize)
		if err := s.file.ReadAt(buf, s.sentinelAt); err != nil {
			return newError(CodeDatabaseIOError, "ndxstore: read previous sentinel: %s", err)
		}
		prev := layout.DataRecordHeaderFromBytes(buf)
		prev.SizeOrNextIdx = uint32(blockStart)
		if err := s.file.WriteAt(prev.Bytes(), s.sentinelAt); err != nil {
			return newError(CodeDatabaseIOError, "ndxstore: back-patch previous sentinel: %s", err)
		}
	}

	s.blockOffsets = append(s.blockOffsets, blockStart)
	s.sentinelAt = sentinelOffset

	s.slots = append(s.slots, newSlots...)
	for i := 0; i < perBlock; i++ {
		s.keys = append(s.keys, make([]byte, s.header.TotalKeySize))
	}

	s.header.NrOfIndexRecords += uint32(perBlock)
	s.header.NextFreeData = uint32(sentinelOffset) + layout.DataRecordHeaderSize

	return s.writeHeader()
}
