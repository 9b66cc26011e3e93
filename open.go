package ndxstore

import (
	"ndxstore/internal/fileio"
	"ndxstore/internal/layout"
)

// Open opens an existing store file, reading its header, key descriptors,
// and every index slot (live, deleted, and reserved) into memory, then
// sorts every key array (spec.md §4.2).
func Open(name string, opts OpenOptions) (*Store, error) {
	if !fileio.Exists(name) {
		return nil, newError(CodeNoDatabase, "ndxstore: %s not found", name)
	}
	if err := checkNotAlreadyOpen(name); err != nil {
		return nil, err
	}

	var f fileio.FileIO
	var err error
	if opts.ReadOnly {
		f, err = fileio.OpenReadOnly(name)
	} else {
		f, err = fileio.Open(name, false)
	}
	if err != nil {
		return nil, newError(CodeDatabaseIOError, "ndxstore: %s", err)
	}

	header, descriptors, headerFrameOffset, err := readHeaderFrame(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if err := validateKeyDescriptors(descriptors); err != nil {
		_ = f.Close()
		return nil, err
	}

	_, keyOffsets := encodedKeyBlobSize(descriptors)
	store := newStore(f, name, opts.ReadOnly, header, descriptors, keyOffsets)

	preallocated := opts.PreallocatedSlots
	if preallocated == 0 {
		preallocated = layout.DefaultPreallocatedKeys
	}
	capHint := int(header.NrOfIndexRecords)
	if preallocated > capHint {
		capHint = preallocated
	}
	entrySize := int64(layout.IndexSlotSize) + int64(header.TotalKeySize)
	if maxSlots := int(layout.MaxAllocationBytes / entrySize); capHint > maxSlots {
		capHint = maxSlots
	}
	store.slots = make([]layout.IndexSlot, 0, capHint)
	store.keys = make([][]byte, 0, capHint)

	if err := store.loadIndexBlocks(headerFrameOffset.Offset); err != nil {
		_ = f.Close()
		return nil, err
	}

	for i := range store.descriptors {
		store.ensureKeyArray(i)
	}

	registerStore(store)
	return store, nil
}

// readHeaderFrame reads and validates the HEADER frame, returning the
// decoded header, descriptors, and the frame's own DataRecordHeader (whose
// Offset field is where the first INDEX_BLOCK frame begins).
func readHeaderFrame(f fileio.FileIO) (layout.Header, []KeyDescriptor, layout.DataRecordHeader, error) {
	buf := make([]byte, layout.DataRecordHeaderSize)
	if err := f.ReadAt(buf, 0); err != nil {
		return layout.Header{}, nil, layout.DataRecordHeader{}, newError(CodeDatabaseIOError, "ndxstore: read header frame: %s", err)
	}
	frame := layout.DataRecordHeaderFromBytes(buf)
	if frame.ID != layout.RecordIDHeader {
		return layout.Header{}, nil, layout.DataRecordHeader{}, newError(CodeInvalidDatabase, "ndxstore: not a store file")
	}

	payload := make([]byte, frame.SizeOrNextIdx)
	if err := f.ReadAt(payload, layout.DataRecordHeaderSize); err != nil {
		return layout.Header{}, nil, layout.DataRecordHeader{}, newError(CodeDatabaseIOError, "ndxstore: read header payload: %s", err)
	}

	header := layout.HeaderFromBytes(payload[:layout.HeaderSize])
	if header.Version != layout.FormatVersion {
		return layout.Header{}, nil, layout.DataRecordHeader{}, newError(CodeInvalidDatabase, "ndxstore: unsupported format version %#x", header.Version)
	}

	rawDescriptors, _ := layout.DecodeKeyDescriptors(payload[layout.HeaderSize:], int(header.NrOfKeys))
	descriptors := make([]KeyDescriptor, len(rawDescriptors))
	for i, d := range rawDescriptors {
		descriptors[i] = fromLayoutSegments(d)
	}

	return header, descriptors, frame, nil
}

// loadIndexBlocks walks the chain of INDEX_BLOCK frames starting at
// firstBlockOffset, reading every slot and its encoded key bytes into the
// store's EncodedKeys image.
func (s *Store) loadIndexBlocks(firstBlockOffset uint32) error {
	entrySize := int64(layout.IndexSlotSize) + int64(s.header.TotalKeySize)
	perBlock := int64(s.header.ReservedIndexRecords)
	blockStart := int64(firstBlockOffset)

	for {
		buf := make([]byte, layout.DataRecordHeaderSize)
		if err := s.file.ReadAt(buf, blockStart); err != nil {
			return newError(CodeDatabaseIOError, "ndxstore: read index block frame: %s", err)
		}
		blockFrame := layout.DataRecordHeaderFromBytes(buf)
		if blockFrame.ID != layout.RecordIDIndexBlock {
			return newError(CodeIndexCorrupt, "ndxstore: expected index block frame at %d", blockStart)
		}

		payloadSize := int64(blockFrame.SizeOrNextIdx)
		payload := make([]byte, payloadSize)
		if err := s.file.ReadAt(payload, blockStart+layout.DataRecordHeaderSize); err != nil {
			return newError(CodeDatabaseIOError, "ndxstore: read index block payload: %s", err)
		}

		for i := int64(0); i < perBlock; i++ {
			entry := payload[i*entrySize : (i+1)*entrySize]
			slot := layout.IndexSlotFromBytes(entry[:layout.IndexSlotSize])
			key := make([]byte, s.header.TotalKeySize)
			copy(key, entry[layout.IndexSlotSize:])
			s.slots = append(s.slots, slot)
			s.keys = append(s.keys, key)
		}

		s.blockOffsets = append(s.blockOffsets, blockStart)

		sentinelOffset := blockStart + layout.DataRecordHeaderSize + payloadSize
		sbuf := make([]byte, layout.DataRecordHeaderSize)
		if err := s.file.ReadAt(sbuf, sentinelOffset); err != nil {
			return newError(CodeDatabaseIOError, "ndxstore: read next-index sentinel: %s", err)
		}
		sentinel := layout.DataRecordHeaderFromBytes(sbuf)
		if sentinel.ID != layout.RecordIDNextIndex {
			return newError(CodeIndexCorrupt, "ndxstore: expected next-index sentinel at %d", sentinelOffset)
		}
		s.sentinelAt = sentinelOffset

		if sentinel.SizeOrNextIdx == 0 {
			return nil
		}
		blockStart = int64(sentinel.SizeOrNextIdx)
	}
}
