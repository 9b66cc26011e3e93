package ndxstore

import (
	"ndxstore/internal/codec"
	"ndxstore/internal/fileio"
	"ndxstore/internal/layout"
)

// Create creates a new store file with the given key descriptors and opens
// it for read-write use. It fails DatabaseAlreadyExists if name already
// exists, InvalidKeyDescriptor if any descriptor is invalid (spec.md
// §4.4), or InvalidParameters if opts.ReservedPerBlock is outside
// [MinReservedPerBlock, MaxReservedPerBlock].
func Create(name string, descriptors []KeyDescriptor, opts CreateOptions) (*Store, error) {
	if fileio.Exists(name) {
		return nil, newError(CodeDatabaseAlreadyExists, "ndxstore: %s already exists", name)
	}

	if err := validateKeyDescriptors(descriptors); err != nil {
		return nil, err
	}

	reservedPerBlock := opts.ReservedPerBlock
	if reservedPerBlock == 0 {
		reservedPerBlock = layout.DefaultReservedPerBlock
	}
	if reservedPerBlock < layout.MinReservedPerBlock || reservedPerBlock > layout.MaxReservedPerBlock {
		return nil, newError(CodeInvalidParameters, "ndxstore: reservedPerBlock %d outside [%d, %d]", reservedPerBlock, layout.MinReservedPerBlock, layout.MaxReservedPerBlock)
	}

	f, err := fileio.Open(name, true)
	if err != nil {
		return nil, newError(CodeDatabaseIOError, "ndxstore: %s", err)
	}

	segments := make([][]layout.Segment, len(descriptors))
	for i, d := range descriptors {
		segments[i] = toLayoutSegments(d)
	}
	keyDescBlock := layout.EncodeKeyDescriptors(segments)

	totalKeySize, keyOffsets := encodedKeyBlobSize(descriptors)

	header := layout.Header{
		Version:              layout.FormatVersion,
		RecordReference:      0,
		NrOfRecords:          0,
		LastDeletedIndex:     layout.DeletedListEnd,
		NextFreeIndex:        0,
		ReservedIndexRecords: uint16(reservedPerBlock),
		NrOfKeys:             uint16(len(descriptors)),
		TotalKeySize:         uint16(totalKeySize),
		KeyDescriptorSize:    layout.KeyDescriptorBlockSize(segments),
	}

	headerFrame := layout.DataRecordHeader{
		ID:            layout.RecordIDHeader,
		RecordRef:     0,
		SizeOrNextIdx: uint32(layout.HeaderSize) + uint32(len(keyDescBlock)),
	}
	headerFrame.Offset = layout.DataRecordHeaderSize + headerFrame.SizeOrNextIdx

	if err := f.WriteAt(headerFrame.Bytes(), 0); err != nil {
		_ = f.Close()
		return nil, newError(CodeDatabaseIOError, "ndxstore: write header frame: %s", err)
	}
	payload := append(header.Bytes(), keyDescBlock...)
	if err := f.WriteAt(payload, layout.DataRecordHeaderSize); err != nil {
		_ = f.Close()
		return nil, newError(CodeDatabaseIOError, "ndxstore: write header payload: %s", err)
	}

	header.NextFreeData = headerFrame.Offset

	store := newStore(f, name, false, header, descriptors, keyOffsets)

	if err := store.appendReservedBlock(); err != nil {
		_ = store.Close()
		return nil, err
	}

	registerStore(store)
	return store, nil
}

// newStore assembles a Store's derived in-memory state (codec segments,
// key arrays) from a header and descriptor set already known to be valid.
func newStore(f fileio.FileIO, name string, readOnly bool, header layout.Header, descriptors []KeyDescriptor, keyOffsets []int) *Store {
	segments := make([][]codec.Segment, len(descriptors))
	for i, d := range descriptors {
		segments[i] = toCodecSegments(d)
	}

	keyArrays, dirty := newKeyArrays(len(descriptors))

	return &Store{
		file:        f,
		name:        name,
		readOnly:    readOnly,
		header:      header,
		descriptors: descriptors,
		segments:    segments,
		keyOffsets:  keyOffsets,
		keyArrays:   keyArrays,
		dirty:       dirty,
	}
}
