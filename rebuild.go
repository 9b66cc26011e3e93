package ndxstore

import "ndxstore/internal/layout"

// RebuildOptions configures Rebuild.
type RebuildOptions struct {
	ReservedPerBlock int
}

// Rebuild creates a new store at newName with newDescriptors, streams
// every live record from s into it in slot-id order, and returns the new
// store opened for read-write use. s and its underlying file are left
// untouched. It fails EmptyDatabase if s has no live records.
func (s *Store) Rebuild(newName string, newDescriptors []KeyDescriptor, opts RebuildOptions) (*Store, error) {
	if s.header.NrOfRecords == 0 {
		return nil, newError(CodeEmptyDatabase, "ndxstore: %s has no live records to rebuild", s.name)
	}

	reservedPerBlock := opts.ReservedPerBlock
	if reservedPerBlock == 0 {
		reservedPerBlock = layout.DefaultReservedPerBlock
	}
	needed := int(s.header.NrOfRecords)
	blocks := (needed + reservedPerBlock - 1) / reservedPerBlock
	if blocks < 1 {
		blocks = 1
	}

	dst, err := Create(newName, newDescriptors, CreateOptions{ReservedPerBlock: reservedPerBlock})
	if err != nil {
		return nil, err
	}

	for i := 1; i < blocks; i++ {
		if err := dst.appendReservedBlock(); err != nil {
			_ = dst.Close()
			return nil, err
		}
	}

	for ordinal, slot := range s.slots {
		if !slot.IsOK() {
			continue
		}
		record, err := s.GetRecord(uint32(ordinal))
		if err != nil {
			_ = dst.Close()
			return nil, err
		}
		if _, err := dst.CreateRecord(record); err != nil {
			_ = dst.Close()
			return nil, err
		}
	}

	return dst, nil
}
