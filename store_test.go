//go:build integration

package ndxstore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"ndxstore/internal/layout"
)

func statSize(name string) (int64, error) {
	info, err := os.Stat(name)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func u32Descriptor() []KeyDescriptor {
	return []KeyDescriptor{{{Offset: 0, Type: TypeU32, Size: 4}}}
}

func s32Descriptor() []KeyDescriptor {
	return []KeyDescriptor{{{Offset: 0, Type: TypeS32, Size: 4}}}
}

func u32Record(v uint32, padding int) []byte {
	buf := make([]byte, 4+padding)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func s32Record(v int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}

// Scenario 1 (spec.md §8.1): a freshly created store has no records, and a
// second Open on the same file while the first is still open fails with
// DATABASE_ALREADY_OPENED.
func TestCreateEmptyStoreAndRejectsDoubleOpen(t *testing.T) {
	t.Run("new store has zero records", func(t *testing.T) {
		// Prepare
		name := filepath.Join(t.TempDir(), "t.db")

		// Execute
		s, err := Create(name, u32Descriptor(), CreateOptions{ReservedPerBlock: 10})

		// Check
		assert.NoError(t, err, "create a new store")
		assert.Equal(t, uint32(0), s.NrOfRecords(), "new store has no live records")

		defer s.Close()

		t.Run("re-opening the same file while open fails", func(t *testing.T) {
			_, err := Open(name, OpenOptions{})
			assert.ErrorIs(t, err, ErrDatabaseAlreadyOpened)
		})
	})
}

func TestCreateRejectsExistingFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	s.Close()

	_, err = Create(name, u32Descriptor(), CreateOptions{})
	assert.ErrorIs(t, err, ErrDatabaseAlreadyExists)
}

func TestOpenFailsWhenFileMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.db"), OpenOptions{})
	assert.ErrorIs(t, err, ErrNoDatabase)
}

// Scenario 2 (spec.md §8.2): inserting 11 records into a store with
// reservedPerBlock=10 must grow to exactly two INDEX_BLOCK frames chained by
// a NEXT_INDEX sentinel.
func TestInsertBeyondFirstBlockAppendsSecondBlock(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{ReservedPerBlock: 10})
	assert.NoError(t, err)
	defer s.Close()

	assert.Len(t, s.blockOffsets, 1, "starts with one reserved block")

	for i := uint32(0); i < 11; i++ {
		_, err := s.CreateRecord(u32Record(i, 0))
		assert.NoError(t, err)
	}

	assert.Len(t, s.blockOffsets, 2, "grew to a second reserved block after the 11th insert")
	assert.Equal(t, uint32(20), s.header.NrOfIndexRecords, "two blocks of 10 reserved slots each")

	entrySize := int64(layout.IndexSlotSize) + int64(s.header.TotalKeySize)
	firstSentinel := s.blockOffsets[0] + layout.DataRecordHeaderSize + int64(s.header.ReservedIndexRecords)*entrySize
	buf := make([]byte, layout.DataRecordHeaderSize)
	assert.NoError(t, s.file.ReadAt(buf, firstSentinel))
	sentinel := layout.DataRecordHeaderFromBytes(buf)
	assert.Equal(t, layout.RecordIDNextIndex, sentinel.ID, "first block is followed by a NEXT_INDEX sentinel")
	assert.Equal(t, uint32(s.blockOffsets[1]), sentinel.SizeOrNextIdx, "sentinel chains to the second block")
}

// Scenario 3 (spec.md §8.3): duplicate u32 keys must all be reachable
// through ExistRecord + GetNextRecord, and SearchCount must report the full
// equal-range.
func TestDuplicateKeySearchCountAndIteration(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	defer s.Close()

	values := []uint32{5, 1, 9, 3, 1}
	slots := make([]uint32, len(values))
	for i, v := range values {
		slot, err := s.CreateRecord(u32Record(v, 0))
		assert.NoError(t, err)
		slots[i] = slot
	}

	searchKey, err := s.EncodeSearchKey(0, u32Record(1, 0))
	assert.NoError(t, err)

	first, err := s.ExistRecord(0, searchKey)
	assert.NoError(t, err)
	assert.Equal(t, uint32(2), s.SearchCount(), "two records with value 1")

	seen := map[uint32]bool{first: true}
	for i := 0; i < int(s.SearchCount())-1; i++ {
		slotID, _, err := s.GetNextRecord(0)
		assert.NoError(t, err)
		seen[slotID] = true
	}

	_, _, err = s.GetNextRecord(0)
	assert.ErrorIs(t, err, ErrEntryNotFound, "cursor exhausted past the equal-range")

	assert.ElementsMatch(t, []uint32{slots[1], slots[4]}, keysOf(seen))
}

func keysOf(m map[uint32]bool) []uint32 {
	out := make([]uint32, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Scenario 4 (spec.md §8.4): a deleted slot is reused by a create that fits
// within its freed span, and bypassed by one that doesn't.
func TestDeletedSlotReuseFitsOrAllocatesFresh(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	defer s.Close()

	slot0, err := s.CreateRecord(u32Record(1, 96))
	assert.NoError(t, err)
	assert.Equal(t, uint32(0), slot0)

	assert.NoError(t, s.DeleteRecord(slot0))

	reused, err := s.CreateRecord(u32Record(2, 76))
	assert.NoError(t, err)
	assert.Equal(t, uint32(0), reused, "80-byte record reuses the freed 100-byte slot")

	assert.NoError(t, s.DeleteRecord(reused))

	fresh, err := s.CreateRecord(u32Record(3, 116))
	assert.NoError(t, err)
	assert.NotEqual(t, uint32(0), fresh, "120-byte record does not fit the freed 80-byte span")
	assert.GreaterOrEqual(t, fresh, uint32(1))
}

// Scenario 5 (spec.md §8.5): signed 32-bit key ordering verifies the
// sign-bit-flip + big-endian codec end to end through key-sorted iteration.
func TestSignedKeyOrdering(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, s32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	defer s.Close()

	for _, v := range []int32{-2, 0, 2} {
		_, err := s.CreateRecord(s32Record(v))
		assert.NoError(t, err)
	}

	// A zero-length partial key falls on the first segment's boundary
	// (spec.md §4.1) and so matches every record, turning the equal-range
	// cursor into a full key-order traversal.
	_, record, err := s.GetRecordByKey(0, nil)
	assert.NoError(t, err)
	assert.Equal(t, uint32(3), s.SearchCount())

	got := []int32{int32(binary.LittleEndian.Uint32(record))}
	for {
		_, record, err := s.GetNextRecord(0)
		if err != nil {
			break
		}
		got = append(got, int32(binary.LittleEndian.Uint32(record)))
	}

	assert.Equal(t, []int32{-2, 0, 2}, got)
}

// Scenario 6 (spec.md §8.6): Rebuild after deletions leaves exactly the
// live-record count behind, every record is reachable by key, and the
// source file is untouched.
func TestRebuildDropsDeletedRecordsAndLeavesSourceIntact(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{ReservedPerBlock: 10})
	assert.NoError(t, err)

	var slots []uint32
	for i := uint32(0); i < 100; i++ {
		slot, err := s.CreateRecord(u32Record(i, 0))
		assert.NoError(t, err)
		slots = append(slots, slot)
	}
	for i := 0; i < 30; i++ {
		assert.NoError(t, s.DeleteRecord(slots[i]))
	}

	before, err := statSize(name)
	assert.NoError(t, err)

	dst, err := s.Rebuild(filepath.Join(dir, "t2.db"), u32Descriptor(), RebuildOptions{ReservedPerBlock: 10})
	assert.NoError(t, err)
	defer dst.Close()

	assert.Equal(t, uint32(70), dst.NrOfRecords())

	for i := uint32(30); i < 100; i++ {
		searchKey, err := dst.EncodeSearchKey(0, u32Record(i, 0))
		assert.NoError(t, err)
		_, record, err := dst.GetRecordByKey(0, searchKey)
		assert.NoError(t, err, "value %d reachable after rebuild", i)
		assert.Equal(t, i, binary.LittleEndian.Uint32(record))
	}

	after, err := statSize(name)
	assert.NoError(t, err)
	assert.Equal(t, before, after, "source file size unchanged by rebuild")

	assert.NoError(t, s.Close())
}

func TestRebuildFailsOnEmptyDatabase(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	defer s.Close()

	_, err = s.Rebuild(filepath.Join(t.TempDir(), "t2.db"), u32Descriptor(), RebuildOptions{})
	assert.ErrorIs(t, err, ErrEmptyDatabase)
}

// Testable property (spec.md §8): round-trip — every created record reads
// back byte-for-byte through its returned slot id.
func TestCreateRecordRoundTrip(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	defer s.Close()

	records := [][]byte{
		u32Record(1, 10),
		u32Record(2, 0),
		u32Record(3, 50),
	}
	slots := make([]uint32, len(records))
	for i, r := range records {
		slot, err := s.CreateRecord(r)
		assert.NoError(t, err)
		slots[i] = slot
	}

	for i, slot := range slots {
		got, err := s.GetRecord(slot)
		assert.NoError(t, err)
		assert.Equal(t, records[i], got)
	}
}

// Testable property: count — NrOfRecords tracks creates minus deletes.
func TestNrOfRecordsTracksCreatesAndDeletes(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	defer s.Close()

	var slots []uint32
	for i := uint32(0); i < 5; i++ {
		slot, err := s.CreateRecord(u32Record(i, 0))
		assert.NoError(t, err)
		slots = append(slots, slot)
	}
	assert.Equal(t, uint32(5), s.NrOfRecords())

	assert.NoError(t, s.DeleteRecord(slots[0]))
	assert.NoError(t, s.DeleteRecord(slots[1]))
	assert.Equal(t, uint32(3), s.NrOfRecords())
}

// Testable property: record-reference monotonicity.
func TestRecordReferenceStrictlyIncreases(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	defer s.Close()

	var last uint32
	for i := uint32(0); i < 5; i++ {
		before := s.header.RecordReference
		_, err := s.CreateRecord(u32Record(i, 0))
		assert.NoError(t, err)
		assert.Greater(t, s.header.RecordReference, before)
		last = s.header.RecordReference
	}
	assert.Greater(t, last, uint32(0))
}

// Open reloads a store's on-disk state, including reserved blocks grown
// past the first, deleted-slot free list, and key-sorted arrays.
func TestOpenReloadsPersistedState(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{ReservedPerBlock: 10})
	assert.NoError(t, err)

	var slots []uint32
	for i := uint32(0); i < 15; i++ {
		slot, err := s.CreateRecord(u32Record(i, 0))
		assert.NoError(t, err)
		slots = append(slots, slot)
	}
	assert.NoError(t, s.DeleteRecord(slots[3]))
	assert.NoError(t, s.Close())

	reopened, err := Open(name, OpenOptions{})
	assert.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint32(14), reopened.NrOfRecords())
	assert.Len(t, reopened.blockOffsets, 2)

	searchKey, err := reopened.EncodeSearchKey(0, u32Record(7, 0))
	assert.NoError(t, err)
	slotID, record, err := reopened.GetRecordByKey(0, searchKey)
	assert.NoError(t, err)
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(record))
	assert.Equal(t, slots[7], slotID)
}

func TestOpenReadOnlyRejectsCreateRecord(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	_, err = s.CreateRecord(u32Record(1, 0))
	assert.NoError(t, err)
	assert.NoError(t, s.Close())

	ro, err := Open(name, OpenOptions{ReadOnly: true})
	assert.NoError(t, err)
	defer ro.Close()

	_, err = ro.CreateRecord(u32Record(2, 0))
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestExistRecordMissReturnsEntryNotFound(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	defer s.Close()

	_, err = s.CreateRecord(u32Record(1, 0))
	assert.NoError(t, err)

	searchKey, err := s.EncodeSearchKey(0, u32Record(99, 0))
	assert.NoError(t, err)
	_, err = s.ExistRecord(0, searchKey)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestUpdateRecordRejectsOversizedPayload(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	defer s.Close()

	slot, err := s.CreateRecord(u32Record(1, 0))
	assert.NoError(t, err)

	err = s.UpdateRecord(slot, u32Record(2, 1000))
	assert.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestUpdateRecordChangingKeyIsFoundUnderNewValue(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	defer s.Close()

	slot, err := s.CreateRecord(u32Record(1, 8))
	assert.NoError(t, err)

	assert.NoError(t, s.UpdateRecord(slot, u32Record(2, 8)))

	searchKey, err := s.EncodeSearchKey(0, u32Record(2, 0))
	assert.NoError(t, err)
	found, err := s.ExistRecord(0, searchKey)
	assert.NoError(t, err)
	assert.Equal(t, slot, found)

	oldKey, err := s.EncodeSearchKey(0, u32Record(1, 0))
	assert.NoError(t, err)
	_, err = s.ExistRecord(0, oldKey)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

// Deleting the very first record ever created pushes it onto a deleted-slot
// free list that starts out empty, so the slot's Status becomes
// DeletedListEnd. That must never read back as IsOK (store.go's
// ensureKeyArray, record.go's GetRecord) the way StatusOK would.
func TestDeleteRecordOnEmptyFreeListIsNotMistakenForLive(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	defer s.Close()

	slot, err := s.CreateRecord(u32Record(1, 0))
	assert.NoError(t, err)
	assert.NoError(t, s.DeleteRecord(slot))

	searchKey, err := s.EncodeSearchKey(0, u32Record(1, 0))
	assert.NoError(t, err)
	_, err = s.ExistRecord(0, searchKey)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = s.GetRecord(slot)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

// GetNextIndex is the payload-free sibling of GetNextRecord: same cursor,
// no record read.
func TestGetNextIndexAdvancesCursorWithoutReadingPayload(t *testing.T) {
	name := filepath.Join(t.TempDir(), "t.db")
	s, err := Create(name, u32Descriptor(), CreateOptions{})
	assert.NoError(t, err)
	defer s.Close()

	slot1, err := s.CreateRecord(u32Record(5, 0))
	assert.NoError(t, err)
	slot2, err := s.CreateRecord(u32Record(5, 4))
	assert.NoError(t, err)

	searchKey, err := s.EncodeSearchKey(0, u32Record(5, 0))
	assert.NoError(t, err)
	first, err := s.ExistRecord(0, searchKey)
	assert.NoError(t, err)
	assert.Equal(t, uint32(2), s.SearchCount())

	second, err := s.GetNextIndex(0)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []uint32{slot1, slot2}, []uint32{first, second})

	_, err = s.GetNextIndex(0)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}
