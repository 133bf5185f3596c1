package flashfs

import (
	"fmt"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
)

// occupied reports which sectors in [start,end] are covered by a live
// entry, treating idx (if >= 0) as currently hidden regardless of its
// on-disk valid byte — this lets the allocator search for a replacement
// run without the file being replaced blocking its own old sectors.
func (f *FlashFS) occupied(start, end int, hideIdx int) []bool {
	span := end - start + 1
	occ := make([]bool, span)
	for i, e := range f.entries {
		if i == hideIdx {
			continue
		}
		if e.Valid != ValidActive {
			continue
		}
		for s := int(e.StartSector); s < int(e.StartSector)+int(e.SectorCount); s++ {
			if s >= start && s <= end {
				occ[s-start] = true
			}
		}
	}
	return occ
}

// findContiguousFree scans [start,end] for the first run of n unoccupied
// sectors, hiding hideIdx's own sectors from the occupancy check.
func (f *FlashFS) findContiguousFree(start, end, n, hideIdx int) (int, bool) {
	occ := f.occupied(start, end, hideIdx)
	run := 0
	for i := 0; i < len(occ); i++ {
		if occ[i] {
			run = 0
			continue
		}
		run++
		if run == n {
			return start + i - n + 1, true
		}
	}
	return 0, false
}

// WriteFile performs the atomic-replace write path: validate size, hide
// the old entry, find a contiguous free run, erase-verify-write-verify,
// then swap the FAT slot and persist.
func (f *FlashFS) WriteFile(path string, data []byte) error {
	sectorsNeeded := (len(data) + constants.FlashSectorSize - 1) / constants.FlashSectorSize
	if sectorsNeeded == 0 {
		sectorsNeeded = 1
	}
	if sectorsNeeded > constants.MaxFileSectors {
		return fmt.Errorf("flashfs: %q needs %d sectors, exceeds MaxFileSectors=%d", path, sectorsNeeded, constants.MaxFileSectors)
	}

	part := classify(path)
	start, end := part.sectorRange()

	oldIdx, oldEntry := f.lookup(path)
	var oldValidSnapshot byte
	if oldEntry != nil {
		oldValidSnapshot = oldEntry.Valid
		f.entries[oldIdx].Valid = ValidInProgress
	}

	restoreOld := func() {
		if oldEntry != nil {
			f.entries[oldIdx].Valid = oldValidSnapshot
		}
	}

	startSector, found := f.findContiguousFree(start, end, sectorsNeeded, oldIdx)
	if !found {
		restoreOld()
		return fmt.Errorf("flashfs: no contiguous run of %d sectors free in partition for %q", sectorsNeeded, path)
	}

	var writeErr error
	ok := withSPI(f.spiMutex, constants.MutexTimeout, func() {
		if err := f.eraseSectors(startSector, sectorsNeeded); err != nil {
			writeErr = err
			return
		}

		if err := f.writePages(startSector, data); err != nil {
			writeErr = err
			return
		}

		readback := make([]byte, 1)
		off := int64(startSector) * constants.FlashSectorSize
		if _, err := f.backing.ReadAt(readback, off); err != nil {
			writeErr = err
			return
		}
		if len(data) > 0 && readback[0] != data[0] {
			writeErr = fmt.Errorf("flashfs: readback mismatch writing %q", path)
			return
		}
	})
	if !ok {
		restoreOld()
		return fmt.Errorf("flashfs: WriteFile %q: SPI mutex timeout", path)
	}
	if writeErr != nil {
		restoreOld()
		return writeErr
	}

	newEntry := FileEntry{
		StartSector: uint16(startSector),
		SectorCount: uint16(sectorsNeeded),
		FileSize:    uint32(len(data)),
		Valid:       ValidActive,
	}
	if err := setFilename(&newEntry, path); err != nil {
		restoreOld()
		return err
	}

	if oldEntry != nil {
		f.entries[oldIdx].Valid = ValidTombstone
	}
	f.entries = append(f.entries, newEntry)

	return f.persistFAT()
}

// writePages writes data in 256-byte page units starting at startSector.
// Must be called with the SPI mutex already held: the whole logical write
// is one critical section, since partial interleaving corrupts the chip.
func (f *FlashFS) writePages(startSector int, data []byte) error {
	const pageSize = 256
	base := int64(startSector) * constants.FlashSectorSize
	for off := 0; off < len(data); off += pageSize {
		end := off + pageSize
		if end > len(data) {
			end = len(data)
		}
		if _, err := f.backing.WriteAt(data[off:end], base+int64(off)); err != nil {
			return fmt.Errorf("flashfs: page write at offset %d: %w", off, err)
		}
	}
	return nil
}
