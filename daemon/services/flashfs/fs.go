package flashfs

import (
	"fmt"
	"io"
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
	"github.com/kdys14/smokehouse-controller/daemon/domain"
	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// Backing is the raw byte-addressable storage flashfs operates over —
// an *os.File standing in for the physical W25Q128 chip.
type Backing interface {
	io.ReaderAt
	io.WriterAt
}

// FlashFS is the in-memory FAT plus the backing store it describes.
type FlashFS struct {
	backing   Backing
	spiMutex  *domain.RecursiveMutex
	drawer    TFTDrawer

	entries       []FileEntry // in-RAM FAT, including tombstones
	primaryFATOK  bool
	usedShadowFAT bool
}

// New creates a FlashFS over backing. spiMutex is shared with any display
// driver arbitrating the same bus; pass a fresh *domain.RecursiveMutex if
// none is shared. drawer may be NoopTFTDrawer{}.
func New(backing Backing, spiMutex *domain.RecursiveMutex, drawer TFTDrawer) *FlashFS {
	return &FlashFS{backing: backing, spiMutex: spiMutex, drawer: drawer}
}

func (f *FlashFS) readSector(n int) ([]byte, error) {
	buf := make([]byte, constants.FlashSectorSize)
	off := int64(n) * constants.FlashSectorSize
	if _, err := f.backing.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func (f *FlashFS) writeSector(n int, data []byte) error {
	off := int64(n) * constants.FlashSectorSize
	_, err := f.backing.WriteAt(data, off)
	return err
}

// Load reads the primary FAT at boot; on validation failure it falls back
// to the shadow, rewriting the primary from RAM on success. If both fail,
// it starts empty.
func (f *FlashFS) Load() error {
	var loadErr error
	ok := withSPI(f.spiMutex, constants.MutexTimeout, func() {
		primary, err := f.readSector(constants.FatPrimarySector)
		if err == nil {
			if entries, ok := f.parseFAT(primary); ok {
				f.entries = entries
				f.primaryFATOK = true
				f.usedShadowFAT = false
				return
			}
		}

		logger.Warning("flashfs: primary FAT invalid, attempting shadow")
		shadow, err := f.readSector(constants.FatShadowSector)
		if err == nil {
			if entries, ok := f.parseFAT(shadow); ok {
				f.entries = entries
				logger.Warning("flashfs: shadow FAT valid, rewriting primary")
				if werr := f.persistFAT(); werr != nil {
					logger.Error("flashfs: failed to rewrite primary from shadow: %v", werr)
				}
				f.primaryFATOK = false
				f.usedShadowFAT = true
				return
			}
		}

		logger.Error("flashfs: both primary and shadow FAT invalid, starting empty")
		f.entries = nil
		f.primaryFATOK = false
		f.usedShadowFAT = false
	})
	if !ok {
		return fmt.Errorf("flashfs: Load: SPI mutex timeout")
	}
	return loadErr
}

// parseFAT validates and decodes one FAT sector's contents. Tombstoned
// slots are kept (continue, not break) so later live entries aren't lost.
func (f *FlashFS) parseFAT(sector []byte) ([]FileEntry, bool) {
	if len(sector) < fatHeaderSize {
		return nil, false
	}
	header := decodeHeader(sector)
	if header.Magic != constants.FatMagic || header.EntryCount > constants.MaxFlashFiles {
		return nil, false
	}

	entries := make([]FileEntry, 0, header.EntryCount)
	off := fatHeaderSize
	for i := 0; i < int(header.EntryCount); i++ {
		if off+constants.FileEntrySize > len(sector) {
			break
		}
		e := decodeEntry(sector[off : off+constants.FileEntrySize])
		off += constants.FileEntrySize
		if e.Valid == ValidTombstone {
			entries = append(entries, e)
			continue
		}
		entries = append(entries, e)
	}
	return entries, true
}

// liveEntryCount counts active (valid==0x01) slots.
func (f *FlashFS) liveEntryCount() int {
	n := 0
	for _, e := range f.entries {
		if e.Valid == ValidActive {
			n++
		}
	}
	return n
}

// lookup linearly scans all slots (including tombstones) for an active
// entry matching name exactly.
func (f *FlashFS) lookup(name string) (int, *FileEntry) {
	for i := range f.entries {
		if f.entries[i].Valid == ValidActive && f.entries[i].filenameOf() == name {
			return i, &f.entries[i]
		}
	}
	return -1, nil
}

// Exists reports whether a live entry with this exact name is present.
func (f *FlashFS) Exists(name string) bool {
	_, e := f.lookup(name)
	return e != nil
}

// Info summarizes the filesystem for GET /flash/info.
func (f *FlashFS) Info() dto.FlashInfo {
	used := 0
	var files []dto.FileEntry
	for _, e := range f.entries {
		if e.Valid != ValidActive {
			continue
		}
		used += int(e.SectorCount)
		files = append(files, dto.FileEntry{
			Filename:    e.filenameOf(),
			StartSector: e.StartSector,
			SectorCount: e.SectorCount,
			FileSize:    e.FileSize,
		})
	}
	return dto.FlashInfo{
		TotalSectors:   constants.FlashTotalSectors,
		FreeSectors:    constants.FlashTotalSectors - used,
		LiveEntryCount: f.liveEntryCount(),
		PrimaryFATOK:   f.primaryFATOK,
		UsedShadowFAT:  f.usedShadowFAT,
		Files:          files,
	}
}

// ReadFile reads up to maxSize bytes of path's contents.
func (f *FlashFS) ReadFile(path string, maxSize int) ([]byte, error) {
	_, entry := f.lookup(path)
	if entry == nil {
		return nil, fmt.Errorf("flashfs: %q not found", path)
	}

	n := int(entry.FileSize)
	if maxSize > 0 && n > maxSize {
		n = maxSize
	}
	buf := make([]byte, n)

	ok := withSPI(f.spiMutex, constants.MutexTimeout, func() {
		off := int64(entry.StartSector) * constants.FlashSectorSize
		_, _ = f.backing.ReadAt(buf, off)
	})
	if !ok {
		return nil, fmt.Errorf("flashfs: ReadFile %q: SPI mutex timeout", path)
	}
	return buf, nil
}

// Delete marks path's entry as a tombstone and persists the FAT.
func (f *FlashFS) Delete(path string) error {
	idx, entry := f.lookup(path)
	if entry == nil {
		return fmt.Errorf("flashfs: %q not found", path)
	}
	f.entries[idx].Valid = ValidTombstone
	return f.persistFAT()
}

// Append reads path's existing contents, concatenates data, and rewrites
// it. If the combined length exceeds AppendMaxBytes, the head is truncated
// to keep only the trailing half.
func (f *FlashFS) Append(path string, data []byte) error {
	existing, err := f.ReadFile(path, 0)
	if err != nil {
		existing = nil
	}
	combined := append(existing, data...)
	if len(combined) > constants.AppendMaxBytes {
		combined = combined[len(combined)-constants.AppendTruncateKeep:]
	}
	return f.WriteFile(path, combined)
}

// Format erases both FAT sectors and zero-initializes the in-RAM FAT.
func (f *FlashFS) Format() error {
	ok := withSPI(f.spiMutex, constants.MutexTimeout, func() {
		blank := make([]byte, constants.FlashSectorSize)
		for i := range blank {
			blank[i] = 0xFF
		}
		_ = f.writeSector(constants.FatPrimarySector, blank)
		_ = f.writeSector(constants.FatShadowSector, blank)
	})
	if !ok {
		return fmt.Errorf("flashfs: Format: SPI mutex timeout")
	}
	f.entries = nil
	f.primaryFATOK = true
	f.usedShadowFAT = false
	return f.persistFAT()
}

// persistFAT compacts the in-RAM FAT (dropping non-live slots), writes it
// to the shadow sector, then overwrites the primary. A crash between the
// two leaves shadow authoritative on next boot, since primary will fail
// its magic check.
func (f *FlashFS) persistFAT() error {
	compacted := make([]FileEntry, 0, len(f.entries))
	for _, e := range f.entries {
		if e.Valid == ValidActive {
			compacted = append(compacted, e)
		}
	}
	f.entries = compacted

	sector := make([]byte, constants.FlashSectorSize)
	for i := range sector {
		sector[i] = 0xFF
	}
	header := FatHeader{Magic: constants.FatMagic, EntryCount: uint16(len(compacted))}
	copy(sector[0:fatHeaderSize], encodeHeader(header))

	off := fatHeaderSize
	for _, e := range compacted {
		copy(sector[off:off+constants.FileEntrySize], encodeEntry(e))
		off += constants.FileEntrySize
	}

	ok := withSPI(f.spiMutex, constants.MutexTimeout, func() {
		_ = f.writeSector(constants.FatShadowSector, sector)
		_ = f.writeSector(constants.FatPrimarySector, sector)
	})
	if !ok {
		return fmt.Errorf("flashfs: persistFAT: SPI mutex timeout")
	}
	f.primaryFATOK = true
	f.usedShadowFAT = false
	return nil
}

// eraseSectors writes 0xFF across [start, start+count) and verifies the
// first byte of each sector reads back 0xFF, retrying the erase once on
// verify failure.
func (f *FlashFS) eraseSectors(start, count int) error {
	blank := make([]byte, constants.FlashSectorSize)
	for i := range blank {
		blank[i] = 0xFF
	}

	doErase := func() bool {
		for s := start; s < start+count; s++ {
			if err := f.writeSector(s, blank); err != nil {
				return false
			}
		}
		check := make([]byte, 1)
		for s := start; s < start+count; s++ {
			off := int64(s) * constants.FlashSectorSize
			if _, err := f.backing.ReadAt(check, off); err != nil || check[0] != 0xFF {
				return false
			}
		}
		return true
	}

	if doErase() {
		return nil
	}
	time.Sleep(time.Millisecond)
	if doErase() {
		return nil
	}
	return fmt.Errorf("flashfs: erase verify failed for sectors [%d,%d)", start, start+count)
}
