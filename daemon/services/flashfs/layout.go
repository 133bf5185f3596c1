// Package flashfs implements the smokehouse controller's flash filesystem:
// a FAT-plus-shadow-sector layout over a fixed 16MB address space, with
// static partitioning and atomic-replace semantics. The physical SPI wire
// protocol is out of scope (FIX-1..FIX-2 in the original firmware's
// flash_storage.cpp); a backing *os.File accessed via ReadAt/WriteAt
// stands in for the raw chip, arbitrated by the same recursive SPI mutex
// a real display driver would share.
package flashfs

import (
	"encoding/binary"
	"fmt"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
)

// FatHeader is the 8-byte header at the start of sector 0 (primary) and
// sector 1 (shadow).
type FatHeader struct {
	Magic      uint32
	EntryCount uint16
	Reserved   uint16
}

const fatHeaderSize = 8

// FileEntry is one fixed 60-byte FAT slot.
type FileEntry struct {
	Filename    [constants.FilenameMaxLen]byte
	StartSector uint16
	SectorCount uint16
	FileSize    uint32
	Valid       byte
	Reserved    [3]byte
}

// Valid byte values.
const (
	ValidUnused     = 0xFF
	ValidActive     = 0x01
	ValidTombstone  = 0x00
	ValidInProgress = 0xFE
)

// filenameOf returns the entry's filename as a Go string, trimmed at the
// first NUL.
func (e FileEntry) filenameOf() string {
	for i, b := range e.Filename {
		if b == 0 {
			return string(e.Filename[:i])
		}
	}
	return string(e.Filename[:])
}

func setFilename(e *FileEntry, name string) error {
	if len(name) >= constants.FilenameMaxLen {
		return fmt.Errorf("flashfs: filename %q exceeds %d bytes", name, constants.FilenameMaxLen-1)
	}
	var buf [constants.FilenameMaxLen]byte
	copy(buf[:], name)
	e.Filename = buf
	return nil
}

// encodeHeader writes a FatHeader in little-endian order.
func encodeHeader(h FatHeader) []byte {
	buf := make([]byte, fatHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.EntryCount)
	binary.LittleEndian.PutUint16(buf[6:8], h.Reserved)
	return buf
}

func decodeHeader(buf []byte) FatHeader {
	return FatHeader{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		EntryCount: binary.LittleEndian.Uint16(buf[4:6]),
		Reserved:   binary.LittleEndian.Uint16(buf[6:8]),
	}
}

// encodeEntry writes a FileEntry in the fixed 60-byte record layout.
func encodeEntry(e FileEntry) []byte {
	buf := make([]byte, constants.FileEntrySize)
	copy(buf[0:constants.FilenameMaxLen], e.Filename[:])
	off := constants.FilenameMaxLen
	binary.LittleEndian.PutUint16(buf[off:off+2], e.StartSector)
	binary.LittleEndian.PutUint16(buf[off+2:off+4], e.SectorCount)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], e.FileSize)
	buf[off+8] = e.Valid
	copy(buf[off+9:off+12], e.Reserved[:])
	return buf
}

func decodeEntry(buf []byte) FileEntry {
	var e FileEntry
	copy(e.Filename[:], buf[0:constants.FilenameMaxLen])
	off := constants.FilenameMaxLen
	e.StartSector = binary.LittleEndian.Uint16(buf[off : off+2])
	e.SectorCount = binary.LittleEndian.Uint16(buf[off+2 : off+4])
	e.FileSize = binary.LittleEndian.Uint32(buf[off+4 : off+8])
	e.Valid = buf[off+8]
	copy(e.Reserved[:], buf[off+9:off+12])
	return e
}

// Partition names paths are classified into.
type Partition int

const (
	PartitionUnion Partition = iota
	PartitionProfiles
	PartitionBackup
	PartitionLogs
)

func (p Partition) sectorRange() (start, end int) {
	switch p {
	case PartitionProfiles:
		return constants.ProfilePartitionStart, constants.ProfilePartitionEnd
	case PartitionBackup:
		return constants.BackupPartitionStart, constants.BackupPartitionEnd
	case PartitionLogs:
		return constants.LogPartitionStart, constants.LogPartitionEnd
	default:
		return constants.ProfilePartitionStart, constants.LogPartitionEnd
	}
}

// classify maps a path prefix to its partition. Paths not matching a known
// prefix fall into the union of all data partitions.
func classify(path string) Partition {
	switch {
	case hasPrefix(path, "/profiles/"):
		return PartitionProfiles
	case hasPrefix(path, "/backup/"):
		return PartitionBackup
	case hasPrefix(path, "/logs/"):
		return PartitionLogs
	default:
		return PartitionUnion
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
