package gitcore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Index is the parsed .git/index (the staging area).
type Index struct {
	Version uint32
	Entries []IndexEntry
}

// IndexEntry is a single staged file.
type IndexEntry struct {
	Path     string
	StatInfo FileStat
}

// FileStat mirrors the fixed 62-byte portion of an on-disk index entry.
// ExtendedFlags is only present when Flags has the extended bit set
// (version 3 entries: skip-worktree, intent-to-add).
type FileStat struct {
	CTime           time.Time
	MTime           time.Time
	Device, Inode   uint32
	Mode            uint32
	UserID, GroupID uint32
	Size            uint32
	Hash            [20]byte
	Flags           uint16
	ExtendedFlags   uint16
}

// extendedFlag marks an index entry carrying the extra 16-bit flags word.
const extendedFlag = 0x4000

// BlobHash returns the entry's staged blob hash in hex form.
func (s *FileStat) BlobHash() Hash {
	hash, _ := NewHashFromBytes(s.Hash)
	return hash
}

// GetIndex parses the repository's index file. A missing index (fresh
// repository with nothing staged) yields an empty Index, not an error.
//
// See: https://git-scm.com/docs/index-format
func (r *Repository) GetIndex() (*Index, error) {
	indexPath := filepath.Join(r.gitDir, "index")

	file, err := os.Open(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Index{Version: 2, Entries: []IndexEntry{}}, nil
		}
		return nil, err
	}
	defer file.Close()

	// First a 12-byte header comprising:
	//  4-byte signature { 'D', 'I', 'R', 'C' } ("dircache")
	//  4-byte version number (currently 2, 3, or 4)
	//  32-bit number of index entries
	header := make([]byte, 12)
	if _, err := io.ReadFull(file, header); err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}
	if string(header[0:4]) != "DIRC" {
		return nil, fmt.Errorf("invalid index file signature: %s", string(header[0:4]))
	}

	version := binary.BigEndian.Uint32(header[4:8])
	if version != 2 && version != 3 {
		// Version 4 prefix-compresses paths and is not supported here.
		return nil, fmt.Errorf("unsupported index version: %d", version)
	}

	numEntries := binary.BigEndian.Uint32(header[8:12])
	entries := make([]IndexEntry, 0, numEntries)

	for i := uint32(0); i < numEntries; i++ {
		entry, err := parseIndexEntry(file)
		if err != nil {
			// One bad read corrupts every subsequent read, hence early return.
			return nil, fmt.Errorf("failed to read entry %d: %w", i, err)
		}
		entries = append(entries, entry)
	}

	// Extensions and the trailing checksum are not needed for status.

	return &Index{Version: version, Entries: entries}, nil
}

// parseIndexEntry reads one index entry at the current position, including
// its NUL terminator and 8-byte alignment padding.
//
// See: https://git-scm.com/docs/index-format#_index_entry
func parseIndexEntry(file *os.File) (IndexEntry, error) {
	var entry IndexEntry

	statInfo, err := parseFileStat(file)
	if err != nil {
		return entry, fmt.Errorf("parsing file stat: %w", err)
	}
	entry.StatInfo = statInfo

	fixedSize := 62
	if entry.StatInfo.Flags&extendedFlag != 0 {
		var ext [2]byte
		if _, err := io.ReadFull(file, ext[:]); err != nil {
			return entry, fmt.Errorf("reading extended flags: %w", err)
		}
		entry.StatInfo.ExtendedFlags = binary.BigEndian.Uint16(ext[:])
		fixedSize += 2
	}

	pathLen := int(entry.StatInfo.Flags & 0xFFF)
	pathBuf := make([]byte, pathLen)
	n, err := io.ReadFull(file, pathBuf)
	if err != nil {
		return entry, fmt.Errorf("reading path of length %d (read %d): %w", pathLen, n, err)
	}
	entry.Path = string(pathBuf)

	// Entries are NUL-terminated and padded so the total size is a multiple
	// of eight bytes.
	totalRead := fixedSize + pathLen
	padding := 8 - totalRead%8
	padBuf := make([]byte, padding)
	if _, err := io.ReadFull(file, padBuf); err != nil {
		return entry, fmt.Errorf("reading %d bytes of padding: %w", padding, err)
	}

	return entry, nil
}

// parseFileStat reads the fixed 62-byte stat block of an index entry.
func parseFileStat(file *os.File) (FileStat, error) {
	var stat FileStat

	fixedData := make([]byte, 62)
	n, err := io.ReadFull(file, fixedData)
	if err != nil {
		return stat, fmt.Errorf("reading fixed data (read %d bytes): %w", n, err)
	}
	buf := bytes.NewReader(fixedData)

	var cTimeSec, cTimeNano, mTimeSec, mTimeNano uint32
	binary.Read(buf, binary.BigEndian, &cTimeSec)
	binary.Read(buf, binary.BigEndian, &cTimeNano)
	binary.Read(buf, binary.BigEndian, &mTimeSec)
	binary.Read(buf, binary.BigEndian, &mTimeNano)
	stat.CTime = time.Unix(int64(cTimeSec), int64(cTimeNano))
	stat.MTime = time.Unix(int64(mTimeSec), int64(mTimeNano))

	binary.Read(buf, binary.BigEndian, &stat.Device)
	binary.Read(buf, binary.BigEndian, &stat.Inode)
	binary.Read(buf, binary.BigEndian, &stat.Mode)
	binary.Read(buf, binary.BigEndian, &stat.UserID)
	binary.Read(buf, binary.BigEndian, &stat.GroupID)
	binary.Read(buf, binary.BigEndian, &stat.Size)
	binary.Read(buf, binary.BigEndian, &stat.Hash)
	binary.Read(buf, binary.BigEndian, &stat.Flags)

	return stat, nil
}
