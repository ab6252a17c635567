package metadata

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Save writes a checkpoint snapshot to path in the legacy metadata.db
// format: little-endian, no magic, no version byte, no checksum (a known
// limitation carried over from the original format).
//
// The header count is read under countMu; each non-empty inner bucket is
// then streamed under its own lock. No cross-bucket fence is taken, so the
// snapshot reflects each inner bucket's point-in-time view rather than one
// instant for the whole table.
func (s *Store) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("metadata: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	total := s.Count()
	if err := writeU32(w, uint32(total)); err != nil {
		return err
	}

	for i := 0; i < OuterWidth; i++ {
		s.countMu.Lock()
		t := s.outer[i]
		s.countMu.Unlock()
		if t == nil {
			continue
		}

		if err := func() error {
			t.mu.Lock()
			defer t.mu.Unlock()
			for b := 0; b < InnerWidth; b++ {
				for n := t.buckets[b]; n != nil; n = n.next {
					if err := writeRecord(w, n.rec); err != nil {
						return err
					}
				}
			}
			return nil
		}(); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("metadata: flush %s: %w", path, err)
	}
	return nil
}

// Load reads a checkpoint snapshot from path and returns a populated Store.
// A missing file is not an error: it signals first boot, and the caller
// receives an empty Store. Load tolerates truncation: it stops on a short
// read without destroying the partially built table.
//
// is_backup is not persisted by the legacy format; every loaded entry has
// IsBackup=false until NS-driven recovery or replication reconstructs it.
func Load(path string) (*Store, error) {
	s := New()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("metadata: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	count, err := readU32(r)
	if err != nil {
		if err == io.EOF {
			return s, nil
		}
		return s, nil // truncated header: tolerate, return empty table
	}

	for i := uint32(0); i < count; i++ {
		rec, err := readRecord(r)
		if err != nil {
			// Truncated mid-record: stop without losing already-loaded entries.
			return s, nil
		}
		s.Insert(rec)
	}

	return s, nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	if err != nil {
		return fmt.Errorf("metadata: write: %w", err)
	}
	return nil
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	if err != nil {
		return fmt.Errorf("metadata: write: %w", err)
	}
	return nil
}

func writeLenPrefixedNullTerminated(w io.Writer, s string) error {
	// name_len/owner_len counts the trailing null terminator, matching the
	// legacy format's "null-terminated" byte layout.
	if err := writeU32(w, uint32(len(s)+1)); err != nil {
		return err
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("metadata: write: %w", err)
	}
	if _, err := w.Write([]byte{0}); err != nil {
		return fmt.Errorf("metadata: write: %w", err)
	}
	return nil
}

func writeRecord(w io.Writer, rec FileMetadata) error {
	if err := writeLenPrefixedNullTerminated(w, rec.Filename); err != nil {
		return err
	}
	if err := writeLenPrefixedNullTerminated(w, rec.Owner); err != nil {
		return err
	}
	if err := writeU64(w, rec.FileSize); err != nil {
		return err
	}
	if err := writeU64(w, rec.WordCount); err != nil {
		return err
	}
	if err := writeU64(w, rec.CharCount); err != nil {
		return err
	}
	if err := writeU64(w, uint64(rec.LastModified)); err != nil {
		return err
	}
	if err := writeU64(w, uint64(rec.LastAccess)); err != nil {
		return err
	}
	return nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readLenPrefixedNullTerminated(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	// Drop the trailing null terminator counted in n.
	if buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf), nil
}

func readRecord(r io.Reader) (FileMetadata, error) {
	var rec FileMetadata

	name, err := readLenPrefixedNullTerminated(r)
	if err != nil {
		return rec, err
	}
	owner, err := readLenPrefixedNullTerminated(r)
	if err != nil {
		return rec, err
	}
	size, err := readU64(r)
	if err != nil {
		return rec, err
	}
	words, err := readU64(r)
	if err != nil {
		return rec, err
	}
	chars, err := readU64(r)
	if err != nil {
		return rec, err
	}
	mtime, err := readU64(r)
	if err != nil {
		return rec, err
	}
	atime, err := readU64(r)
	if err != nil {
		return rec, err
	}

	rec.Filename = name
	rec.Owner = owner
	rec.FileSize = size
	rec.WordCount = words
	rec.CharCount = chars
	rec.LastModified = int64(mtime)
	rec.LastAccess = int64(atime)
	return rec, nil
}
