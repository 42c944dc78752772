package store

import (
	"container/list"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Snapshot binary layout, all integers little-endian:
//
//	u32 num_entries
//	per entry:
//	  u8  type            0 = string, 1 = hash
//	  u32 key_len, key bytes
//	  string: u32 val_len, val bytes
//	  hash:   u32 num_fields, then per field u32+bytes field, u32+bytes value
//	  i64 expiry          absolute unix seconds, 0 = no TTL

// Snapshot serializes the whole database into w
func (db *Database) Snapshot(w io.Writer) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := writeU32(w, uint32(len(db.data))); err != nil {
		return err
	}

	for key, ent := range db.data {
		var kind byte
		if ent.Type == TypeHash {
			kind = 1
		}
		if _, err := w.Write([]byte{kind}); err != nil {
			return err
		}
		if err := writeBytes(w, []byte(key)); err != nil {
			return err
		}

		switch ent.Type {
		case TypeString:
			if err := writeBytes(w, ent.Str); err != nil {
				return err
			}
		case TypeHash:
			if err := writeU32(w, uint32(len(ent.Hash))); err != nil {
				return err
			}
			for field, value := range ent.Hash {
				if err := writeBytes(w, []byte(field)); err != nil {
					return err
				}
				if err := writeBytes(w, value); err != nil {
					return err
				}
			}
		}

		exp := db.expires[key] // zero value means no TTL
		if err := writeI64(w, exp); err != nil {
			return err
		}
	}

	return nil
}

// Restore clears the database and repopulates it from r. Entries whose
// expiry has already passed are dropped; the recency list is rebuilt in
// stream order.
func (db *Database) Restore(r io.Reader) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	count, err := readU32(r)
	if err != nil {
		return err
	}

	db.data = make(map[string]*Entity, count)
	db.expires = make(map[string]int64)
	db.order.Init()
	db.index = make(map[string]*list.Element)

	now := time.Now().Unix()

	for i := uint32(0); i < count; i++ {
		var kind [1]byte
		if _, err := io.ReadFull(r, kind[:]); err != nil {
			return err
		}

		keyBuf, err := readBytes(r)
		if err != nil {
			return err
		}
		key := string(keyBuf)

		ent := &Entity{}
		switch kind[0] {
		case 0:
			ent.Type = TypeString
			if ent.Str, err = readBytes(r); err != nil {
				return err
			}
		case 1:
			ent.Type = TypeHash
			fields, err := readU32(r)
			if err != nil {
				return err
			}
			ent.Hash = make(map[string][]byte, fields)
			for j := uint32(0); j < fields; j++ {
				field, err := readBytes(r)
				if err != nil {
					return err
				}
				value, err := readBytes(r)
				if err != nil {
					return err
				}
				ent.Hash[string(field)] = value
			}
		default:
			return fmt.Errorf("snapshot: unknown entry type %d", kind[0])
		}

		exp, err := readI64(r)
		if err != nil {
			return err
		}
		if exp != 0 && exp <= now {
			continue
		}

		db.data[key] = ent
		if exp > 0 {
			db.expires[key] = exp
		}
		db.index[key] = db.order.PushFront(key)
	}

	db.evict()
	return nil
}

func writeU32(w io.Writer, n uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], n)
	_, err := w.Write(buf[:])
	return err
}

func writeI64(w io.Writer, n int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	_, err := w.Write(buf[:])
	return err
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeU32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readI64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
