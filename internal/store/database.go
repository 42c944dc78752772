package store

import (
	"container/list"
	"errors"
	"strconv"
	"sync"
	"time"
)

// Errors surfaced to clients. The texts are sent verbatim in error replies.
var (
	ErrWrongType  = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	ErrNotInteger = errors.New("ERR value is not an integer")
	ErrOverflow   = errors.New("ERR increment or decrement would overflow")
)

// Database is one isolated keyspace. A single mutex guards the value map,
// the expiration table, and the recency list, so every operation observes
// all three in a consistent state.
//
// Write order inside the lock: probe-expire, drop a conflicting variant,
// apply, move to the recency front, evict from the tail while over the
// key threshold. Reads probe-expire and touch the recency list on a hit.
type Database struct {
	mu      sync.Mutex
	data    map[string]*Entity
	expires map[string]int64 // absolute unix seconds
	order   *list.List       // most-recent-first; elements hold keys
	index   map[string]*list.Element
	maxKeys int
}

// NewDatabase creates an empty keyspace evicting beyond maxKeys live keys
func NewDatabase(maxKeys int) *Database {
	return &Database{
		data:    make(map[string]*Entity),
		expires: make(map[string]int64),
		order:   list.New(),
		index:   make(map[string]*list.Element),
		maxKeys: maxKeys,
	}
}

// Set stores a string value, overwriting any prior value (a hash included)
// and clearing any TTL on the key
func (db *Database) Set(key string, value []byte) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.probeExpire(key, time.Now().Unix())
	db.data[key] = &Entity{Type: TypeString, Str: value}
	delete(db.expires, key)
	db.touch(key)
	db.evict()
}

// Get returns the string value of key. ok is false when the key is absent;
// ErrWrongType is returned when the key holds a hash.
func (db *Database) Get(key string) (value []byte, ok bool, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.probeExpire(key, time.Now().Unix())
	ent, ok := db.data[key]
	if !ok {
		return nil, false, nil
	}
	if ent.Type != TypeString {
		return nil, false, ErrWrongType
	}
	db.touch(key)
	return ent.Str, true, nil
}

// Del removes key with its TTL and recency entries; reports whether it existed
func (db *Database) Del(key string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.probeExpire(key, time.Now().Unix())
	if _, ok := db.data[key]; !ok {
		return false
	}
	db.remove(key)
	return true
}

// Exists reports whether key is live
func (db *Database) Exists(key string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.probeExpire(key, time.Now().Unix())
	if _, ok := db.data[key]; !ok {
		return false
	}
	db.touch(key)
	return true
}

// Keys returns every live key. Expired keys encountered on the way are
// collected lazily, exactly as a per-key access would.
func (db *Database) Keys() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now().Unix()
	for key, exp := range db.expires {
		if exp <= now {
			db.remove(key)
		}
	}

	keys := make([]string, 0, len(db.data))
	for key := range db.data {
		keys = append(keys, key)
	}
	return keys
}

// Expire sets an absolute TTL of now+seconds on key; false when key is absent
func (db *Database) Expire(key string, seconds int64) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now().Unix()
	db.probeExpire(key, now)
	if _, ok := db.data[key]; !ok {
		return false
	}
	db.expires[key] = now + seconds
	db.touch(key)
	return true
}

// TTL returns the seconds remaining, -1 when key has no TTL, -2 when absent
func (db *Database) TTL(key string) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now().Unix()
	db.probeExpire(key, now)
	if _, ok := db.data[key]; !ok {
		return -2
	}
	db.touch(key)
	exp, ok := db.expires[key]
	if !ok {
		return -1
	}
	return exp - now
}

// IncrBy adjusts the counter at key by delta, creating it at zero when
// absent. The stored value must be strict signed 64-bit decimal text.
func (db *Database) IncrBy(key string, delta int64) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.probeExpire(key, time.Now().Unix())

	var current int64
	if ent, ok := db.data[key]; ok {
		if ent.Type != TypeString {
			return 0, ErrWrongType
		}
		n, err := parseCounter(ent.Str)
		if err != nil {
			return 0, err
		}
		current = n
	}

	next, ok := addChecked(current, delta)
	if !ok {
		return 0, ErrOverflow
	}

	db.data[key] = &Entity{Type: TypeString, Str: strconv.AppendInt(nil, next, 10)}
	db.touch(key)
	db.evict()
	return next, nil
}

// Append concatenates value onto the string at key, creating the key with
// exactly the supplied bytes when absent. Returns the new length.
func (db *Database) Append(key string, value []byte) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.probeExpire(key, time.Now().Unix())
	ent, ok := db.data[key]
	if ok && ent.Type != TypeString {
		return 0, ErrWrongType
	}
	if !ok {
		ent = &Entity{Type: TypeString}
		db.data[key] = ent
	}
	ent.Str = append(ent.Str, value...)
	db.touch(key)
	db.evict()
	return len(ent.Str), nil
}

// StrLen returns the length of the string at key, 0 when absent
func (db *Database) StrLen(key string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.probeExpire(key, time.Now().Unix())
	ent, ok := db.data[key]
	if !ok {
		return 0, nil
	}
	if ent.Type != TypeString {
		return 0, ErrWrongType
	}
	db.touch(key)
	return len(ent.Str), nil
}

// HSet stores field in the hash at key, creating the hash when the key is
// absent. Returns 1 for a new field, 0 for an update. A key holding a
// string is an error, never an overwrite.
func (db *Database) HSet(key, field string, value []byte) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.probeExpire(key, time.Now().Unix())
	ent, ok := db.data[key]
	if ok && ent.Type != TypeHash {
		return 0, ErrWrongType
	}
	if !ok {
		ent = &Entity{Type: TypeHash, Hash: make(map[string][]byte)}
		db.data[key] = ent
	}

	_, had := ent.Hash[field]
	ent.Hash[field] = value
	db.touch(key)
	db.evict()
	if had {
		return 0, nil
	}
	return 1, nil
}

// HGet returns the value of field in the hash at key
func (db *Database) HGet(key, field string) (value []byte, ok bool, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.probeExpire(key, time.Now().Unix())
	ent, ok := db.data[key]
	if !ok {
		return nil, false, nil
	}
	if ent.Type != TypeHash {
		return nil, false, ErrWrongType
	}
	db.touch(key)
	v, ok := ent.Hash[field]
	return v, ok, nil
}

// Len returns the number of live entries without probing expirations
func (db *Database) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.data)
}

// DeleteExpired samples up to limit keys from the expiration table and
// removes the ones already past due. Returns the expired/checked ratio so
// the caller can decide whether to sweep again immediately.
func (db *Database) DeleteExpired(limit int) float64 {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(db.expires) == 0 {
		return 0.0
	}

	checked := 0
	expired := 0
	now := time.Now().Unix()

	// go map iteration is randomized by design
	for key, exp := range db.expires {
		checked++
		if exp <= now {
			db.remove(key)
			expired++
		}
		if checked >= limit {
			break
		}
	}

	return float64(expired) / float64(checked)
}

// probeExpire removes key if its TTL has passed. Callers hold the lock.
func (db *Database) probeExpire(key string, now int64) {
	if exp, ok := db.expires[key]; ok && exp <= now {
		db.remove(key)
	}
}

// remove drops the value, the TTL entry, and the recency node together
func (db *Database) remove(key string) {
	delete(db.data, key)
	delete(db.expires, key)
	if el, ok := db.index[key]; ok {
		db.order.Remove(el)
		delete(db.index, key)
	}
}

// touch moves key to the recency front, inserting it when new
func (db *Database) touch(key string) {
	if el, ok := db.index[key]; ok {
		db.order.MoveToFront(el)
		return
	}
	db.index[key] = db.order.PushFront(key)
}

// evict pops least-recent keys until the live count is within bound
func (db *Database) evict() {
	for len(db.data) > db.maxKeys {
		el := db.order.Back()
		if el == nil {
			return
		}
		db.remove(el.Value.(string))
	}
}

// parseCounter parses strict signed 64-bit decimal text: no surrounding
// whitespace, no sign-only forms, and the value must round-trip back to
// the identical text.
func parseCounter(b []byte) (int64, error) {
	s := string(b)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	if strconv.FormatInt(n, 10) != s {
		return 0, ErrNotInteger
	}
	return n, nil
}

func addChecked(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}
