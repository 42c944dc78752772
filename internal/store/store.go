// Package store implements the typed concurrent keyspace: sixteen isolated
// databases with per-key expirations, LRU recency tracking, and size-bounded
// eviction.
package store

// NumDatabases is the fixed number of isolated keyspaces per server
const NumDatabases = 16

// Store owns all databases. Sessions address them by index; the databases
// share no keys and no locks.
type Store struct {
	dbs [NumDatabases]*Database
}

// New creates a store whose databases each evict beyond maxKeys live keys
func New(maxKeys int) *Store {
	s := &Store{}
	for i := range s.dbs {
		s.dbs[i] = NewDatabase(maxKeys)
	}
	return s
}

// DB returns the database at index n; ok is false when n is out of range
func (s *Store) DB(n int) (*Database, bool) {
	if n < 0 || n >= NumDatabases {
		return nil, false
	}
	return s.dbs[n], true
}

// TotalKeys sums the live entries across all databases
func (s *Store) TotalKeys() int {
	total := 0
	for _, db := range s.dbs {
		total += db.Len()
	}
	return total
}
