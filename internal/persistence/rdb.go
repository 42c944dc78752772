package persistence

import (
	"bufio"
	"os"
	"time"

	"github.com/emberkv/ember/internal/store"
	"go.uber.org/zap"
)

// RDB writes and reads binary snapshots of a single database
type RDB struct {
	filename string
	logger   *zap.Logger
}

func NewRDB(filename string, logger *zap.Logger) *RDB {
	return &RDB{
		filename: filename,
		logger:   logger,
	}
}

// Save performs an atomic save: snapshot into a temp file, sync, rename
func (r *RDB) Save(db *store.Database) error {
	start := time.Now()
	tmpFile := r.filename + ".tmp"

	f, err := os.Create(tmpFile)
	if err != nil {
		return err
	}
	defer f.Close()
	writer := bufio.NewWriterSize(f, 4*1024*1024)

	if err := db.Snapshot(writer); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	f.Close()

	if err := os.Rename(tmpFile, r.filename); err != nil {
		return err
	}

	r.logger.Info("snapshot saved",
		zap.String("file", r.filename),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Load replaces the contents of db with the snapshot on disk
func (r *RDB) Load(db *store.Database) error {
	f, err := os.Open(r.filename)
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	if err := db.Restore(bufio.NewReader(f)); err != nil {
		return err
	}

	r.logger.Info("snapshot loaded",
		zap.String("file", r.filename),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
