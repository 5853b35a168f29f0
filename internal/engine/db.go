// Package engine is a thin facade wiring the storage core together: one
// page file, one buffer pool, a schema catalog, and table/index handles
// opened against them. It replaces the teacher's top-level Database/
// StorageManager pair and its SQL-layer entry point (both out of scope,
// spec.md §1 Non-goals) with just enough surface for cmd/shell and tests to
// drive heap+btree end to end.
package engine

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/tuannm99/novasql/internal/btree"
	"github.com/tuannm99/novasql/internal/buffer"
	"github.com/tuannm99/novasql/internal/catalog"
	"github.com/tuannm99/novasql/internal/config"
	"github.com/tuannm99/novasql/internal/heap"
	"github.com/tuannm99/novasql/internal/storage"
	"github.com/tuannm99/novasql/internal/wal"
)

var ErrDatabaseClosed = errors.New("engine: database is closed")

// Database owns one page file, one buffer pool, and the catalog tracking
// table schemas for that page file.
type Database struct {
	mu     sync.Mutex
	cfg    config.Config
	disk   *storage.FileDisk
	pool   *buffer.Pool
	cat    *catalog.Catalog
	wal    *wal.Manager
	closed bool
}

// Open creates (or reopens) a database rooted at dataDir: dataDir/data.db is
// the page file, dataDir/catalog.json the schema catalog, dataDir/wal the
// redo log.
func Open(dataDir string, cfg config.Config) (*Database, error) {
	if err := os.MkdirAll(dataDir, storage.FileMode0755); err != nil {
		return nil, err
	}
	disk, err := storage.OpenFileDisk(filepath.Join(dataDir, "data.db"))
	if err != nil {
		return nil, err
	}

	w, err := wal.Open(filepath.Join(dataDir, "wal"))
	if err != nil {
		_ = disk.Close()
		return nil, err
	}
	if err := w.Recover(disk); err != nil {
		_ = disk.Close()
		return nil, err
	}

	pool := buffer.New(disk, cfg.PoolSize, cfg.ReplacerK)
	pool.SetWAL(w)

	cat, err := catalog.Open(filepath.Join(dataDir, "catalog.json"))
	if err != nil {
		_ = disk.Close()
		return nil, err
	}

	return &Database{cfg: cfg, disk: disk, pool: pool, cat: cat, wal: w}, nil
}

func (db *Database) ensureOpen() error {
	if db.closed {
		return ErrDatabaseClosed
	}
	return nil
}

// CreateTable registers name in the catalog and opens its (initially empty)
// heap table.
func (db *Database) CreateTable(name string, schema storage.Schema) (*heap.Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}

	if err := db.cat.CreateTable(name, schema.Cols); err != nil {
		return nil, err
	}
	return heap.Open(db.pool, name, schema)
}

// OpenTable reopens a table previously created in this database.
func (db *Database) OpenTable(name string) (*heap.Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}

	schema, err := db.cat.Schema(name)
	if err != nil {
		return nil, err
	}
	return heap.Open(db.pool, name, schema)
}

// CreateIndex opens (creating if needed) a B+Tree index named indexName,
// independent of any particular table's row storage.
func (db *Database) CreateIndex(indexName string, leafMax, internalMax int) (*btree.Tree, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}
	if leafMax <= 0 {
		leafMax = db.cfg.LeafMaxSize
	}
	if internalMax <= 0 {
		internalMax = db.cfg.InternalMaxSize
	}
	return btree.Open(db.pool, indexName, leafMax, internalMax), nil
}

// SeqScan opens a sequential scan executor over the named table (§9
// "Demo executors").
func (db *Database) SeqScan(tableName string) (*SeqScanExecutor, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}

	schema, err := db.cat.Schema(tableName)
	if err != nil {
		return nil, err
	}
	tbl, err := heap.Open(db.pool, tableName, schema)
	if err != nil {
		return nil, err
	}
	ex := NewSeqScanExecutor(tbl)
	if err := ex.Init(); err != nil {
		return nil, err
	}
	return ex, nil
}

// IndexScan opens an index scan executor walking indexName in key order,
// fetching each matching row out of tableName (§9 "Demo executors").
func (db *Database) IndexScan(indexName, tableName string) (*IndexScanExecutor, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.ensureOpen(); err != nil {
		return nil, err
	}

	schema, err := db.cat.Schema(tableName)
	if err != nil {
		return nil, err
	}
	tbl, err := heap.Open(db.pool, tableName, schema)
	if err != nil {
		return nil, err
	}
	idx := btree.Open(db.pool, indexName, db.cfg.LeafMaxSize, db.cfg.InternalMaxSize)

	ex := NewIndexScanExecutor(idx, tbl)
	if err := ex.Init(); err != nil {
		return nil, err
	}
	return ex, nil
}

// Pool exposes the underlying buffer pool.
func (db *Database) Pool() *buffer.Pool { return db.pool }

// Tables lists every table registered in the catalog.
func (db *Database) Tables() []string { return db.cat.Tables() }

// Close flushes all dirty pages and releases the page file.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true

	flushErr := db.pool.FlushAll()
	walErr := db.wal.Close()
	diskErr := db.disk.Close()
	if flushErr != nil {
		return flushErr
	}
	if walErr != nil {
		return walErr
	}
	return diskErr
}
