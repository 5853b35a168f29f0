// Package catalog tracks table schemas. Table and index root page ids
// already live in the page file's header page (storage.HeaderPage); what the
// header page cannot hold is column definitions, so the catalog persists
// those alongside the page file as a JSON sidecar, the same pattern the
// teacher used for its table meta files.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tuannm99/novasql/internal/storage"
)

var ErrTableNotFound = errors.New("catalog: table not found")

// TableMeta is one table's durable schema record.
type TableMeta struct {
	Name      string           `json:"name"`
	Columns   []storage.Column `json:"columns"`
	CreatedAt time.Time        `json:"created_at"`
}

// Catalog is the in-memory, JSON-backed registry of table schemas for one
// database directory.
type Catalog struct {
	mu     sync.RWMutex
	path   string
	tables map[string]TableMeta
}

// Open loads the catalog file at path, creating an empty catalog if it does
// not yet exist.
func Open(path string) (*Catalog, error) {
	c := &Catalog{path: path, tables: make(map[string]TableMeta)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var tables []TableMeta
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	for _, tm := range tables {
		c.tables[tm.Name] = tm
	}
	return c, nil
}

func (c *Catalog) saveLocked() error {
	tables := make([]TableMeta, 0, len(c.tables))
	for _, tm := range c.tables {
		tables = append(tables, tm)
	}
	data, err := json.MarshalIndent(tables, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, storage.FileMode0644)
}

// CreateTable registers name with the given columns. Returns an error if the
// name is already registered.
func (c *Catalog) CreateTable(name string, cols []storage.Column) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[name]; exists {
		return fmt.Errorf("catalog: table %q already exists", name)
	}
	c.tables[name] = TableMeta{Name: name, Columns: cols, CreatedAt: time.Now()}
	return c.saveLocked()
}

// Schema returns the storage.Schema for a registered table.
func (c *Catalog) Schema(name string) (storage.Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tm, ok := c.tables[name]
	if !ok {
		return storage.Schema{}, ErrTableNotFound
	}
	return storage.Schema{Cols: tm.Columns}, nil
}

// Tables lists every registered table name.
func (c *Catalog) Tables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	return names
}
