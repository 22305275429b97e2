// Package stmtcache implements the cache of named, compiled statements of a
// database instance. Every structural change to the cache is mirrored into
// the instance's metadata table, so that the cache may be rebuilt after a
// restart or copy.
package stmtcache

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.gazette.dev/sqlkv/engine"
	"go.gazette.dev/sqlkv/metadata"
	"go.gazette.dev/sqlkv/sqlerr"
)

// Cache maps statement identifiers to compiled statements. IsPresent may be
// called from any goroutine. All other methods use the Conn of the Cache,
// and the caller must hold its lock.
type Cache struct {
	conn *engine.Conn

	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	stmt     *engine.MultiStatement
	readOnly bool
}

// New returns an empty Cache of statements compiled against |conn|.
func New(conn *engine.Conn) *Cache {
	return &Cache{conn: conn, entries: make(map[string]entry)}
}

// IsPresent returns whether |id| is cached.
func (c *Cache) IsPresent(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var _, ok = c.entries[id]
	return ok
}

// IDs returns cached identifiers in sorted order.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out = make([]string, 0, len(c.entries))
	for id := range c.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Insert compiles |text| as new statement |id|, and records it in metadata.
func (c *Cache) Insert(id, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		return sqlerr.ErrStatementExists
	}
	var stmt, err = c.conn.Prepare(text)
	if err != nil {
		return err
	}
	if err = metadata.InsertStatement(c.conn, id, text); err != nil {
		_ = stmt.Close()
		return err
	}
	c.entries[id] = entry{stmt: stmt, readOnly: stmt.IsReadOnly()}
	return nil
}

// Update replaces the statement |id| with a compilation of |text|.
func (c *Cache) Update(id, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var prev, ok = c.entries[id]
	if !ok {
		return sqlerr.StatementNotPresent("update")
	}
	var stmt, err = c.conn.Prepare(text)
	if err != nil {
		return err
	}
	if err = metadata.UpdateStatement(c.conn, id, text); err != nil {
		_ = stmt.Close()
		return err
	}
	_ = prev.stmt.Close()
	c.entries[id] = entry{stmt: stmt, readOnly: stmt.IsReadOnly()}
	return nil
}

// Delete removes the statement |id|.
func (c *Cache) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var prev, ok = c.entries[id]
	if !ok {
		return sqlerr.StatementNotPresent("delete")
	}
	if err := metadata.DeleteStatement(c.conn, id); err != nil {
		return err
	}
	_ = prev.stmt.Close()
	delete(c.entries, id)
	return nil
}

// Query executes read-only statement |id| with |args|.
func (c *Cache) Query(id string, args []string) (*engine.Cursor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var e, ok = c.entries[id]
	if !ok {
		return nil, sqlerr.ErrStatementNotFound
	} else if !e.readOnly {
		return nil, sqlerr.ErrNotReadOnly
	}
	return e.stmt.Execute(args)
}

// Exec executes statement |id| with |args|, whether or not it may modify
// the database.
func (c *Cache) Exec(id string, args []string) (*engine.Cursor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var e, ok = c.entries[id]
	if !ok {
		return nil, sqlerr.ErrStatementNotFound
	}
	return e.stmt.Execute(args)
}

// Restore compiles each statement recorded in metadata which is not already
// cached. A statement which fails to compile is logged and skipped, and
// doesn't prevent the restoration of others. Restore returns the number of
// statements restored.
func (c *Cache) Restore() (int, error) {
	var rows, skipped, err = metadata.Statements(c.conn)
	if err != nil {
		return 0, err
	} else if skipped != 0 {
		log.WithField("skipped", skipped).Warn("skipped malformed statement metadata rows")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var restored int
	for _, row := range rows {
		if _, ok := c.entries[row.ID]; ok {
			continue
		}
		var stmt, err = c.conn.Prepare(row.Text)
		if err != nil {
			log.WithFields(log.Fields{"id": row.ID, "err": err}).
				Warn("failed to restore statement from metadata")
			continue
		}
		c.entries[row.ID] = entry{stmt: stmt, readOnly: stmt.IsReadOnly()}
		restored++
	}
	return restored, nil
}

// Clear finalizes and removes all cached statements, without changing
// metadata.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, e := range c.entries {
		_ = e.stmt.Close()
		delete(c.entries, id)
	}
}
