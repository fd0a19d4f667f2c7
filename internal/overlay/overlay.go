// Package overlay holds in-memory cell edits layered over the immutable
// mapped bytes. Absence of a key means "use the original field"; the backing
// file is never touched.
package overlay

import "sync"

// Key addresses one cell.
type Key struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Overlay is a sparse (row, col) -> replacement value map with full
// undo/redo history. Reads and writes are serialized behind a single lock so
// a render pass and an export pass can run interleaved with edits.
type Overlay struct {
	mu    sync.RWMutex
	edits map[Key]string

	undo    []command
	redo    []command
	saved   bool
	history int
}

// defaultHistory bounds the undo stack depth.
const defaultHistory = 100

// New returns an empty overlay.
func New() *Overlay {
	return &Overlay{
		edits:   make(map[Key]string),
		saved:   true,
		history: defaultHistory,
	}
}

// Get returns the replacement value for a cell, if one exists.
func (o *Overlay) Get(row, col int) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.edits[Key{row, col}]
	return v, ok
}

// Set records an edit. old is the cell's current logical value, kept so the
// edit can be undone.
func (o *Overlay) Set(row, col int, old, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.execute(command{key: Key{row, col}, old: old, value: value, hadOld: o.hasLocked(row, col)})
}

// Clear removes the edit for a cell, reverting it to the original bytes.
// Clearing is itself undoable.
func (o *Overlay) Clear(row, col int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cur, ok := o.edits[Key{row, col}]
	if !ok {
		return
	}
	o.execute(command{key: Key{row, col}, old: cur, clear: true, hadOld: true})
}

// HasAny reports whether any edits exist, for dirty-state tracking.
func (o *Overlay) HasAny() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.edits) > 0
}

// Len returns the number of edited cells.
func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.edits)
}

// Dirty reports whether there are changes since the last MarkSaved.
func (o *Overlay) Dirty() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return !o.saved
}

// MarkSaved clears the dirty flag without touching the edits.
func (o *Overlay) MarkSaved() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.saved = true
}

// Snapshot returns a copy of the edit map.
func (o *Overlay) Snapshot() map[Key]string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[Key]string, len(o.edits))
	for k, v := range o.edits {
		out[k] = v
	}
	return out
}

// Reset drops all edits and history.
func (o *Overlay) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.edits = make(map[Key]string)
	o.undo = nil
	o.redo = nil
	o.saved = true
}

func (o *Overlay) hasLocked(row, col int) bool {
	_, ok := o.edits[Key{row, col}]
	return ok
}
