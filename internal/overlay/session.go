package overlay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pierrec/lz4/v4"
)

// sessionVersion guards the sidecar format.
const sessionVersion = 1

// SidecarPath returns the session sidecar path for a CSV file.
func SidecarPath(csvPath string) string {
	return csvPath + "_edits.lz4"
}

type sessionFile struct {
	Version int            `json:"version"`
	Edits   []sessionEntry `json:"edits"`
}

type sessionEntry struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Value string `json:"value"`
}

// SaveSession persists the current edits to an lz4-framed JSON sidecar so a
// later session can pick them up. History is not persisted.
func (o *Overlay) SaveSession(path string) error {
	o.mu.RLock()
	sf := sessionFile{Version: sessionVersion, Edits: make([]sessionEntry, 0, len(o.edits))}
	for k, v := range o.edits {
		sf.Edits = append(sf.Edits, sessionEntry{Row: k.Row, Col: k.Col, Value: v})
	}
	o.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}

	zw := lz4.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(sf); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadSession replaces the overlay's edits with the sidecar's content. The
// loaded state starts clean: no history, not dirty. A missing sidecar is not
// an error and leaves the overlay untouched.
func (o *Overlay) LoadSession(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sf sessionFile
	if err := json.NewDecoder(lz4.NewReader(f)).Decode(&sf); err != nil {
		return fmt.Errorf("failed to decode session: %w", err)
	}
	if sf.Version != sessionVersion {
		return fmt.Errorf("unsupported session version %d", sf.Version)
	}

	edits := make(map[Key]string, len(sf.Edits))
	for _, e := range sf.Edits {
		edits[Key{e.Row, e.Col}] = e.Value
	}

	o.mu.Lock()
	o.edits = edits
	o.undo = nil
	o.redo = nil
	o.saved = true
	o.mu.Unlock()
	return nil
}
