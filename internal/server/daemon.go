// Package server provides the Unix socket daemon a viewer shell talks to.
// One daemon fronts one open document; requests are line-delimited JSON.
package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/csvview/csvview/internal/analysis"
	"github.com/csvview/csvview/internal/document"
	"github.com/csvview/csvview/internal/overlay"
	"github.com/csvview/csvview/internal/watch"
)

// DaemonConfig holds configuration for the Unix socket daemon.
type DaemonConfig struct {
	SocketPath     string
	CsvPath        string
	Separator      byte
	NoHeader       bool
	MaxConcurrency int
	IdleTimeout    time.Duration
	Logger         *slog.Logger
}

// UDSDaemon serves viewer requests for a single document over a Unix socket.
type UDSDaemon struct {
	config   DaemonConfig
	listener net.Listener
	sem      chan struct{}
	shutdown chan struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger

	// mu serializes reload against in-flight readers.
	mu          sync.RWMutex
	doc         *document.Document
	fileChanged atomic.Bool
	watchStop   context.CancelFunc
}

// NewUDSDaemon creates a new Unix socket daemon.
func NewUDSDaemon(cfg DaemonConfig) *UDSDaemon {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 50
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = os.Getenv("CSVVIEW_SOCKET")
		if cfg.SocketPath == "" {
			cfg.SocketPath = "/tmp/csvview.sock"
		}
	}
	if cfg.Separator == 0 {
		cfg.Separator = ','
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &UDSDaemon{
		config:   cfg,
		sem:      make(chan struct{}, cfg.MaxConcurrency),
		shutdown: make(chan struct{}),
		logger:   logger,
	}
}

// Start opens the document, binds the socket and serves until Shutdown.
func (d *UDSDaemon) Start(ctx context.Context) error {
	// Remove stale socket file if exists
	if _, err := os.Stat(d.config.SocketPath); err == nil {
		if err := os.Remove(d.config.SocketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	doc, err := document.Open(ctx, document.Config{
		Path:      d.config.CsvPath,
		Separator: d.config.Separator,
		NoHeader:  d.config.NoHeader,
		Logger:    d.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	if err := doc.Overlay().LoadSession(overlay.SidecarPath(d.config.CsvPath)); err != nil {
		_ = doc.Close()
		return err
	}
	d.doc = doc

	if err := d.startWatcher(); err != nil {
		// Degrade: the viewer still works, status just never flags changes.
		d.logger.Warn("file watcher unavailable", "error", err)
	}

	listener, err := net.Listen("unix", d.config.SocketPath)
	if err != nil {
		if d.watchStop != nil {
			d.watchStop()
		}
		_ = doc.Close()
		return fmt.Errorf("failed to bind socket %s: %w", d.config.SocketPath, err)
	}
	d.listener = listener

	d.logger.Info("daemon started",
		"socket", d.config.SocketPath,
		"csv", d.config.CsvPath,
		"rows", doc.Rows(),
		"columns", doc.ColumnCount())

	for {
		select {
		case <-d.shutdown:
			return nil
		default:
		}

		// Accept deadline allows the periodic shutdown check.
		if ul, ok := listener.(*net.UnixListener); ok {
			_ = ul.SetDeadline(time.Now().Add(1 * time.Second))
		}

		conn, err := listener.Accept()
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && opErr.Timeout() {
				continue
			}
			select {
			case <-d.shutdown:
				return nil
			default:
				d.logger.Warn("accept error", "error", err)
				continue
			}
		}

		d.wg.Add(1)
		go d.handleConnection(conn)
	}
}

// Shutdown gracefully stops the daemon.
func (d *UDSDaemon) Shutdown() {
	close(d.shutdown)
	if d.watchStop != nil {
		d.watchStop()
	}
	if d.listener != nil {
		_ = d.listener.Close()
	}
	d.wg.Wait()

	if d.doc != nil {
		_ = d.doc.Close()
	}
	_ = os.Remove(d.config.SocketPath)
	d.logger.Info("daemon shutdown complete")
}

// startWatcher flags external modifications of the backing file; status
// reports the flag until a reload clears it.
func (d *UDSDaemon) startWatcher() error {
	w, err := watch.New(d.config.CsvPath, d.logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.watchStop = func() {
		cancel()
		_ = w.Close()
	}
	go w.Run(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events():
				if !ok {
					return
				}
				d.fileChanged.Store(true)
				d.logger.Info("backing file changed externally", "removed", ev.Removed)
			}
		}
	}()
	return nil
}

// handleConnection processes a single client connection.
func (d *UDSDaemon) handleConnection(conn net.Conn) {
	defer d.wg.Done()
	defer func() { _ = conn.Close() }()

	// Acquire worker slot
	select {
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	case <-d.shutdown:
		return
	}

	reader := bufio.NewReader(conn)

	for {
		select {
		case <-d.shutdown:
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(d.config.IdleTimeout))

		line, err := reader.ReadBytes('\n')
		if err != nil {
			return // EOF or timeout
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		response := d.processRequest(line)

		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_, _ = conn.Write(response)
		_, _ = conn.Write([]byte("\n"))
	}
}

// DaemonRequest represents an incoming JSON request. Col is a pointer so
// "analyze" can distinguish a missing column from column 0.
type DaemonRequest struct {
	Action string `json:"action"`
	Row    int    `json:"row,omitempty"`
	Col    *int   `json:"col,omitempty"`
	Count  int    `json:"count,omitempty"`
	Value  string `json:"value,omitempty"`
}

func (r DaemonRequest) col() (int, error) {
	if r.Col == nil {
		return 0, fmt.Errorf("col is required for action %q", r.Action)
	}
	return *r.Col, nil
}

// processRequest handles a single JSON request.
func (d *UDSDaemon) processRequest(data []byte) []byte {
	var req DaemonRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return d.errorResponse("invalid JSON: " + err.Error())
	}

	switch req.Action {
	case "ping":
		return d.successResponse(map[string]interface{}{"pong": true})

	case "status":
		return d.handleStatus()

	case "rows":
		return d.handleRows(req)

	case "cell":
		return d.handleCell(req)

	case "set":
		return d.handleSet(req)

	case "clear":
		return d.handleClear(req)

	case "undo":
		return d.handleHistory(true)

	case "redo":
		return d.handleHistory(false)

	case "analyze":
		return d.handleAnalyze(req)

	case "save-session":
		return d.handleSaveSession()

	case "reload":
		return d.handleReload()

	default:
		return d.errorResponse("unknown action: " + req.Action)
	}
}

// handleStatus returns daemon status.
func (d *UDSDaemon) handleStatus() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.successResponse(map[string]interface{}{
		"status":      "running",
		"csv":         d.doc.Path(),
		"rows":        d.doc.Rows(),
		"dataRows":    d.doc.DataRows(),
		"columns":     d.doc.Columns(),
		"edits":       d.doc.Overlay().Len(),
		"dirty":       d.doc.Dirty(),
		"fileChanged": d.fileChanged.Load(),
		"socketPath":  d.config.SocketPath,
	})
}

// handleRows returns a window of materialized rows, values in column order.
func (d *UDSDaemon) handleRows(req DaemonRequest) []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	count := req.Count
	if count <= 0 {
		count = 100
	}
	end := req.Row + count
	if end > d.doc.Rows() {
		end = d.doc.Rows()
	}

	rows := make([][]string, 0, count)
	for i := req.Row; i < end; i++ {
		values, err := d.doc.RowValues(i)
		if err != nil {
			return d.errorResponse(err.Error())
		}
		rows = append(rows, values)
	}
	return d.successResponse(map[string]interface{}{"start": req.Row, "rows": rows})
}

// handleCell returns one materialized cell.
func (d *UDSDaemon) handleCell(req DaemonRequest) []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	col, err := req.col()
	if err != nil {
		return d.errorResponse(err.Error())
	}
	value, err := d.doc.Cell(req.Row, col)
	if err != nil {
		return d.errorResponse(err.Error())
	}
	_, edited := d.doc.Overlay().Get(req.Row, col)
	return d.successResponse(map[string]interface{}{"value": value, "edited": edited})
}

// handleSet applies a cell edit.
func (d *UDSDaemon) handleSet(req DaemonRequest) []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	col, err := req.col()
	if err != nil {
		return d.errorResponse(err.Error())
	}
	if err := d.doc.Set(req.Row, col, req.Value); err != nil {
		return d.errorResponse(err.Error())
	}
	return d.successResponse(map[string]interface{}{"edits": d.doc.Overlay().Len()})
}

// handleClear drops a pending edit.
func (d *UDSDaemon) handleClear(req DaemonRequest) []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	col, err := req.col()
	if err != nil {
		return d.errorResponse(err.Error())
	}
	d.doc.ClearEdit(req.Row, col)
	return d.successResponse(map[string]interface{}{"edits": d.doc.Overlay().Len()})
}

// handleHistory performs one undo or redo step.
func (d *UDSDaemon) handleHistory(undo bool) []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ov := d.doc.Overlay()
	var ok bool
	if undo {
		ok = ov.Undo()
	} else {
		ok = ov.Redo()
	}
	return d.successResponse(map[string]interface{}{
		"applied": ok,
		"canUndo": ov.CanUndo(),
		"canRedo": ov.CanRedo(),
	})
}

// handleAnalyze profiles one column or the whole document.
func (d *UDSDaemon) handleAnalyze(req DaemonRequest) []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if req.Col != nil {
		profile, err := analysis.AnalyzeColumn(d.doc, *req.Col)
		if err != nil {
			return d.errorResponse(err.Error())
		}
		return d.successResponse(map[string]interface{}{"profile": profile})
	}
	profiles, err := analysis.Analyze(d.doc)
	if err != nil {
		return d.errorResponse(err.Error())
	}
	return d.successResponse(map[string]interface{}{"profiles": profiles})
}

// handleSaveSession persists pending edits to the sidecar.
func (d *UDSDaemon) handleSaveSession() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	path := overlay.SidecarPath(d.doc.Path())
	if err := d.doc.Overlay().SaveSession(path); err != nil {
		return d.errorResponse(err.Error())
	}
	d.doc.Overlay().MarkSaved()
	return d.successResponse(map[string]interface{}{"sidecar": path})
}

// handleReload re-indexes the backing file, discarding pending edits.
func (d *UDSDaemon) handleReload() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.doc.Reload(context.Background()); err != nil {
		return d.errorResponse(err.Error())
	}
	d.fileChanged.Store(false)
	return d.successResponse(map[string]interface{}{
		"rows":    d.doc.Rows(),
		"columns": d.doc.ColumnCount(),
	})
}

// errorResponse creates an error JSON response.
func (d *UDSDaemon) errorResponse(msg string) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return b
}

// successResponse creates a success JSON response.
func (d *UDSDaemon) successResponse(data map[string]interface{}) []byte {
	data["error"] = nil
	b, _ := json.Marshal(data)
	return b
}

// RunDaemon is the entry point called from main.go.
func RunDaemon(ctx context.Context, cfg DaemonConfig) error {
	if cfg.CsvPath == "" {
		return fmt.Errorf("csv path is required")
	}
	if _, err := os.Stat(cfg.CsvPath); os.IsNotExist(err) {
		return fmt.Errorf("CSV file not found: %s", cfg.CsvPath)
	}

	daemon := NewUDSDaemon(cfg)
	go func() {
		select {
		case <-ctx.Done():
			daemon.Shutdown()
		case <-daemon.shutdown:
		}
	}()
	return daemon.Start(ctx)
}
