// Package memory provides an in-memory invoice workspace for tests and the
// default development backend.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"soji/internal/invoice"
)

// Workspace is a fake spreadsheet workspace. It tracks how many scratch
// copies are alive so tests can assert cleanup, and can be told to fail any
// step of the render flow.
type Workspace struct {
	mu      sync.Mutex
	live    int
	copies  int
	lastDoc *ScratchState

	FailCopy   bool
	FailExport bool
}

// ScratchState records everything written to one scratch copy.
type ScratchState struct {
	Cells        map[string]string
	Replacements map[string]string
	Rows         [][]string
	StartRow     int
	Discarded    bool
}

func NewWorkspace() *Workspace {
	return &Workspace{}
}

// LiveScratchCount returns the number of scratch copies not yet discarded.
func (w *Workspace) LiveScratchCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.live
}

// CopyCount returns how many scratch copies were ever created.
func (w *Workspace) CopyCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.copies
}

// LastScratch returns the most recently created scratch state.
func (w *Workspace) LastScratch() *ScratchState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastDoc
}

func (w *Workspace) CopyTemplate(ctx context.Context) (invoice.Scratch, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.FailCopy {
		return nil, errors.New("copy template failed")
	}
	w.live++
	w.copies++
	state := &ScratchState{
		Cells:        make(map[string]string),
		Replacements: make(map[string]string),
	}
	w.lastDoc = state
	return &Scratch{ws: w, state: state}, nil
}

// Scratch is one fake working copy.
type Scratch struct {
	ws    *Workspace
	state *ScratchState
}

func (s *Scratch) SetCell(ctx context.Context, cell, value string) error {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	s.state.Cells[cell] = value
	return nil
}

func (s *Scratch) ReplaceText(ctx context.Context, placeholder, value string) error {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	s.state.Replacements[placeholder] = value
	return nil
}

func (s *Scratch) InsertItemRows(ctx context.Context, startRow int, rows [][]string) error {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	s.state.StartRow = startRow
	s.state.Rows = rows
	return nil
}

func (s *Scratch) ExportPDF(ctx context.Context) ([]byte, error) {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	if s.ws.FailExport {
		return nil, errors.New("export failed")
	}
	return []byte(fmt.Sprintf("%%PDF-fake %d rows", len(s.state.Rows))), nil
}

func (s *Scratch) Discard(ctx context.Context) error {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	if s.state.Discarded {
		return errors.New("scratch already discarded")
	}
	s.state.Discarded = true
	s.ws.live--
	return nil
}
