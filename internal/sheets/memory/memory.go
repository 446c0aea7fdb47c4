// Package memory is an in-memory EventWriter for tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "buste/internal/sheets"
)

type Writer struct {
	mu   sync.Mutex
	rows []ports.EventRow
}

var _ ports.EventWriter = (*Writer)(nil)

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Append(_ context.Context, row ports.EventRow) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, row)
	return fmt.Sprintf("mem:%d", len(w.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (w *Writer) Rows() []ports.EventRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ports.EventRow, len(w.rows))
	copy(out, w.rows)
	return out
}
