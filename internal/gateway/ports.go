// Package gateway defines how the budget document is read and written.
// Implementations live in the sub-packages and in internal/storage.
package gateway

import (
	"context"
	"errors"

	"budget/internal/core"
)

// The budget document lives under a fixed identifier in every backend.
const (
	Collection = "budgetData"
	DocumentID = "main"
)

// ErrNotFound is returned by Load when no document has been saved yet.
var ErrNotFound = errors.New("budget document not found")

// Gateway loads and saves the whole budget document.
type Gateway interface {
	Load(ctx context.Context) (core.Document, error)
	Save(ctx context.Context, doc core.Document) error
}
