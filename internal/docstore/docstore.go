// Package docstore defines the per-user remote document contract consumed by
// the ledger, and an in-process implementation of it.
package docstore

import (
	"context"
	"errors"

	"github.com/hray3182/SpendWise/internal/models"
)

var ErrNotFound = errors.New("document not found")

// Patch is a top-level merge: present fields replace the stored ones, absent
// fields are left as they are.
type Patch struct {
	Transactions *[]models.Transaction `json:"transactions,omitempty"`
	Categories   *models.Categories    `json:"categories,omitempty"`
}

// FullPatch builds a patch that overwrites every field of the document.
func FullPatch(data models.AppData) Patch {
	data = data.Clone()
	data.Normalize()
	return Patch{
		Transactions: &data.Transactions,
		Categories:   &data.Categories,
	}
}

// Apply merges p into base and returns the result.
func (p Patch) Apply(base models.AppData) models.AppData {
	out := base.Clone()
	if p.Transactions != nil {
		out.Transactions = append([]models.Transaction{}, (*p.Transactions)...)
	}
	if p.Categories != nil {
		out.Categories = p.Categories.Clone()
	}
	out.Normalize()
	return out
}

// ChangeFunc receives the document state. exists is false when no document is
// stored under the key; data is nil in that case.
type ChangeFunc func(data *models.AppData, exists bool)

// ErrorFunc is called once when a subscription fails; no further callbacks follow.
type ErrorFunc func(err error)

// Unsubscribe releases a subscription. It is safe to call more than once.
type Unsubscribe func()

// RemoteDocumentStore is the per-user document store.
//
// Subscribe delivers the current state once and then every later change for the
// key, in order. Callbacks may run on any goroutine, and must not block for long.
type RemoteDocumentStore interface {
	ReadOnce(ctx context.Context, key string) (*models.AppData, error)
	Subscribe(ctx context.Context, key string, onChange ChangeFunc, onError ErrorFunc) (Unsubscribe, error)
	WriteMerge(ctx context.Context, key string, patch Patch) error
	Delete(ctx context.Context, key string) error
}
