// Package export writes snapshots and reports to downloadable files.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hray3182/SpendWise/internal/models"
)

var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Filename names a snapshot export after the given day.
func Filename(now time.Time) string {
	return "expense-tracker-data-" + now.Format(models.DateLayout) + ".json"
}

// Snapshot serialises data as indented JSON. Output is deterministic for
// equal input.
func Snapshot(data models.AppData) ([]byte, error) {
	data = data.Clone()
	data.Normalize()
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return b, nil
}

// ParseSnapshot decodes an exported snapshot and checks its shape.
func ParseSnapshot(b []byte) (models.AppData, error) {
	var raw struct {
		Transactions *[]models.Transaction `json:"transactions"`
		Categories   *models.Categories    `json:"categories"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&raw); err != nil {
		return models.AppData{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if raw.Transactions == nil || raw.Categories == nil {
		return models.AppData{}, fmt.Errorf("%w: transactions and categories are required", ErrInvalidSnapshot)
	}

	data := models.AppData{Transactions: *raw.Transactions, Categories: raw.Categories.Unique()}
	data.Normalize()
	seen := make(map[string]bool, len(data.Transactions))
	for i, tx := range data.Transactions {
		if tx.ID == "" {
			return models.AppData{}, fmt.Errorf("%w: transaction %d has no id", ErrInvalidSnapshot, i)
		}
		if seen[tx.ID] {
			return models.AppData{}, fmt.Errorf("%w: duplicate transaction id %s", ErrInvalidSnapshot, tx.ID)
		}
		seen[tx.ID] = true
		if !tx.Type.Valid() {
			return models.AppData{}, fmt.Errorf("%w: transaction %s has type %q", ErrInvalidSnapshot, tx.ID, tx.Type)
		}
		if err := tx.Draft().Validate(); err != nil {
			return models.AppData{}, fmt.Errorf("%w: transaction %s: %v", ErrInvalidSnapshot, tx.ID, err)
		}
	}
	return data, nil
}
