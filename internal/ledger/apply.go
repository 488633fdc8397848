package ledger

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hray3182/SpendWise/internal/models"
)

var (
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrProtectedCategory  = errors.New("built-in category is protected")
	ErrInvalidCategory    = errors.New("invalid category name")
	ErrInvalidDraft       = models.ErrInvalidDraft
)

// The functions below are pure: they never modify their input and always
// return a new AppData with transactions sorted newest first.

func addTransaction(d models.AppData, t models.Transaction) models.AppData {
	out := d.Clone()
	out.Transactions = append([]models.Transaction{t}, out.Transactions...)
	out.SortTransactions()
	return out
}

// updateTransaction reports false when no transaction has t.ID.
func updateTransaction(d models.AppData, t models.Transaction) (models.AppData, bool) {
	i := slices.IndexFunc(d.Transactions, func(x models.Transaction) bool { return x.ID == t.ID })
	if i < 0 {
		return d, false
	}
	out := d.Clone()
	out.Transactions[i] = t
	out.SortTransactions()
	return out, true
}

func deleteTransaction(d models.AppData, id string) (models.AppData, bool) {
	i := slices.IndexFunc(d.Transactions, func(x models.Transaction) bool { return x.ID == id })
	if i < 0 {
		return d, false
	}
	out := d.Clone()
	out.Transactions = slices.Delete(out.Transactions, i, i+1)
	return out, true
}

func cleanCategoryName(t models.TransactionType, name string) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidCategory, t)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidCategory)
	}
	return name, nil
}

// addCategory reports false when name is already listed for t.
func addCategory(d models.AppData, t models.TransactionType, name string) (models.AppData, bool) {
	if d.Categories.Contains(t, name) {
		return d, false
	}
	out := d.Clone()
	out.Categories.Set(t, append(out.Categories.For(t), name))
	return out, true
}

// renameCategory renames oldName in place and moves every transaction of type
// t that referenced it. Transactions of the other type are left alone.
func renameCategory(d models.AppData, t models.TransactionType, oldName, newName string) (models.AppData, error) {
	i := slices.Index(d.Categories.For(t), oldName)
	if i < 0 {
		return d, fmt.Errorf("%w: %s", ErrUnknownCategory, oldName)
	}
	if newName == oldName {
		return d, fmt.Errorf("%w: new name equals old name", ErrInvalidCategory)
	}
	if d.Categories.Contains(t, newName) {
		return d, fmt.Errorf("%w: %s already exists", ErrInvalidCategory, newName)
	}

	out := d.Clone()
	names := out.Categories.For(t)
	names[i] = newName
	for j := range out.Transactions {
		tx := &out.Transactions[j]
		if tx.Type == t && tx.Category == oldName {
			tx.Category = newName
		}
	}
	return out, nil
}

// deleteCategory removes a custom category and moves its transactions to the
// fallback category, adding the fallback to the list of t when missing.
func deleteCategory(d models.AppData, t models.TransactionType, name string) (models.AppData, error) {
	if name == models.FallbackCategory || models.IsDefaultCategory(t, name) {
		return d, fmt.Errorf("%w: %s", ErrProtectedCategory, name)
	}
	if !d.Categories.Contains(t, name) {
		return d, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}

	out := d.Clone()
	names := slices.DeleteFunc(out.Categories.For(t), func(n string) bool { return n == name })
	moved := false
	for j := range out.Transactions {
		tx := &out.Transactions[j]
		if tx.Type == t && tx.Category == name {
			tx.Category = models.FallbackCategory
			moved = true
		}
	}
	if moved && !slices.Contains(names, models.FallbackCategory) {
		names = append(names, models.FallbackCategory)
	}
	out.Categories.Set(t, names)
	return out, nil
}
