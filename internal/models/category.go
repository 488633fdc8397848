package models

import "slices"

// FallbackCategory receives the transactions of a deleted category.
const FallbackCategory = "Other"

// Categories holds the two ordered category lists of a document.
type Categories struct {
	Income  []string `json:"income"`
	Expense []string `json:"expense"`
}

func (c Categories) For(t TransactionType) []string {
	if t == TransactionTypeIncome {
		return c.Income
	}
	return c.Expense
}

func (c *Categories) Set(t TransactionType, names []string) {
	if t == TransactionTypeIncome {
		c.Income = names
		return
	}
	c.Expense = names
}

func (c Categories) Contains(t TransactionType, name string) bool {
	return slices.Contains(c.For(t), name)
}

func (c Categories) Clone() Categories {
	return Categories{
		Income:  append([]string{}, c.Income...),
		Expense: append([]string{}, c.Expense...),
	}
}

// DefaultCategories returns the built-in category set.
func DefaultCategories() Categories {
	return Categories{
		Income: []string{"Salary", "Bonus", "Gifts", "Freelance"},
		Expense: []string{
			"Food",
			"Transport",
			"Utilities",
			"House Rent",
			"Entertainment",
			"Health",
			"Shopping",
			"Other",
			"Grocery",
			"DPS",
			"EMI",
			"Medical",
			"Electricity Bill",
			"Gas Bill",
			"Wifi Bill",
		},
	}
}

// IsDefaultCategory reports whether name is part of the built-in set for t.
func IsDefaultCategory(t TransactionType, name string) bool {
	return DefaultCategories().Contains(t, name)
}

// MergeWithDefaults returns the defaults followed by any names only present in
// c, preserving order and dropping duplicates.
func MergeWithDefaults(c Categories) Categories {
	d := DefaultCategories()
	return Categories{
		Income:  union(d.Income, c.Income),
		Expense: union(d.Expense, c.Expense),
	}
}

// Unique drops blank and repeated names, keeping the first occurrence.
func (c Categories) Unique() Categories {
	return Categories{
		Income:  union(nil, c.Income),
		Expense: union(nil, c.Expense),
	}
}

func union(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, name := range list {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
