package models

// AppData is the root per-user document.
type AppData struct {
	Transactions []Transaction `json:"transactions"`
	Categories   Categories    `json:"categories"`
}

func DefaultAppData() AppData {
	return AppData{
		Transactions: []Transaction{},
		Categories:   DefaultCategories(),
	}
}

func (d AppData) Clone() AppData {
	txs := make([]Transaction, len(d.Transactions))
	copy(txs, d.Transactions)
	return AppData{
		Transactions: txs,
		Categories:   d.Categories.Clone(),
	}
}

// Normalize fills nil slices so the document always serialises with arrays.
func (d *AppData) Normalize() {
	if d.Transactions == nil {
		d.Transactions = []Transaction{}
	}
	if d.Categories.Income == nil {
		d.Categories.Income = []string{}
	}
	if d.Categories.Expense == nil {
		d.Categories.Expense = []string{}
	}
}

func (d AppData) FindTransaction(id string) (Transaction, bool) {
	for _, t := range d.Transactions {
		if t.ID == id {
			return t, true
		}
	}
	return Transaction{}, false
}

// SortTransactions orders the transactions newest first.
func (d *AppData) SortTransactions() {
	SortByDateDesc(d.Transactions)
}
