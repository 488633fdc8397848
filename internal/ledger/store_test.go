package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hray3182/SpendWise/internal/docstore"
	"github.com/hray3182/SpendWise/internal/models"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *docstore.Memory) {
	t.Helper()
	remote := docstore.NewMemory()
	n := 0
	opts = append([]Option{WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("tx-%03d", n)
	})}, opts...)
	s := New(remote, opts...)
	t.Cleanup(s.Close)
	return s, remote
}

func ready(t *testing.T, s *Store, userID string) {
	t.Helper()
	s.Subscribe(context.Background(), userID)
	s.Flush()
	if s.State() != Ready {
		t.Fatalf("state = %s, want ready", s.State())
	}
}

func coffee() models.Draft {
	return models.Draft{
		Type:        models.TransactionTypeExpense,
		Amount:      50,
		Description: "Coffee",
		Category:    "Food",
		Date:        "2024-05-01",
	}
}

func assertSorted(t *testing.T, d models.AppData) {
	t.Helper()
	for i := 1; i < len(d.Transactions); i++ {
		if d.Transactions[i].Time().After(d.Transactions[i-1].Time()) {
			t.Fatalf("transactions not sorted at %d: %v", i, d.Transactions)
		}
	}
}

func TestNewUserGetsDefaultDocument(t *testing.T) {
	s, remote := newTestStore(t)
	if s.State() != Unauthenticated {
		t.Fatalf("initial state = %s", s.State())
	}
	ready(t, s, "u1")

	doc, ok := remote.Get("u1")
	if !ok {
		t.Fatal("default document was not created")
	}
	if !slices.Equal(doc.Categories.Expense, models.DefaultCategories().Expense) || len(doc.Transactions) != 0 {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestCoffeeScenario(t *testing.T) {
	s, remote := newTestStore(t)
	ready(t, s, "u1")

	s.AddTransaction(coffee())
	snap := s.Snapshot()
	if len(snap.Transactions) != 1 {
		t.Fatalf("got %d transactions", len(snap.Transactions))
	}
	tx := snap.Transactions[0]
	if tx.Amount != 50 || tx.Category != "Food" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if !snap.Categories.Contains(models.TransactionTypeExpense, "Food") {
		t.Fatal("Food missing from expense categories")
	}

	s.Flush()
	doc, _ := remote.Get("u1")
	if len(doc.Transactions) != 1 || doc.Transactions[0].ID != tx.ID {
		t.Fatalf("remote not updated: %+v", doc.Transactions)
	}
}

func TestAddTransactionPreservesFieldsWithFreshID(t *testing.T) {
	s, _ := newTestStore(t, WithIDGenerator(uuid.NewString))
	s2, _ := newTestStore(t)
	for _, store := range []*Store{s, s2} {
		ready(t, store, "u1")
		d := coffee()
		a := store.AddTransaction(d)
		b := store.AddTransaction(d)
		if a.ID == "" || a.ID == b.ID {
			t.Fatalf("ids not unique: %q %q", a.ID, b.ID)
		}
		got, ok := store.Snapshot().FindTransaction(a.ID)
		if !ok || got.Draft() != d {
			t.Fatalf("fields not preserved: %+v", got)
		}
	}
}

func TestSortedAfterEveryMutation(t *testing.T) {
	s, _ := newTestStore(t)
	ready(t, s, "u1")

	dates := []string{"2024-01-10", "2024-03-01T10:00:00Z", "2023-12-31", "2024-03-01"}
	var ids []string
	for _, date := range dates {
		d := coffee()
		d.Date = date
		ids = append(ids, s.AddTransaction(d).ID)
		assertSorted(t, s.Snapshot())
	}

	tx, _ := s.Snapshot().FindTransaction(ids[2])
	tx.Date = "2025-01-01"
	if err := s.UpdateTransaction(tx); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	assertSorted(t, snap)
	if snap.Transactions[0].ID != ids[2] {
		t.Fatalf("updated transaction should be first, got %s", snap.Transactions[0].ID)
	}

	s.DeleteTransaction(ids[0])
	assertSorted(t, s.Snapshot())
	if err := s.UpdateCategory(models.TransactionTypeExpense, "Food", "Meals"); err != nil {
		t.Fatal(err)
	}
	assertSorted(t, s.Snapshot())
}

func TestUpdateCategoryIsScopedByType(t *testing.T) {
	s, remote := newTestStore(t)
	ready(t, s, "u1")

	if _, err := s.AddCategory(models.TransactionTypeIncome, "Food"); err != nil {
		t.Fatal(err)
	}
	exp := s.AddTransaction(coffee())
	d := coffee()
	d.Type = models.TransactionTypeIncome
	inc := s.AddTransaction(d)

	if err := s.UpdateCategory(models.TransactionTypeExpense, "Food", "Groceries"); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if got, _ := snap.FindTransaction(exp.ID); got.Category != "Groceries" {
		t.Fatalf("expense category = %q", got.Category)
	}
	if got, _ := snap.FindTransaction(inc.ID); got.Category != "Food" {
		t.Fatalf("income transaction was rewritten to %q", got.Category)
	}
	if snap.Categories.Contains(models.TransactionTypeExpense, "Food") || !snap.Categories.Contains(models.TransactionTypeExpense, "Groceries") {
		t.Fatalf("expense list = %v", snap.Categories.Expense)
	}
	if i := slices.Index(snap.Categories.Expense, "Groceries"); i != 0 {
		t.Fatalf("rename should keep position 0, got %d", i)
	}
	if !snap.Categories.Contains(models.TransactionTypeIncome, "Food") {
		t.Fatal("income list lost Food")
	}

	s.Flush()
	if doc, _ := remote.Get("u1"); doc.Categories.Expense[0] != "Groceries" {
		t.Fatalf("remote expense list = %v", doc.Categories.Expense)
	}
}

func TestUpdateCategoryErrors(t *testing.T) {
	s, _ := newTestStore(t)
	ready(t, s, "u1")
	before := s.Snapshot()

	cases := []struct {
		old, new string
		want     error
	}{
		{"Nope", "Other names", ErrUnknownCategory},
		{"Food", "Food", ErrInvalidCategory},
		{"Food", "  ", ErrInvalidCategory},
		{"Food", "Transport", ErrInvalidCategory},
	}
	for _, c := range cases {
		if err := s.UpdateCategory(models.TransactionTypeExpense, c.old, c.new); !errors.Is(err, c.want) {
			t.Errorf("UpdateCategory(%q, %q) = %v, want %v", c.old, c.new, err, c.want)
		}
	}
	if !slices.Equal(before.Categories.Expense, s.Snapshot().Categories.Expense) {
		t.Fatal("failed rename changed the snapshot")
	}
}

func TestDeleteCategoryKeepsEveryReferenceValid(t *testing.T) {
	s, _ := newTestStore(t)
	ready(t, s, "u1")

	for _, typ := range []models.TransactionType{models.TransactionTypeExpense, models.TransactionTypeIncome} {
		if _, err := s.AddCategory(typ, "Side"); err != nil {
			t.Fatal(err)
		}
		d := coffee()
		d.Type = typ
		d.Category = "Side"
		s.AddTransaction(d)
	}

	if err := s.DeleteCategory(models.TransactionTypeIncome, "Side"); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	for _, tx := range snap.Transactions {
		if !snap.Categories.Contains(tx.Type, tx.Category) {
			t.Fatalf("transaction %s references missing category %q", tx.ID, tx.Category)
		}
	}
	if !snap.Categories.Contains(models.TransactionTypeIncome, models.FallbackCategory) {
		t.Fatal("fallback not inserted into income list")
	}
	if !snap.Categories.Contains(models.TransactionTypeExpense, "Side") {
		t.Fatal("expense Side removed by income delete")
	}
}

func TestDeleteCategoryProtectsDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	ready(t, s, "u1")

	for _, name := range []string{"Food", models.FallbackCategory} {
		if err := s.DeleteCategory(models.TransactionTypeExpense, name); !errors.Is(err, ErrProtectedCategory) {
			t.Errorf("DeleteCategory(%q) = %v", name, err)
		}
	}
	if err := s.DeleteCategory(models.TransactionTypeIncome, "Salary"); !errors.Is(err, ErrProtectedCategory) {
		t.Errorf("Salary: %v", err)
	}
	if err := s.DeleteCategory(models.TransactionTypeExpense, "Missing"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("Missing: %v", err)
	}
}

func TestAddCategoryIsIdempotent(t *testing.T) {
	s, remote := newTestStore(t)
	ready(t, s, "u1")
	n := len(s.Snapshot().Categories.Expense)

	added, err := s.AddCategory(models.TransactionTypeExpense, "Food")
	if err != nil || added {
		t.Fatalf("adding existing Food: added=%v err=%v", added, err)
	}
	if got := len(s.Snapshot().Categories.Expense); got != n {
		t.Fatalf("expense length %d, want %d", got, n)
	}

	writes := remote.Writes()
	if added, _ := s.AddCategory(models.TransactionTypeExpense, " Pets "); !added {
		t.Fatal("Pets not added")
	}
	if added, _ := s.AddCategory(models.TransactionTypeExpense, "Pets"); added {
		t.Fatal("Pets added twice")
	}
	s.Flush()
	if got := remote.Writes() - writes; got != 1 {
		t.Fatalf("%d writes for one effective add", got)
	}
	if _, err := s.AddCategory(models.TransactionTypeExpense, ""); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("empty name: %v", err)
	}
}

func TestDoubleDeleteIsNoop(t *testing.T) {
	s, remote := newTestStore(t)
	ready(t, s, "u1")
	tx := s.AddTransaction(coffee())
	s.Flush()

	if !s.DeleteTransaction(tx.ID) {
		t.Fatal("first delete reported nothing removed")
	}
	s.Flush()
	before := s.Snapshot()
	writes := remote.Writes()

	if s.DeleteTransaction(tx.ID) {
		t.Fatal("second delete removed something")
	}
	s.Flush()
	if len(s.Snapshot().Transactions) != len(before.Transactions) || remote.Writes() != writes {
		t.Fatal("second delete changed state")
	}
}

func TestUpdateUnknownTransaction(t *testing.T) {
	s, _ := newTestStore(t)
	ready(t, s, "u1")
	s.AddTransaction(coffee())

	err := s.UpdateTransaction(models.Transaction{ID: "ghost", Type: models.TransactionTypeExpense})
	if !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("err = %v", err)
	}
	if len(s.Snapshot().Transactions) != 1 {
		t.Fatal("snapshot changed")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, WithClock(func() time.Time { return now }))
	ready(t, s, "u1")
	s.AddTransaction(coffee())
	d := coffee()
	d.Date = "2024-06-01"
	s.AddTransaction(d)
	s.AddCategory(models.TransactionTypeIncome, "Dividends")
	s.Flush()
	want := s.Snapshot()

	b, name, err := s.ExportSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if name != "expense-tracker-data-2024-06-09.json" {
		t.Fatalf("filename = %q", name)
	}

	s.ResetToDefaults()
	s.Flush()
	if len(s.Snapshot().Transactions) != 0 {
		t.Fatal("reset kept transactions")
	}

	if err := s.ImportSnapshot(b); err != nil {
		t.Fatal(err)
	}
	s.Flush()
	got := s.Snapshot()
	if !slices.Equal(got.Transactions, want.Transactions) ||
		!slices.Equal(got.Categories.Income, want.Categories.Income) ||
		!slices.Equal(got.Categories.Expense, want.Categories.Expense) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestWriteFailureKeepsLocalState(t *testing.T) {
	s, remote := newTestStore(t)
	ready(t, s, "u1")
	remote.SetFailWrites(true)

	tx := s.AddTransaction(coffee())
	s.Flush()

	if _, ok := s.Snapshot().FindTransaction(tx.ID); !ok {
		t.Fatal("optimistic transaction was rolled back")
	}
	if doc, _ := remote.Get("u1"); len(doc.Transactions) != 0 {
		t.Fatal("failed write reached the remote")
	}
	if s.State() != Ready {
		t.Fatalf("state = %s", s.State())
	}
}

func TestSubscribeFailureFallsBackToDefaults(t *testing.T) {
	s, remote := newTestStore(t)
	remote.Seed("u1", models.AppData{Transactions: []models.Transaction{{ID: "keep", Type: models.TransactionTypeExpense, Date: "2024-01-01"}}})
	remote.SetFailReads(true)

	s.Subscribe(context.Background(), "u1")
	if s.State() != ReadyWithDefaults {
		t.Fatalf("state = %s", s.State())
	}
	if len(s.Snapshot().Transactions) != 0 {
		t.Fatal("defaults expected")
	}

	s.AddTransaction(coffee())
	s.Flush()
	if len(s.Snapshot().Transactions) != 1 {
		t.Fatal("local change not visible")
	}
	doc, _ := remote.Get("u1")
	if len(doc.Transactions) != 1 || doc.Transactions[0].ID != "keep" {
		t.Fatalf("degraded session overwrote the remote document: %+v", doc)
	}
}

func TestSubscriptionErrorAfterReady(t *testing.T) {
	s, remote := newTestStore(t)
	ready(t, s, "u1")
	s.AddTransaction(coffee())
	s.Flush()

	remote.Break("u1", errors.New("connection reset"))
	if s.State() != ReadyWithDefaults {
		t.Fatalf("state = %s", s.State())
	}
	if len(s.Snapshot().Transactions) != 0 {
		t.Fatal("expected default snapshot")
	}
}

func TestSwitchingUserReleasesStaleSubscription(t *testing.T) {
	s, remote := newTestStore(t)
	ready(t, s, "u1")
	ready(t, s, "u2")

	if n := remote.Subscribers("u1"); n != 0 {
		t.Fatalf("u1 still has %d subscribers", n)
	}
	if n := remote.Subscribers("u2"); n != 1 {
		t.Fatalf("u2 has %d subscribers", n)
	}

	txs := []models.Transaction{{ID: "foreign", Type: models.TransactionTypeExpense, Date: "2024-01-01"}}
	if err := remote.WriteMerge(context.Background(), "u1", docstore.Patch{Transactions: &txs}); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Snapshot().FindTransaction("foreign"); ok {
		t.Fatal("update for previous user leaked into snapshot")
	}

	s.Subscribe(context.Background(), "")
	if s.State() != Unauthenticated || remote.Subscribers("u2") != 0 {
		t.Fatal("sign-out did not release the subscription")
	}
}

func TestRemoteAlwaysWins(t *testing.T) {
	s, remote := newTestStore(t)
	ready(t, s, "u1")
	remote.SetFailWrites(true)
	s.AddTransaction(coffee())
	s.Flush()
	remote.SetFailWrites(false)

	// another device writes the document directly
	other := models.DefaultAppData()
	other.Transactions = []models.Transaction{{ID: "remote", Type: models.TransactionTypeIncome, Amount: 1, Category: "Salary", Date: "2024-02-01"}}
	if err := remote.WriteMerge(context.Background(), "u1", docstore.FullPatch(other)); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if len(snap.Transactions) != 1 || snap.Transactions[0].ID != "remote" {
		t.Fatalf("remote state did not replace local: %+v", snap.Transactions)
	}
}

func TestMergeDefaultsOnLoad(t *testing.T) {
	stored := models.AppData{
		Transactions: []models.Transaction{},
		Categories:   models.Categories{Income: []string{"Salary", "Dividends"}, Expense: []string{"Food"}},
	}

	merged, remote := newTestStore(t, WithMergeDefaults(true))
	remote.Seed("u1", stored)
	merged.Subscribe(context.Background(), "u1")
	cats := merged.Snapshot().Categories
	if !cats.Contains(models.TransactionTypeExpense, "Wifi Bill") || cats.Income[len(cats.Income)-1] != "Dividends" {
		t.Fatalf("merged categories = %+v", cats)
	}

	plain, remote2 := newTestStore(t)
	remote2.Seed("u1", stored)
	plain.Subscribe(context.Background(), "u1")
	if got := plain.Snapshot().Categories.Expense; !slices.Equal(got, []string{"Food"}) {
		t.Fatalf("unmerged categories = %v", got)
	}
}

func TestMergeDefaultsKeepsBuiltInNames(t *testing.T) {
	s, remote := newTestStore(t, WithMergeDefaults(true))
	ready(t, s, "u1")

	if err := s.UpdateCategory(models.TransactionTypeExpense, "Food", "Groceries"); !errors.Is(err, ErrProtectedCategory) {
		t.Fatalf("renaming a built-in category = %v, want ErrProtectedCategory", err)
	}
	if _, err := s.AddCategory(models.TransactionTypeExpense, "Pets"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateCategory(models.TransactionTypeExpense, "Pets", "Animals"); err != nil {
		t.Fatalf("renaming a custom category: %v", err)
	}
	s.Flush()

	reloaded := New(remote, WithMergeDefaults(true))
	t.Cleanup(reloaded.Close)
	ready(t, reloaded, "u1")
	cats := reloaded.Snapshot().Categories
	if cats.Contains(models.TransactionTypeExpense, "Groceries") || cats.Contains(models.TransactionTypeExpense, "Pets") {
		t.Fatalf("categories after reload = %v", cats.Expense)
	}
	if !cats.Contains(models.TransactionTypeExpense, "Food") || !cats.Contains(models.TransactionTypeExpense, "Animals") {
		t.Fatalf("categories after reload = %v", cats.Expense)
	}
	if n := slices.Index(cats.Expense, "Food"); n != 0 {
		t.Fatalf("Food moved to index %d", n)
	}
}

func TestCloseDrainsWrites(t *testing.T) {
	remote := docstore.NewMemory()
	s := New(remote)
	s.Subscribe(context.Background(), "u1")
	for range 20 {
		s.AddTransaction(coffee())
	}
	s.Close()

	doc, _ := remote.Get("u1")
	if len(doc.Transactions) != 20 {
		t.Fatalf("remote has %d transactions after close", len(doc.Transactions))
	}
	if remote.Subscribers("u1") != 0 {
		t.Fatal("subscription not released")
	}
}

// delayedRemote holds back subscription deliveries and writes while hold is
// set, so a test can release them in any order.
type delayedRemote struct {
	*docstore.Memory
	hold   atomic.Bool
	gate   chan struct{}
	echoes chan func()
}

func newDelayedRemote() *delayedRemote {
	return &delayedRemote{
		Memory: docstore.NewMemory(),
		gate:   make(chan struct{}),
		echoes: make(chan func(), 8),
	}
}

func (d *delayedRemote) Subscribe(ctx context.Context, key string, onChange docstore.ChangeFunc, onError docstore.ErrorFunc) (docstore.Unsubscribe, error) {
	return d.Memory.Subscribe(ctx, key, func(data *models.AppData, exists bool) {
		if d.hold.Load() {
			d.echoes <- func() { onChange(data, exists) }
			return
		}
		onChange(data, exists)
	}, onError)
}

func (d *delayedRemote) WriteMerge(ctx context.Context, key string, patch docstore.Patch) error {
	if d.hold.Load() {
		<-d.gate
	}
	return d.Memory.WriteMerge(ctx, key, patch)
}

func TestStaleEchoKeepsNewerLocalChange(t *testing.T) {
	remote := newDelayedRemote()
	remote.Seed("u1", models.DefaultAppData())
	s := New(remote)
	t.Cleanup(s.Close)
	ready(t, s, "u1")

	remote.hold.Store(true)
	first := s.AddTransaction(coffee())
	lunch := coffee()
	lunch.Description = "Lunch"
	second := s.AddTransaction(lunch)

	// Only the first write reaches the remote; its echo predates the second.
	remote.gate <- struct{}{}
	firstEcho := <-remote.echoes
	firstEcho()

	snap := s.Snapshot()
	if _, ok := snap.FindTransaction(first.ID); !ok {
		t.Fatal("first transaction missing after its echo")
	}
	if _, ok := snap.FindTransaction(second.ID); !ok {
		t.Fatal("stale echo reverted the second transaction")
	}

	remote.gate <- struct{}{}
	secondEcho := <-remote.echoes
	s.Flush()
	secondEcho()

	snap = s.Snapshot()
	if len(snap.Transactions) != 2 {
		t.Fatalf("converged to %d transactions, want 2", len(snap.Transactions))
	}
	s.mu.Lock()
	cleared := s.pending == nil
	s.mu.Unlock()
	if !cleared {
		t.Fatal("pending state kept after the last echo")
	}
	if doc, _ := remote.Get("u1"); len(doc.Transactions) != 2 {
		t.Fatalf("remote has %d transactions", len(doc.Transactions))
	}
}
