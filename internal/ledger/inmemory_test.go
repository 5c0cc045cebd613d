package ledger

import (
	"context"
	"testing"
	"time"
)

type recordingSink struct {
	balances map[string]int64
}

func (s *recordingSink) SetBalance(userID string, balance int64) {
	s.balances[userID] = balance
}

func TestInMemoryApplyDeltaSnapshotsBalances(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	if err := store.EnsureAccount(ctx, "user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	entry := Transaction{ID: "tx-1", UserID: "user-1", Type: TypeDeposit, Amount: 300, Status: StatusCompleted}
	posted, err := store.ApplyDelta(ctx, "user-1", 300, entry)
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if posted.BalanceBefore != 0 || posted.BalanceAfter != 300 {
		t.Fatalf("expected snapshot 0/300, got %d/%d", posted.BalanceBefore, posted.BalanceAfter)
	}
	if posted.CreatedAt.IsZero() {
		t.Fatal("expected the store to stamp CreatedAt")
	}

	entry.ID = "tx-2"
	entry.Type = TypeWithdrawal
	entry.Amount = 100
	posted, err = store.ApplyDelta(ctx, "user-1", -100, entry)
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if posted.BalanceBefore != 300 || posted.BalanceAfter != 200 {
		t.Fatalf("expected snapshot 300/200, got %d/%d", posted.BalanceBefore, posted.BalanceAfter)
	}
}

func TestInMemoryApplyDeltaWritesBackThroughSink(t *testing.T) {
	sink := &recordingSink{balances: make(map[string]int64)}
	store := NewInMemoryWithSink(sink)
	ctx := context.Background()

	if err := store.EnsureAccount(ctx, "user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	entry := Transaction{ID: "tx-1", UserID: "user-1", Type: TypeDeposit, Amount: 450, Status: StatusCompleted}
	if _, err := store.ApplyDelta(ctx, "user-1", 450, entry); err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	if got := sink.balances["user-1"]; got != 450 {
		t.Fatalf("expected sink balance 450, got %d", got)
	}
}

// A caller-supplied CreatedAt must never survive: entries are stamped while
// the mutation is serialized, so the newest history entry is always the last
// balance mutation.
func TestInMemoryStampsTimestampsInMutationOrder(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	if err := store.EnsureAccount(ctx, "user-1"); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	first, err := store.ApplyDelta(ctx, "user-1", 100, Transaction{ID: "tx-1", UserID: "user-1", Type: TypeDeposit, Amount: 100, Status: StatusCompleted})
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	stale := Transaction{
		ID: "tx-2", UserID: "user-1", Type: TypeDeposit, Amount: 100,
		Status:    StatusCompleted,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	second, err := store.ApplyDelta(ctx, "user-1", 100, stale)
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if second.CreatedAt.Before(first.CreatedAt) {
		t.Fatalf("caller timestamp survived: %v applied after %v", second.CreatedAt, first.CreatedAt)
	}

	entries, _, err := store.ListByUser(ctx, "user-1", 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if entries[0].ID != "tx-2" || entries[0].BalanceAfter != 200 {
		t.Fatalf("newest entry is not the last balance mutation: %+v", entries[0])
	}
}

func TestInMemoryRecentOrdersNewestFirst(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	for _, userID := range []string{"a", "b"} {
		if err := store.EnsureAccount(ctx, userID); err != nil {
			t.Fatalf("ensure account: %v", err)
		}
	}

	ids := []string{"tx-1", "tx-2", "tx-3", "tx-4"}
	for i, id := range ids {
		userID := "a"
		if i%2 == 1 {
			userID = "b"
		}
		entry := Transaction{ID: id, UserID: userID, Type: TypeDeposit, Amount: 100, Status: StatusCompleted}
		if _, err := store.ApplyDelta(ctx, userID, 100, entry); err != nil {
			t.Fatalf("apply delta %d: %v", i, err)
		}
	}

	recent, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(recent))
	}
	for i, want := range []string{"tx-4", "tx-3", "tx-2"} {
		if recent[i].ID != want {
			t.Fatalf("entry %d: expected %s, got %s", i, want, recent[i].ID)
		}
	}
}
