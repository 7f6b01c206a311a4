package history_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/huak95/mongkol-backend-rag/internal/history"
	"github.com/huak95/mongkol-backend-rag/internal/log"
	"github.com/huak95/mongkol-backend-rag/internal/testutil"
)

func setupStore(t *testing.T) *history.Store {
	t.Helper()
	tdb, cleanup := testutil.SetupPostgres(t)
	t.Cleanup(cleanup)
	return history.NewStore(tdb.Pool, log.NewNop())
}

func TestGetOrCreateIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("GetOrCreate() = %v", err)
	}
	second, err := store.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("GetOrCreate() second call = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("same external id must map to one session: %s vs %s", first.ID, second.ID)
	}

	other, err := store.GetOrCreate(ctx, "s2")
	if err != nil {
		t.Fatalf("GetOrCreate() = %v", err)
	}
	if other.ID == first.ID {
		t.Error("distinct external ids must map to distinct sessions")
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]uuid.UUID, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			sess, err := store.GetOrCreate(ctx, "racing")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = sess.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent GetOrCreate produced different sessions: %s vs %s", ids[i], ids[0])
		}
	}
}

func TestFindUnknownSession(t *testing.T) {
	store := setupStore(t)

	_, err := store.Find(context.Background(), "nope")
	if err != history.ErrSessionNotFound {
		t.Errorf("Find() = %v, want ErrSessionNotFound", err)
	}
}

func TestAppendAndListPreserveOrder(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Append(ctx, sess.ID,
		history.NewTurn(history.RoleUser, "first", "llama-3.1-70b-versatile"),
		history.NewTurn(history.RoleAssistant, "second", ""),
	); err != nil {
		t.Fatalf("Append() = %v", err)
	}
	if err := store.Append(ctx, sess.ID,
		history.NewTurn(history.RoleUser, "third", "typhoon-instruct"),
	); err != nil {
		t.Fatalf("Append() = %v", err)
	}

	turns, err := store.List(ctx, sess.ID)
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("List() returned %d turns", len(turns))
	}

	var contents []string
	for i, turn := range turns {
		contents = append(contents, turn.Content)
		if turn.SequenceNumber != i+1 {
			t.Errorf("turn %d sequence = %d", i, turn.SequenceNumber)
		}
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, contents); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	// Empty model id round-trips through SQL NULL.
	if turns[1].ModelID != "" {
		t.Errorf("turn 2 model id = %q, want empty", turns[1].ModelID)
	}
	if turns[0].ModelID != "llama-3.1-70b-versatile" {
		t.Errorf("turn 1 model id = %q", turns[0].ModelID)
	}
}

func TestAppendConcurrentKeepsSequenceDense(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}

	const writers = 10
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			turn := history.NewTurn(history.RoleUser, fmt.Sprintf("turn %d", i), "")
			if err := store.Append(ctx, sess.ID, turn); err != nil {
				t.Errorf("Append(%d) = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	turns, err := store.List(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != writers {
		t.Fatalf("expected %d turns, got %d", writers, len(turns))
	}
	for i, turn := range turns {
		if turn.SequenceNumber != i+1 {
			t.Errorf("sequence gap at %d: %d", i, turn.SequenceNumber)
		}
	}
}

func TestListUnknownSession(t *testing.T) {
	store := setupStore(t)

	_, err := store.List(context.Background(), uuid.New())
	if err != history.ErrSessionNotFound {
		t.Errorf("List() = %v, want ErrSessionNotFound", err)
	}
}

func TestReplaceAll(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, sess.ID,
		history.NewTurn(history.RoleUser, "old 1", ""),
		history.NewTurn(history.RoleAssistant, "old 2", ""),
		history.NewTurn(history.RoleUser, "old 3", ""),
	); err != nil {
		t.Fatal(err)
	}

	replacement := []history.Turn{
		history.NewTurn(history.RoleSystem, "conversation summary: \nsummary text", "llama-3.1-70b-versatile"),
		history.NewTurn(history.RoleUser, "kept", "llama-3.1-70b-versatile"),
	}
	if err := store.ReplaceAll(ctx, sess.ID, replacement); err != nil {
		t.Fatalf("ReplaceAll() = %v", err)
	}

	turns, err := store.List(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns after replace, got %d", len(turns))
	}
	if turns[0].Role != history.RoleSystem || turns[0].SequenceNumber != 1 {
		t.Errorf("first turn = %+v", turns[0])
	}
	if turns[1].Content != "kept" || turns[1].SequenceNumber != 2 {
		t.Errorf("second turn = %+v", turns[1])
	}
}

func TestDeleteAllKeepsSession(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, sess.ID, history.NewTurn(history.RoleUser, "hello", "")); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteAll(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteAll() = %v", err)
	}

	// The session survives, its turns do not.
	found, err := store.Find(ctx, "s1")
	if err != nil {
		t.Fatalf("Find() after delete = %v", err)
	}
	if found.ID != sess.ID {
		t.Error("session identity must survive history deletion")
	}
	turns, err := store.List(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Errorf("expected empty history, got %d turns", len(turns))
	}

	// Sequence numbering restarts after deletion.
	if err := store.Append(ctx, sess.ID, history.NewTurn(history.RoleUser, "again", "")); err != nil {
		t.Fatal(err)
	}
	turns, err = store.List(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 1 || turns[0].SequenceNumber != 1 {
		t.Errorf("sequence must restart at 1, got %+v", turns)
	}
}

func TestListSessions(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	s1, err := store.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetOrCreate(ctx, "s2"); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, s1.ID,
		history.NewTurn(history.RoleUser, "a", ""),
		history.NewTurn(history.RoleAssistant, "b", ""),
	); err != nil {
		t.Fatal(err)
	}

	infos, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() = %v", err)
	}

	counts := make(map[string]int, len(infos))
	for _, info := range infos {
		counts[info.ExternalID] = info.TurnCount
	}
	want := map[string]int{"s1": 2, "s2": 0}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("session counts mismatch (-want +got):\n%s", diff)
	}
}
