package history_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/a-essam23/go-relay/internal/history"
	"github.com/a-essam23/go-relay/internal/store"
	"github.com/a-essam23/go-relay/internal/store/sqlite"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestService(t *testing.T, limit int) (*history.Service, store.Store) {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return history.NewService(newTestLogger(), s, limit), s
}

func TestPublicAppliesDefaultLimit(t *testing.T) {
	svc, st := newTestService(t, 2)
	ctx := context.Background()

	for _, body := range []string{"m1", "m2", "m3"} {
		if _, err := st.InsertMessage(ctx, "alice", store.BroadcastReceiver, body, false); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	messages, err := svc.Public(ctx, 0)
	if err != nil {
		t.Fatalf("public: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("len = %d, want configured limit 2", len(messages))
	}
	if messages[0].Body != "m2" || messages[1].Body != "m3" {
		t.Fatalf("bodies = [%s %s], want recent window oldest-first", messages[0].Body, messages[1].Body)
	}
}

func TestLimitCannotExceedConfiguredCap(t *testing.T) {
	svc, st := newTestService(t, 2)
	ctx := context.Background()

	for _, body := range []string{"m1", "m2", "m3"} {
		if _, err := st.InsertMessage(ctx, "alice", store.BroadcastReceiver, body, false); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	messages, err := svc.Public(ctx, 100)
	if err != nil {
		t.Fatalf("public: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("len = %d, want cap 2", len(messages))
	}
}

func TestPrivateSymmetry(t *testing.T) {
	svc, st := newTestService(t, 50)
	ctx := context.Background()

	if _, err := st.InsertMessage(ctx, "alice", "bob", "one", true); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := st.InsertMessage(ctx, "bob", "alice", "two", true); err != nil {
		t.Fatalf("insert: %v", err)
	}

	forward, err := svc.Private(ctx, "alice", "bob", 0)
	if err != nil {
		t.Fatalf("private: %v", err)
	}
	reverse, err := svc.Private(ctx, "bob", "alice", 0)
	if err != nil {
		t.Fatalf("private: %v", err)
	}
	if len(forward) != 2 || len(reverse) != 2 {
		t.Fatalf("lens = %d/%d, want 2/2", len(forward), len(reverse))
	}
	for i := range forward {
		if forward[i].ID != reverse[i].ID {
			t.Fatalf("row %d differs by query direction", i)
		}
	}
}

func TestEmptyThreadIsNotAnError(t *testing.T) {
	svc, _ := newTestService(t, 50)

	messages, err := svc.Private(context.Background(), "alice", "stranger", 0)
	if err != nil {
		t.Fatalf("private: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("len = %d, want 0", len(messages))
	}
}
