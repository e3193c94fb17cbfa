//go:build integration
// +build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailroute/internal/domain"
	"mailroute/internal/store"
	"mailroute/internal/store/pg"
)

func TestClaimBatchExclusive(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := pg.New(db)
	now := time.Now().UTC()

	const total = 20
	for i := 0; i < total; i++ {
		if err := st.InsertMessage(ctx, store.MessageInsert{
			ID:        fmt.Sprintf("msg_%03d", i),
			Recipient: fmt.Sprintf("u%d@example.com", i),
			Category:  domain.CategoryWelcome,
			Subject:   "hi",
			Body:      "hello",
			Now:       now.Add(time.Duration(i) * time.Millisecond),
		}); err != nil {
			t.Fatalf("insert message: %v", err)
		}
	}

	// Two concurrent claimers must split the queue with no overlap.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed = map[string]int{}
	)
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch, err := st.ClaimBatch(ctx, 5, time.Now().UTC(), 5*time.Minute)
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, m := range batch {
					claimed[m.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != total {
		t.Fatalf("claimed %d distinct messages, want %d", len(claimed), total)
	}
	for id, n := range claimed {
		if n != 1 {
			t.Fatalf("message %s claimed %d times", id, n)
		}
	}
}

func TestClaimBatchReclaimsStale(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := pg.New(db)
	now := time.Now().UTC()

	if err := st.InsertMessage(ctx, store.MessageInsert{
		ID: "msg_stale", Recipient: "a@b.com", Category: domain.CategorySupport,
		Subject: "s", Body: "b", Now: now.Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	// First claim marks it attempting with an old timestamp.
	batch, err := st.ClaimBatch(ctx, 10, now.Add(-30*time.Minute), 5*time.Minute)
	if err != nil || len(batch) != 1 {
		t.Fatalf("first claim: %v, %d messages", err, len(batch))
	}

	// Within the staleness window it is invisible.
	batch, err = st.ClaimBatch(ctx, 10, now.Add(-29*time.Minute), 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 0 {
		t.Fatalf("fresh attempting message reclaimed: %d", len(batch))
	}

	// Past the window a crashed run's claim is recoverable.
	batch, err = st.ClaimBatch(ctx, 10, now, 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 1 || batch[0].ID != "msg_stale" {
		t.Fatalf("stale message not reclaimed: %+v", batch)
	}
}

func TestResendOnlyFailedMessages(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := pg.New(db)
	now := time.Now().UTC()

	if err := st.InsertMessage(ctx, store.MessageInsert{
		ID: "msg_r1", Recipient: "a@b.com", Category: domain.CategoryBilling,
		Subject: "s", Body: "b", Now: now,
	}); err != nil {
		t.Fatal(err)
	}

	if err := st.ResendMessage(ctx, "msg_r1", now); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("resending pending message: got %v, want ErrConflict", err)
	}

	if _, err := st.ClaimBatch(ctx, 1, now, 5*time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := st.FinishMessage(ctx, store.MessageResult{
		ID: "msg_r1", Status: domain.StatusFailed, LastError: "transport failure", Attempts: 2, Now: now,
	}); err != nil {
		t.Fatal(err)
	}

	if err := st.ResendMessage(ctx, "msg_r1", now); err != nil {
		t.Fatalf("resend failed message: %v", err)
	}
	m, found, err := st.GetMessage(ctx, "msg_r1")
	if err != nil || !found {
		t.Fatalf("get message: %v found=%v", err, found)
	}
	if m.Status != domain.StatusPending || m.LastError != "" || m.CompletedAt != nil {
		t.Fatalf("message not reset for resend: %+v", m)
	}
	if m.AttemptCount != 0 {
		t.Fatalf("attempt count not reset on resend: %d", m.AttemptCount)
	}

	if err := st.ResendMessage(ctx, "msg_missing", now); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("resending unknown message: got %v, want ErrNotFound", err)
	}
}

func TestSetPrimaryProviderAtomic(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := pg.New(db)
	now := time.Now().UTC()

	for i, id := range []string{"prv_a", "prv_b"} {
		if err := st.InsertProvider(ctx, store.ProviderInsert{
			ID: id, Name: id, Kind: domain.KindHTTP, Active: true, Position: i + 1,
			Settings: map[string]string{"base_url": "http://vendor", "api_key": "k"},
			Now:      now,
		}); err != nil {
			t.Fatal(err)
		}
	}

	for _, id := range []string{"prv_a", "prv_b"} {
		ok, err := st.SetPrimaryProvider(ctx, id, now)
		if err != nil || !ok {
			t.Fatalf("set primary %s: ok=%v err=%v", id, ok, err)
		}
	}

	// The partial unique index allows exactly one active primary.
	var n int
	if err := db.QueryRow(ctx, `SELECT count(*) FROM providers WHERE is_primary`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("primary count = %d, want 1", n)
	}
	p, found, err := st.GetPrimaryProvider(ctx)
	if err != nil || !found || p.ID != "prv_b" {
		t.Fatalf("primary = %v found=%v err=%v, want prv_b", p.ID, found, err)
	}

	if ok, err := st.SetPrimaryProvider(ctx, "prv_missing", now); err != nil || ok {
		t.Fatalf("unknown provider: ok=%v err=%v", ok, err)
	}

	// Deactivation clears the flag; setting primary on inactive is refused.
	if _, err := st.SetProviderActive(ctx, "prv_b", false, now); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := st.GetPrimaryProvider(ctx); found {
		t.Fatal("inactive provider still primary")
	}
	if ok, err := st.SetPrimaryProvider(ctx, "prv_b", now); err != nil || ok {
		t.Fatalf("inactive provider accepted as primary: ok=%v err=%v", ok, err)
	}
}

func TestDeleteAddressReferencedByRule(t *testing.T) {
	ctx := context.Background()
	db, cleanup := setupTestDB(t)
	defer cleanup()

	st := pg.New(db)
	now := time.Now().UTC()

	if err := st.InsertProvider(ctx, store.ProviderInsert{
		ID: "prv_1", Name: "smtp", Kind: domain.KindSMTP, Active: true, Position: 1,
		Settings: map[string]string{"host": "h", "port": "587"}, Now: now,
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertAddress(ctx, store.AddressInsert{
		ID: "adr_1", ProviderID: "prv_1", Email: "no-reply@example.com", Now: now,
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.InsertRule(ctx, store.RuleInsert{
		ID: "rul_1", Label: "welcome", Category: domain.CategoryWelcome,
		PrimaryProviderID: "prv_1", PrimaryAddressID: "adr_1", Priority: 1, Now: now,
	}); err != nil {
		t.Fatal(err)
	}

	if err := st.DeleteAddress(ctx, "adr_1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("deleting referenced address: got %v, want ErrConflict", err)
	}

	if err := st.DeleteRule(ctx, "rul_1"); err != nil {
		t.Fatal(err)
	}
	if err := st.DeleteAddress(ctx, "adr_1"); err != nil {
		t.Fatalf("delete after rule removed: %v", err)
	}
}

func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN not set")
	}

	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	admin, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect admin db: %v", err)
	}

	_, err = admin.Exec(context.Background(), "CREATE SCHEMA "+schema)
	if err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}

	dbDSN, err := withSearchPath(dsn, schema)
	if err != nil {
		admin.Close()
		t.Fatalf("build dsn: %v", err)
	}

	db, err := pgxpool.New(context.Background(), dbDSN)
	if err != nil {
		admin.Close()
		t.Fatalf("connect test db: %v", err)
	}

	sqlPath := filepath.Join("..", "..", "migrations", "001_init.sql")
	sqlBytes, err := os.ReadFile(sqlPath)
	if err != nil {
		db.Close()
		admin.Close()
		t.Fatalf("read migrations: %v", err)
	}

	if _, err := db.Exec(context.Background(), string(sqlBytes)); err != nil {
		db.Close()
		admin.Close()
		t.Fatalf("run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	}

	return db, cleanup
}

func withSearchPath(dsn, schema string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	q := u.Query()
	opts := q.Get("options")
	if opts != "" {
		opts = opts + " -c search_path=" + schema
	} else {
		opts = "-c search_path=" + schema
	}
	q.Set("options", opts)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
