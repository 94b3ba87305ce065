package canon

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tkuo/mnemo/internal/store"
)

func newBackfillFixture(t *testing.T) (*Backfiller, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewBackfiller(s, zerolog.Nop()), s
}

func TestBackfill_RecomputesDerivedFields(t *testing.T) {
	ctx := context.Background()
	b, s := newBackfillFixture(t)

	// Stored before canonicalization: no hash, raw tags, unset flag.
	raw, err := s.InsertMemory(ctx, store.InsertParams{
		Content: "Deployed the golang service", Tags: []string{"GoLang", "Deploy Notes"},
	})
	if err != nil {
		t.Fatal(err)
	}
	meta, _ := s.InsertMemory(ctx, store.InsertParams{Content: "retries=3\ntimeout=30"})

	result, err := b.Run(ctx, BackfillParams{})
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.Scanned != 2 || result.Updated != 2 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	got, _ := s.GetMemory(ctx, raw.ID)
	if got.ContentHash == "" {
		t.Error("expected hash backfilled")
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "deploy-notes" {
		t.Errorf("tags not canonicalized: %v", got.Tags)
	}
	if got.IsMetadata {
		t.Error("prose flagged as metadata")
	}

	gotMeta, _ := s.GetMemory(ctx, meta.ID)
	if !gotMeta.IsMetadata {
		t.Error("key=value content not flagged as metadata")
	}
}

func TestBackfill_Idempotent(t *testing.T) {
	ctx := context.Background()
	b, s := newBackfillFixture(t)

	s.InsertMemory(ctx, store.InsertParams{Content: "note one", Tags: []string{"Raw Tag"}})
	s.InsertMemory(ctx, store.InsertParams{Content: "note two"})

	first, err := b.Run(ctx, BackfillParams{})
	if err != nil {
		t.Fatal(err)
	}
	if first.Updated == 0 {
		t.Fatal("expected first run to update")
	}

	second, err := b.Run(ctx, BackfillParams{})
	if err != nil {
		t.Fatal(err)
	}
	if second.Updated != 0 || second.Failed != 0 {
		t.Errorf("expected second run to be a no-op, got %+v", second)
	}
}

func TestBackfill_DryRunParity(t *testing.T) {
	ctx := context.Background()
	b, s := newBackfillFixture(t)

	s.InsertMemory(ctx, store.InsertParams{Content: "needs a hash", Tags: []string{"Mixed Case"}})

	dry, err := b.Run(ctx, BackfillParams{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if !dry.DryRun || dry.Updated != 1 {
		t.Fatalf("unexpected dry result: %+v", dry)
	}

	// Nothing persisted.
	memories, _ := s.ListMemories(ctx, store.ListParams{Limit: 10})
	if memories[0].ContentHash != "" {
		t.Error("dry run wrote a hash")
	}

	// The real run reports the identical counts.
	wet, err := b.Run(ctx, BackfillParams{})
	if err != nil {
		t.Fatal(err)
	}
	if wet.Updated != dry.Updated || wet.Scanned != dry.Scanned {
		t.Errorf("dry/real mismatch: dry=%+v real=%+v", dry, wet)
	}
}

func TestBackfill_AutoTagsWhenEmpty(t *testing.T) {
	ctx := context.Background()
	b, s := newBackfillFixture(t)

	m, _ := s.InsertMemory(ctx, store.InsertParams{Content: "Decided to migrate the queue to kafka"})

	if _, err := b.Run(ctx, BackfillParams{}); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetMemory(ctx, m.ID)
	if len(got.Tags) == 0 {
		t.Fatal("expected auto tags for untagged memory")
	}
}

func TestBackfill_MalformedNormalizeSetting(t *testing.T) {
	ctx := context.Background()
	b, s := newBackfillFixture(t)

	s.InsertMemory(ctx, store.InsertParams{Content: "anything"})
	s.SetSetting(ctx, store.SettingNormalizeWhitespace, "sometimes")

	if _, err := b.Run(ctx, BackfillParams{}); err == nil {
		t.Error("expected error for malformed setting")
	}
}

func TestDuplicateContentIncrementsCounter(t *testing.T) {
	ctx := context.Background()
	_, s := newBackfillFixture(t)

	normalize, err := NormalizeWhitespaceSetting(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	store1 := func(content string) {
		t.Helper()
		_, err := s.InsertMemory(ctx, store.InsertParams{
			Content:     content,
			ContentHash: ContentHash(content, normalize),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	store1("Remember to rotate the backup key")
	// Spacing/case variant hashes identically under normalization.
	store1("remember to   rotate the backup key")

	n, err := s.GetCounter(ctx, store.CounterDedupSkipped)
	if err != nil {
		t.Fatal(err)
	}
	if n < 1 {
		t.Errorf("expected dedup counter >= 1 after duplicate content, got %d", n)
	}
}

func TestBackfill_RespectsAliasSetting(t *testing.T) {
	ctx := context.Background()
	b, s := newBackfillFixture(t)

	s.SetSetting(ctx, store.SettingTagAliases, `{"pg":"postgres"}`)
	m, _ := s.InsertMemory(ctx, store.InsertParams{Content: "tuning work", Tags: []string{"pg"}})

	if _, err := b.Run(ctx, BackfillParams{}); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetMemory(ctx, m.ID)
	if len(got.Tags) != 1 || got.Tags[0] != "postgres" {
		t.Errorf("alias not applied: %v", got.Tags)
	}
}
