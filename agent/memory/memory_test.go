package memory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vendra/salescore/pkg/kvstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(kvstore.NewFromClient(client))
}

func TestGetReturnsDefaultOnMiss(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	mem := store.Get(context.Background(), "biz", "lead")
	if mem == nil {
		t.Fatal("Get must never return nil")
	}
	if mem.CurrentStage != "new" {
		t.Fatalf("default stage = %q, want new", mem.CurrentStage)
	}
	if mem.LeadID != "lead" || mem.BusinessID != "biz" {
		t.Fatalf("identity not stamped: %+v", mem)
	}
	if mem.InteractionCount != 0 {
		t.Fatalf("fresh memory should have zero interactions, got %d", mem.InteractionCount)
	}
}

func TestGetWithoutBackend(t *testing.T) {
	t.Parallel()

	store := New(nil)
	mem := store.Get(context.Background(), "biz", "lead")
	if mem == nil || mem.CurrentStage != "new" {
		t.Fatalf("nil backend must still yield a default record, got %+v", mem)
	}
	if err := store.Save(context.Background(), mem); err != nil {
		t.Fatalf("save with nil backend should be a no-op, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	mem := store.Get(ctx, "biz", "lead")
	mem.CurrentStage = "negotiating"
	mem.ConversationSummary = "pidió descuento"
	if err := store.Save(ctx, mem); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := store.Get(ctx, "biz", "lead")
	if loaded.CurrentStage != "negotiating" {
		t.Fatalf("stage = %q, want negotiating", loaded.CurrentStage)
	}
	if loaded.ConversationSummary != "pidió descuento" {
		t.Fatalf("summary not persisted: %q", loaded.ConversationSummary)
	}
}

func TestUpdateMergesListsWithoutDuplicates(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	store.Update(ctx, "biz", "lead", map[string]any{
		"products_viewed": []string{"p1", "p2"},
		"objections":      "muy caro",
	})
	mem := store.Update(ctx, "biz", "lead", map[string]any{
		"products_viewed": []any{"p2", "p3"},
		"objections":      "muy caro",
	})

	if got := len(mem.ProductsViewed); got != 3 {
		t.Fatalf("products_viewed = %v, want 3 unique entries", mem.ProductsViewed)
	}
	if got := len(mem.Objections); got != 1 {
		t.Fatalf("objections = %v, want deduplicated single entry", mem.Objections)
	}
	if mem.InteractionCount != 2 {
		t.Fatalf("interaction count = %d, want 2", mem.InteractionCount)
	}
	if mem.LastInteraction == "" {
		t.Fatal("last interaction timestamp not stamped")
	}
}

func TestUpdateMergesCollectedData(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	store.Update(ctx, "biz", "lead", map[string]any{
		"collected_data": map[string]any{"name": "Ana", "city": "Lima"},
	})
	mem := store.Update(ctx, "biz", "lead", map[string]any{
		"collected_data": map[string]any{"city": "Cusco"},
	})

	if mem.CollectedData["name"] != "Ana" {
		t.Fatalf("existing key lost: %v", mem.CollectedData)
	}
	if mem.CollectedData["city"] != "Cusco" {
		t.Fatalf("patched key not overwritten: %v", mem.CollectedData)
	}
}

func TestSetStageAndAddProductViewed(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetStage(ctx, "biz", "lead", "quoting"); err != nil {
		t.Fatalf("SetStage: %v", err)
	}
	if err := store.AddProductViewed(ctx, "biz", "lead", "p1"); err != nil {
		t.Fatalf("AddProductViewed: %v", err)
	}
	if err := store.AddProductViewed(ctx, "biz", "lead", "p1"); err != nil {
		t.Fatalf("AddProductViewed repeat: %v", err)
	}

	mem := store.Get(ctx, "biz", "lead")
	if mem.CurrentStage != "quoting" {
		t.Fatalf("stage = %q, want quoting", mem.CurrentStage)
	}
	if len(mem.ProductsViewed) != 1 {
		t.Fatalf("products_viewed = %v, want single entry", mem.ProductsViewed)
	}
}
