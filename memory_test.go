package prefixcache

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"
)

func TestMemory_GetSet(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if _, err := mem.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	value := []byte("v")
	_ = mem.Set(ctx, "k", value, 0)
	value[0] = 'x'

	item, err := mem.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(item.Value) != "v" {
		t.Errorf("stored value changed with caller's slice: %q", item.Value)
	}
	item.Value[0] = 'y'
	again, _ := mem.Get(ctx, "k")
	if string(again.Value) != "v" {
		t.Errorf("stored value changed with returned slice: %q", again.Value)
	}
	if item.Expiration != 0 {
		t.Errorf("Expiration = %v, want 0", item.Expiration)
	}
}

func TestMemory_TTL(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	_ = mem.Set(ctx, "short", []byte("v"), 50*time.Millisecond)
	_ = mem.Set(ctx, "long", []byte("v"), time.Hour)

	time.Sleep(100 * time.Millisecond)

	if _, err := mem.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired key: expected ErrNotFound, got %v", err)
	}
	if _, err := mem.Get(ctx, "long"); err != nil {
		t.Errorf("unexpired key: %v", err)
	}
	if n, _ := mem.Invoke(ctx, "len"); n != 1 {
		t.Errorf("len = %v, want 1", n)
	}
}

func TestMemory_AddReplace(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.Replace(ctx, "k", []byte("v"), 0); !errors.Is(err, ErrNotStored) {
		t.Errorf("Replace on missing key: expected ErrNotStored, got %v", err)
	}
	if err := mem.Add(ctx, "k", []byte("1"), 0); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := mem.Add(ctx, "k", []byte("2"), 0); !errors.Is(err, ErrNotStored) {
		t.Errorf("Add on present key: expected ErrNotStored, got %v", err)
	}
	if err := mem.Replace(ctx, "k", []byte("3"), 0); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	item, _ := mem.Get(ctx, "k")
	if string(item.Value) != "3" {
		t.Errorf("value = %q, want 3", item.Value)
	}
}

func TestMemory_AddOverExpired(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	_ = mem.Set(ctx, "k", []byte("old"), 20*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	if err := mem.Add(ctx, "k", []byte("new"), 0); err != nil {
		t.Errorf("Add over expired key failed: %v", err)
	}
}

func TestMemory_AppendPrepend(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.Append(ctx, "k", []byte("x")); !errors.Is(err, ErrNotStored) {
		t.Errorf("Append on missing key: expected ErrNotStored, got %v", err)
	}

	_ = mem.Set(ctx, "k", []byte("b"), time.Hour)
	_ = mem.Append(ctx, "k", []byte("c"))
	_ = mem.Prepend(ctx, "k", []byte("a"))

	item, _ := mem.Get(ctx, "k")
	if string(item.Value) != "abc" {
		t.Errorf("value = %q, want abc", item.Value)
	}
	if item.Expiration <= 0 {
		t.Error("Append should keep the expiration")
	}
}

func TestMemory_Cas(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.Cas(ctx, CASToken{ID: 1}, "k", nil, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cas on missing key: expected ErrNotFound, got %v", err)
	}

	_ = mem.Set(ctx, "k", []byte("1"), 0)
	first, _ := mem.Get(ctx, "k")
	_ = mem.Set(ctx, "k", []byte("2"), 0)
	second, _ := mem.Get(ctx, "k")

	if first.CAS.ID == second.CAS.ID {
		t.Fatal("every write should change the CAS id")
	}
	if err := mem.Cas(ctx, first.CAS, "k", []byte("3"), 0); !errors.Is(err, ErrCASConflict) {
		t.Errorf("stale token: expected ErrCASConflict, got %v", err)
	}
	if err := mem.Cas(ctx, second.CAS, "k", []byte("3"), 0); err != nil {
		t.Errorf("current token: %v", err)
	}
}

func TestMemory_Delete(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.Delete(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_ = mem.SetMulti(ctx, map[string][]byte{"a": nil, "b": nil, "c": nil}, 0)
	if err := mem.DeleteMulti(ctx, []string{"a", "b", "missing"}); err != nil {
		t.Fatalf("DeleteMulti failed: %v", err)
	}
	got, _ := mem.GetMulti(ctx, []string{"a", "b", "c"})
	if len(got) != 1 || got["c"] == nil {
		t.Errorf("GetMulti after DeleteMulti = %v, want only c", got)
	}
}

func TestMemory_Counters(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if _, err := mem.Increment(ctx, "n", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing counter: expected ErrNotFound, got %v", err)
	}

	_ = mem.Set(ctx, "text", []byte("abc"), 0)
	if _, err := mem.Increment(ctx, "text", 1); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("non-numeric value: expected ErrTypeMismatch, got %v", err)
	}

	_ = mem.Set(ctx, "n", []byte("5"), 0)
	if n, _ := mem.Decrement(ctx, "n", 7); n != 0 {
		t.Errorf("Decrement below zero = %d, want 0", n)
	}

	_ = mem.Set(ctx, "max", []byte(strconv.FormatUint(math.MaxUint64, 10)), 0)
	if n, _ := mem.Increment(ctx, "max", 2); n != 1 {
		t.Errorf("Increment past 2^64 = %d, want 1", n)
	}

	item, _ := mem.Get(ctx, "max")
	if string(item.Value) != "1" {
		t.Errorf("stored counter = %q, want decimal 1", item.Value)
	}
}

func TestMemory_Touch(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.Touch(ctx, "k", time.Hour); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_ = mem.Set(ctx, "k", []byte("v"), 30*time.Millisecond)
	_ = mem.Touch(ctx, "k", time.Hour)
	time.Sleep(60 * time.Millisecond)

	if _, err := mem.Get(ctx, "k"); err != nil {
		t.Errorf("touched key expired: %v", err)
	}

	_ = mem.Touch(ctx, "k", 0)
	item, _ := mem.Get(ctx, "k")
	if item.Expiration != 0 {
		t.Errorf("Touch with 0 should clear expiration, got %v", item.Expiration)
	}
}

func TestMemory_GetDelayedOrder(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	_ = mem.SetMulti(ctx, map[string][]byte{"a": nil, "b": nil, "c": nil}, 0)

	ch, err := mem.GetDelayed(ctx, []string{"c", "x", "a", "b"})
	if err != nil {
		t.Fatalf("GetDelayed failed: %v", err)
	}
	var order []string
	for item := range ch {
		order = append(order, item.Key)
	}
	if len(order) != 3 || order[0] != "c" || order[1] != "a" || order[2] != "b" {
		t.Errorf("order = %v, want [c a b]", order)
	}
}

func TestMemory_Invoke(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	_ = mem.Set(ctx, "k", nil, 0)
	if _, err := mem.Invoke(ctx, "flush"); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if n, _ := mem.Invoke(ctx, "len"); n != 0 {
		t.Errorf("len after flush = %v, want 0", n)
	}
	if _, err := mem.Invoke(ctx, "stats"); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("expected ErrUnknownOperation, got %v", err)
	}
}
