package prefixcache

import (
	"context"
	"fmt"
	"testing"
)

// Benchmark the cost of prefixing on top of the in-memory client.

func BenchmarkMemory_Get(b *testing.B) {
	mem := NewMemory()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		_ = mem.Set(ctx, fmt.Sprintf("ns:key:%d", i), []byte("benchmark-value"), 0)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = mem.Get(ctx, fmt.Sprintf("ns:key:%d", i%1000))
	}
}

func BenchmarkProxy_Get(b *testing.B) {
	cache := New("ns:", NewMemory())
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		_ = cache.Set(ctx, fmt.Sprintf("key:%d", i), []byte("benchmark-value"), 0)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cache.Get(ctx, fmt.Sprintf("key:%d", i%1000))
	}
}

func BenchmarkProxy_Set(b *testing.B) {
	cache := New("ns:", NewMemory())
	ctx := context.Background()
	value := []byte("benchmark-value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cache.Set(ctx, fmt.Sprintf("key:%d", i), value, 0)
	}
}

func BenchmarkProxy_ForwardSet(b *testing.B) {
	cache := New("ns:", NewMemory())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cache.Forward(ctx, "set", fmt.Sprintf("key:%d", i), "benchmark-value", 60)
	}
}

func BenchmarkProxy_GetMulti(b *testing.B) {
	cache := New("ns:", NewMemory())
	ctx := context.Background()

	keys := make([]string, 100)
	items := make(map[string][]byte, len(keys))
	for i := range keys {
		keys[i] = fmt.Sprintf("key:%d", i)
		items[keys[i]] = []byte("benchmark-value")
	}
	_ = cache.SetMulti(ctx, items, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cache.GetMulti(ctx, keys)
	}
}

// BenchmarkRewrite_Reflected measures the reflect path for named key types.
func BenchmarkRewrite_Reflected(b *testing.B) {
	cache := New("ns:", nil)
	keys := []userKey{"a", "b", "c", "d"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cache.rewrite(OpGetMulti, []any{keys})
	}
}

func BenchmarkProxy_ConcurrentAccess(b *testing.B) {
	cache := New("ns:", NewMemory())
	ctx := context.Background()
	_ = cache.Put(ctx, "hot", []byte("benchmark-value"))

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = cache.Value(ctx, "hot")
		}
	})
}
