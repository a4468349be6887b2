package embedding

import (
	"context"
	"sync"
	"testing"
)

func TestCache_SetGet(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	if v, ok := c.Get("a"); !ok || v[0] != 1 {
		t.Error("a should be cached")
	}
	// "b" is now the oldest; adding "c" evicts it.
	c.Set("c", []float32{3})
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
}

func TestCache_ConcurrentHits(t *testing.T) {
	// Cache hits promote the entry in the LRU list, so concurrent Gets on
	// cached keys exercise the same mutation path; run with -race.
	c := NewCache(4)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "a"
			if i%2 == 0 {
				key = "b"
			}
			for j := 0; j < 1000; j++ {
				if _, ok := c.Get(key); !ok {
					t.Errorf("%s should stay cached", key)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

type countingEmbedder struct {
	*MockEmbedder
	calls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	return e.MockEmbedder.Embed(ctx, text)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	e := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := e.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cached embedding differs")
		}
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "same text")
	b, _ := e.Embed(ctx, "same text")
	other, _ := e.Embed(ctx, "different text")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text should embed identically")
		}
	}
	same := true
	for i := range a {
		if a[i] != other[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should embed differently")
	}
}
