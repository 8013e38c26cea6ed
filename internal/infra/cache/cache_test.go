package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/fibernet/central-cliente-bfa-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("perfil-1", "historico")
	val, ok := c.Get("perfil-1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "historico" {
		t.Errorf("expected 'historico', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_UpdateIsAtomic(t *testing.T) {
	c := cache.New[[]int](5 * time.Minute)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Update("turns", func(cur []int, _ bool) []int {
				return append(cur, n)
			})
		}(i)
	}
	wg.Wait()

	got, ok := c.Get("turns")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if len(got) != 50 {
		t.Errorf("expected 50 appended values, got %d", len(got))
	}
}

func TestCache_UpdateReportsMissingEntry(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	var sawFound bool
	c.Update("n", func(cur int, found bool) int {
		sawFound = found
		return cur + 1
	})
	if sawFound {
		t.Error("first update should not find a value")
	}
	if v := c.Update("n", func(cur int, _ bool) int { return cur + 1 }); v != 2 {
		t.Errorf("expected 2, got %d", v)
	}
}
