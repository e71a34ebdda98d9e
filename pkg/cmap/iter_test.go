package cmap

import (
	"sort"
	"sync"
	"testing"
)

func TestRange(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	sum := 0
	m.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	if sum != 6 {
		t.Errorf("sum = %d, want 6", sum)
	}

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("visited = %d after early stop, want 1", visited)
	}
}

func TestKeys(t *testing.T) {
	m := New[string, int]()
	m.Set("b", 2)
	m.Set("a", 1)

	keys := m.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}
}

func TestGetOrSet(t *testing.T) {
	m := New[string, int]()

	val, loaded := m.GetOrSet("key", 1)
	if loaded || val != 1 {
		t.Errorf("first GetOrSet = (%d, %v), want (1, false)", val, loaded)
	}
	val, loaded = m.GetOrSet("key", 2)
	if !loaded || val != 1 {
		t.Errorf("second GetOrSet = (%d, %v), want (1, true)", val, loaded)
	}
}

func TestConcurrentGetOrSet(t *testing.T) {
	m := New[string, *int]()
	var wg sync.WaitGroup
	results := make([]*int, 32)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := i
			results[i], _ = m.GetOrSet("shared", &v)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r != results[0] {
			t.Fatalf("goroutine %d observed a different winner", i)
		}
	}
}

func TestPop(t *testing.T) {
	m := New[string, int]()
	m.Set("key", 7)

	if val, ok := m.Pop("key"); !ok || val != 7 {
		t.Errorf("Pop(key) = (%d, %v), want (7, true)", val, ok)
	}
	if _, ok := m.Pop("key"); ok {
		t.Error("second Pop should report absence")
	}
}

func TestCompareAndDelete(t *testing.T) {
	m := New[string, int]()
	m.Set("key", 5)

	if m.CompareAndDelete("key", func(v int) bool { return v == 4 }) {
		t.Error("CompareAndDelete removed a non-matching value")
	}
	if !m.CompareAndDelete("key", func(v int) bool { return v == 5 }) {
		t.Error("CompareAndDelete did not remove a matching value")
	}
	if m.CompareAndDelete("missing", func(int) bool { return true }) {
		t.Error("CompareAndDelete reported removal of a missing key")
	}
}
