package supervisor

import (
	"sync"
	"testing"
)

func TestStateStore_SetThenGet(t *testing.T) {
	s := NewStateStore()
	s.Set("counter", "k1", 42)
	v, ok := s.Get("counter", "k1")
	if !ok {
		t.Fatal("expected Get to find value set by Set")
	}
	if v.(int) != 42 {
		t.Fatalf("value = %v, want 42", v)
	}
}

func TestStateStore_GetMissingKeyReturnsFalse(t *testing.T) {
	s := NewStateStore()
	if _, ok := s.Get("counter", "absent"); ok {
		t.Fatal("expected Get to report false for an absent key")
	}
	if _, ok := s.Get("absent-type", "k1"); ok {
		t.Fatal("expected Get to report false for an absent state type")
	}
}

func TestStateStore_OverwriteReplacesValue(t *testing.T) {
	s := NewStateStore()
	s.Set("counter", "k1", 1)
	s.Set("counter", "k1", 2)
	v, _ := s.Get("counter", "k1")
	if v.(int) != 2 {
		t.Fatalf("value = %v, want 2 after overwrite", v)
	}
}

func TestStateStore_ConcurrentAccess(t *testing.T) {
	s := NewStateStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Set("t", "k", i)
		}(i)
		go func() {
			defer wg.Done()
			s.Get("t", "k")
		}()
	}
	wg.Wait()
}
