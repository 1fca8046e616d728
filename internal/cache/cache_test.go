// SPDX-License-Identifier: MIT

package cache

import (
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("file-1", []byte(`{"objects":[]}`), time.Minute)

	val, found := c.Get("file-1")
	if !found {
		t.Fatal("expected value to be found")
	}
	if string(val) != `{"objects":[]}` {
		t.Errorf("unexpected value %q", val)
	}

	stats := c.Stats()
	if stats.Sets != 1 || stats.Hits != 1 {
		t.Errorf("stats = %+v, want 1 set and 1 hit", stats)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("file-1", []byte("payload"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, found := c.Get("file-1"); found {
		t.Error("expected entry to be expired")
	}
	if stats := c.Stats(); stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("file-1", []byte("payload"), time.Minute)
	c.Delete("file-1")

	if _, found := c.Get("file-1"); found {
		t.Error("expected entry to be deleted")
	}
}

func TestMemoryCacheJanitor(t *testing.T) {
	c := NewMemoryCache(10 * time.Millisecond).(*memoryCache)
	defer c.Stop()

	c.Set("file-1", []byte("payload"), time.Millisecond)

	deadline := time.After(time.Second)
	for {
		if c.Stats().CurrentSize == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("janitor did not evict expired entry")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if c.Stats().Evictions == 0 {
		t.Error("expected at least one eviction")
	}
}
