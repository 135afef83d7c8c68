package finnhub

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestCache_Freshness(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := NewCache(5*time.Second, clock.Now)

	c.Put("k", []byte(`{"c":1}`))

	tests := []struct {
		name    string
		advance time.Duration
		wantHit bool
	}{
		{"immediately", 0, true},
		{"just inside window", 4999 * time.Millisecond, true},
		{"exactly at window", 1 * time.Millisecond, false},
		{"well past window", 10 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Advance(tt.advance)
			_, ok := c.Get("k")
			if ok != tt.wantHit {
				t.Errorf("Get hit = %v, want %v", ok, tt.wantHit)
			}
		})
	}
}

func TestCache_PutOverwrites(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := NewCache(5*time.Second, clock.Now)

	c.Put("k", []byte("old"))
	clock.Advance(6 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should be stale")
	}

	c.Put("k", []byte("new"))
	got, ok := c.Get("k")
	if !ok || string(got) != "new" {
		t.Errorf("Get = %q, %v; want new, true", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCache_StaleEntriesAreNotEvicted(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := NewCache(time.Second, clock.Now)

	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	clock.Advance(time.Minute)
	c.Get("a")

	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestCache_MissingKey(t *testing.T) {
	c := NewCache(0, nil)
	if _, ok := c.Get("missing"); ok {
		t.Error("missing key must not hit")
	}
}
