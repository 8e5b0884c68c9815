package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// fakeRemote is a controllable tier-2 stand-in.
type fakeRemote struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{data: map[string][]byte{}}
}

var errRemoteDown = errors.New("remote down")

func (f *fakeRemote) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, false, errRemoteDown
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeRemote) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errRemoteDown
	}
	f.data[key] = value
	return nil
}

func (f *fakeRemote) Has(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false, errRemoteDown
	}
	_, ok := f.data[key]
	return ok, nil
}

func (f *fakeRemote) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errRemoteDown
	}
	delete(f.data, key)
	return nil
}

func (f *fakeRemote) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errRemoteDown
	}
	f.data = map[string][]byte{}
	return nil
}

func newTestTiered(t *testing.T, remote Store) (*Tiered, *Memory) {
	t.Helper()
	local, err := NewMemory(16, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewTiered(local, remote, log), local
}

func TestTieredSurvivesRemoteOutage(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.fail = true
	tiered, _ := newTestTiered(t, remote)

	if err := tiered.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set must succeed on tier 1 alone: %v", err)
	}
	v, ok, err := tiered.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("get = (%q, %v, %v), want hit", v, ok, err)
	}
	if err := tiered.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete must succeed on tier 1 alone: %v", err)
	}
	if _, ok, _ := tiered.Get(ctx, "k"); ok {
		t.Error("k should be gone after delete")
	}
	if err := tiered.Clear(ctx); err != nil {
		t.Fatalf("clear must succeed on tier 1 alone: %v", err)
	}
}

func TestTieredBackfillsTierOneFromRemoteHit(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.data["k"] = []byte("v")
	tiered, local := newTestTiered(t, remote)

	v, ok, err := tiered.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("get = (%q, %v, %v), want remote hit", v, ok, err)
	}

	// The backfilled entry must now satisfy reads without the remote.
	remote.fail = true
	if v, ok, _ := local.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Error("tier 1 was not backfilled")
	}
	if v, ok, _ := tiered.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Error("tiered read should hit tier 1 after backfill")
	}
}

func TestTieredSetWritesBothTiers(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	tiered, _ := newTestTiered(t, remote)

	if err := tiered.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	// The remote write is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if ok, _ := remote.Has(ctx, "k"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("remote never received the write")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTieredDeleteRemovesBothTiers(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.data["k"] = []byte("v")
	tiered, local := newTestTiered(t, remote)
	local.Set(ctx, "k", []byte("v"), 0)

	if err := tiered.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := remote.Has(ctx, "k"); ok {
		t.Error("remote copy should be deleted")
	}
	if ok, _ := local.Has(ctx, "k"); ok {
		t.Error("local copy should be deleted")
	}
}

func TestTieredWithoutRemote(t *testing.T) {
	ctx := context.Background()
	tiered, _ := newTestTiered(t, nil)

	if err := tiered.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := tiered.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Error("tier-1-only mode should work")
	}
	if ok, _ := tiered.Has(ctx, "k"); !ok {
		t.Error("has should find the tier-1 entry")
	}
}
