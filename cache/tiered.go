package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Tiered composes a local tier-1 store with a best-effort remote tier 2.
// Reads go through tier 1 first; a tier-2 hit backfills tier 1 before
// returning. Writes land in both tiers, but only the tier-1 outcome is
// reported to the caller: tier-2 failures are logged and swallowed so a
// Redis outage degrades the pipeline instead of breaking it.
type Tiered struct {
	local      Store
	remote     Store // may be nil (tier-1-only mode)
	log        *logrus.Logger
	remoteWait time.Duration
}

func NewTiered(local Store, remote Store, log *logrus.Logger) *Tiered {
	return &Tiered{
		local:      local,
		remote:     remote,
		log:        log,
		remoteWait: 2 * time.Second,
	}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := t.local.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return val, true, nil
	}
	if t.remote == nil {
		return nil, false, nil
	}
	val, ok, err = t.remote.Get(ctx, key)
	if err != nil {
		t.logRemote("Get", key, err)
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}
	// Backfill so repeated reads stop paying the network round trip.
	if berr := t.local.Set(ctx, key, val, 0); berr != nil {
		t.logRemote("Get/backfill", key, berr)
	}
	return val, true, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := t.local.Set(ctx, key, value, ttl)
	if t.remote != nil {
		// Fire-and-forget: the remote write must not block or fail the
		// caller. Detached context because the request's may be done.
		go func() {
			rctx, cancel := context.WithTimeout(context.Background(), t.remoteWait)
			defer cancel()
			if rerr := t.remote.Set(rctx, key, value, ttl); rerr != nil {
				t.logRemote("Set", key, rerr)
			}
		}()
	}
	return err
}

func (t *Tiered) Has(ctx context.Context, key string) (bool, error) {
	ok, err := t.local.Has(ctx, key)
	if err != nil {
		return false, err
	}
	if ok || t.remote == nil {
		return ok, nil
	}
	ok, err = t.remote.Has(ctx, key)
	if err != nil {
		t.logRemote("Has", key, err)
		return false, nil
	}
	return ok, nil
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	err := t.local.Delete(ctx, key)
	if t.remote != nil {
		if rerr := t.remote.Delete(ctx, key); rerr != nil {
			t.logRemote("Delete", key, rerr)
		}
	}
	return err
}

func (t *Tiered) Clear(ctx context.Context) error {
	err := t.local.Clear(ctx)
	if t.remote != nil {
		if rerr := t.remote.Clear(ctx); rerr != nil {
			t.logRemote("Clear", "", rerr)
		}
	}
	return err
}

func (t *Tiered) logRemote(op, key string, err error) {
	if t.log == nil {
		return
	}
	t.log.WithFields(logrus.Fields{
		"module": "cache",
		"op":     op,
		"key":    key,
	}).Warn("tier-2 cache error: " + err.Error())
}
