package git

import "context"

// lockedCacheAdapter implements component E (spec.md §4.E): the
// read-verify-retry-write policy layered on top of the caller-supplied
// LockedInputCache.
type lockedCacheAdapter struct {
	cache LockedInputCache
}

func newLockedCacheAdapter(cache LockedInputCache) *lockedCacheAdapter {
	return &lockedCacheAdapter{cache: cache}
}

// lookupLocked checks the locked table for an exact (rev, mode) hit.
func (a *lockedCacheAdapter) lookupLocked(ctx context.Context, mode CacheMode, name, rev string) (StorePath, LockedAttrs, bool, error) {
	if a.cache == nil {
		return "", LockedAttrs{}, false, nil
	}
	return a.cache.Lookup(ctx, CacheKey{CacheType: mode.Tag(), Name: name, Rev: rev})
}

// lookupUnlocked checks the unlocked table for a (url, ref, mode) hit and
// verifies it against any user-supplied rev, per spec.md §4.E.
func (a *lockedCacheAdapter) lookupUnlocked(ctx context.Context, mode CacheMode, name, url, ref, wantRev string) (rev string, hit bool, err error) {
	if a.cache == nil {
		return "", false, nil
	}
	_, attrs, ok, err := a.cache.Lookup(ctx, CacheKey{CacheType: mode.Tag(), Name: name, URL: url, Ref: ref})
	if err != nil || !ok {
		return "", false, err
	}
	if wantRev != "" && wantRev != attrs.Rev {
		return "", false, nil
	}
	return attrs.Rev, true, nil
}

// store inserts the locked record always, and the unlocked record only
// when the user did not originally supply a rev (spec.md §4.E).
func (a *lockedCacheAdapter) store(ctx context.Context, mode CacheMode, name, url, ref string, userSuppliedRev bool, attrs LockedAttrs, path StorePath) error {
	if a.cache == nil {
		return nil
	}
	lockedKey := CacheKey{CacheType: mode.Tag(), Name: name, Rev: attrs.Rev}

	var unlockedKey *CacheKey
	if !userSuppliedRev {
		unlockedKey = &CacheKey{CacheType: mode.Tag(), Name: name, URL: url, Ref: ref}
	}

	return a.cache.Add(ctx, unlockedKey, lockedKey, attrs, path, true)
}

// revCount returns the fact-cached revision count for rev, computing and
// memoizing it via compute if absent.
func (a *lockedCacheAdapter) revCount(ctx context.Context, rev string, compute func() (int64, error)) (int64, error) {
	return a.cachedFact(ctx, "revcount:"+rev, compute)
}

// lastModified returns the fact-cached commit time for rev, computing and
// memoizing it via compute if absent.
func (a *lockedCacheAdapter) lastModified(ctx context.Context, rev string, compute func() (int64, error)) (int64, error) {
	return a.cachedFact(ctx, "lastmodified:"+rev, compute)
}

func (a *lockedCacheAdapter) cachedFact(ctx context.Context, key string, compute func() (int64, error)) (int64, error) {
	if a.cache != nil {
		if value, ok, err := a.cache.QueryFact(ctx, key); err == nil && ok {
			return parseFactInt(value), nil
		}
	}
	computed, err := compute()
	if err != nil {
		return 0, err
	}
	if a.cache != nil {
		_ = a.cache.UpsertFact(ctx, key, formatFactInt(computed))
	}
	return computed, nil
}
