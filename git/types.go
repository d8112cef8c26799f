// Package git implements a multi-tier caching and fetch-planning engine
// for materializing immutable snapshots of Git commits. It decides
// whether a network fetch is needed at all, maintains a per-URL bare
// mirror that transitions between shallow and full depth, resolves HEAD
// with a TTL-governed cache, and handles submodules without ever
// mutating a local working-tree source.
//
// Every mutating Git operation goes through the git CLI (package exec),
// not go-git's porcelain; go-git/go-billy are used only to read objects
// out of an already-populated mirror.
package git

import (
	"time"

	"github.com/rrbutani/nix/errors"
)

// InputAttrs is the typed attribute bag the Dispatcher accepts. Fields
// are pointers so "not supplied" is distinguishable from the zero value.
type InputAttrs struct {
	URL          string
	Ref          *string
	Rev          *string
	Shallow      *bool
	Submodules   *bool
	AllRefs      *bool
	LastModified *int64
	RevCount     *int64
	NarHash      *string
	Name         *string
}

func (a InputAttrs) ref() string {
	if a.Ref == nil {
		return ""
	}
	return *a.Ref
}

func (a InputAttrs) rev() string {
	if a.Rev == nil {
		return ""
	}
	return *a.Rev
}

func boolValue(p *bool) bool {
	return p != nil && *p
}

// recognizedAttrKeys is the allowlist FromMap enforces, mirroring
// inputFromAttrs's "unsupported Git input attribute" rejection
// (spec.md §3, §6: "Unknown keys are rejected").
var recognizedAttrKeys = map[string]bool{
	"type": true, "url": true, "ref": true, "rev": true,
	"shallow": true, "submodules": true, "allRefs": true,
	"lastModified": true, "revCount": true, "narHash": true, "name": true,
}

// FromMap builds an InputAttrs from the untyped attribute bag the
// collaboration boundary exchanges with callers (spec.md §3), rejecting
// any key outside recognizedAttrKeys and validating ref the same way the
// Dispatcher does internally (rev's hash type is checked only by the
// Dispatcher). parser normalizes the url attribute's
// git/git+http/git+https/git+ssh/git+file scheme; it may be nil, in
// which case url is taken verbatim.
func FromMap(m map[string]any, parser UrlParser) (InputAttrs, error) {
	for key := range m {
		if !recognizedAttrKeys[key] {
			return InputAttrs{}, errors.Newf(errors.CodeInvalidInput, "unsupported Git input attribute %q", key)
		}
	}
	if t, ok := m["type"].(string); ok && t != "" && t != "git" {
		return InputAttrs{}, errors.Newf(errors.CodeInvalidInput, "unsupported input type %q", t)
	}

	rawURL, _ := m["url"].(string)
	if rawURL == "" {
		return InputAttrs{}, errors.New(errors.CodeInvalidInput, `missing required attribute "url"`)
	}

	var attrs InputAttrs
	if parser != nil {
		_, parsed, err := parser.Parse(rawURL)
		if err != nil {
			return InputAttrs{}, errors.Wrap(err, errors.CodeInvalidInput, "failed to parse git URL")
		}
		attrs = parsed
	} else {
		attrs.URL = rawURL
	}

	if ref, ok := m["ref"].(string); ok && ref != "" {
		attrs.Ref = &ref
	}
	if rev, ok := m["rev"].(string); ok && rev != "" {
		attrs.Rev = &rev
	}
	if shallow, ok := m["shallow"].(bool); ok {
		attrs.Shallow = &shallow
	}
	if submodules, ok := m["submodules"].(bool); ok {
		attrs.Submodules = &submodules
	}
	if allRefs, ok := m["allRefs"].(bool); ok {
		attrs.AllRefs = &allRefs
	}
	if name, ok := m["name"].(string); ok && name != "" {
		attrs.Name = &name
	}
	if narHash, ok := m["narHash"].(string); ok && narHash != "" {
		attrs.NarHash = &narHash
	}
	if lastModified, ok := toInt64(m["lastModified"]); ok {
		attrs.LastModified = &lastModified
	}
	if revCount, ok := toInt64(m["revCount"]); ok {
		attrs.RevCount = &revCount
	}

	if ref := attrs.ref(); ref != "" {
		if verr := validateRefName(ref); verr != nil {
			return InputAttrs{}, verr
		}
	}

	return attrs, nil
}

// ToMap renders attrs back into the untyped bag FromMap accepts, the
// inverse half of the collaboration boundary (spec.md §3).
func (a InputAttrs) ToMap() map[string]any {
	m := map[string]any{"type": "git", "url": a.URL}
	if a.Ref != nil {
		m["ref"] = *a.Ref
	}
	if a.Rev != nil {
		m["rev"] = *a.Rev
	}
	if a.Shallow != nil {
		m["shallow"] = *a.Shallow
	}
	if a.Submodules != nil {
		m["submodules"] = *a.Submodules
	}
	if a.AllRefs != nil {
		m["allRefs"] = *a.AllRefs
	}
	if a.LastModified != nil {
		m["lastModified"] = *a.LastModified
	}
	if a.RevCount != nil {
		m["revCount"] = *a.RevCount
	}
	if a.NarHash != nil {
		m["narHash"] = *a.NarHash
	}
	if a.Name != nil {
		m["name"] = *a.Name
	}
	return m
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// CacheMode is the explicit tag set partitioning the locked-input cache,
// replacing the source's ad hoc string concatenation (see SPEC_FULL.md §3).
type CacheMode struct {
	Shallow    bool
	Submodules bool
	AllRefs    bool
}

// Tag renders the cache-mode partition key: "git" plus suffixes for any
// set flag, in the fixed order shallow, submodules, allRefs.
func (m CacheMode) Tag() string {
	tag := "git"
	if m.Shallow {
		tag += "-shallow"
	}
	if m.Submodules {
		tag += "-submodules"
	}
	if m.AllRefs {
		tag += "-all-refs"
	}
	return tag
}

// RepoInfo is the probe's output: an immutable snapshot of how the input
// classifies, frozen once the probe phase (component C) completes.
type RepoInfo struct {
	Shallow    bool
	Submodules bool
	AllRefs    bool
	CacheMode  CacheMode

	IsLocal bool
	IsDirty bool
	HasHead bool

	// URL is the filesystem path when IsLocal, otherwise the normalized
	// remote URL.
	URL string

	// GitDir is ".git" for a working tree, "." inside a bare mirror.
	GitDir string
}

// LockedAttrs is the value half of a locked-input cache record: a rev
// pinned to a point in time, with optional auxiliary facts.
type LockedAttrs struct {
	Rev          string
	LastModified int64
	RevCount     *int64
}

// UnlockedAttrs is the value half of an unlocked-input cache record.
type UnlockedAttrs struct {
	Rev          string
	LastModified int64
	RevCount     *int64
}

// fetchMode mirrors the {shallow, full, all-refs} modes named in
// spec.md §4.D.
type fetchMode int

const (
	fetchShallow fetchMode = iota
	fetchFull
	fetchAllRefs
)

// defaultTTL is the default freshness window for a mirror's per-ref file and for
// the cached HEAD symref, overridable via WithTTL.
const defaultTTL = 1 * time.Hour

// lockRetryInterval is how often MirrorLock.withLock polls for the
// underlying advisory lock while TryLockContext's context is still live.
const lockRetryInterval = 50 * time.Millisecond

// dummyBranch is the sentinel default branch name used when initializing
// a bare mirror, matching upstream's "__nix_dummy_branch" so a mirror
// that has never resolved HEAD doesn't silently appear to track a real
// branch.
const dummyBranch = "__nix_dummy_branch"
