package device

import "sync"

type change struct {
	value   any
	version uint64
}

// changeSet maps wire field names to locally written values. Every write gets
// a fresh version so a commit only clears the entries it actually sent.
type changeSet struct {
	entries map[string]change
	seq     uint64
}

func (c *changeSet) record(name string, value any) {
	if c.entries == nil {
		c.entries = make(map[string]change)
	}
	c.seq++
	c.entries[name] = change{value: value, version: c.seq}
}

func (c *changeSet) has(name string) bool {
	_, ok := c.entries[name]
	return ok
}

func (c *changeSet) len() int {
	return len(c.entries)
}

// snapshot returns the outgoing fields, skipping generated ones, and the
// versions they were taken at.
func (c *changeSet) snapshot(generated map[string]bool) (map[string]any, map[string]uint64) {
	if len(c.entries) == 0 {
		return nil, nil
	}
	fields := make(map[string]any, len(c.entries))
	versions := make(map[string]uint64, len(c.entries))
	for name, ch := range c.entries {
		versions[name] = ch.version
		if generated[name] {
			continue
		}
		fields[name] = ch.value
	}
	return fields, versions
}

// clear drops entries that were not rewritten since the snapshot.
func (c *changeSet) clear(versions map[string]uint64) {
	for name, v := range versions {
		if ch, ok := c.entries[name]; ok && ch.version == v {
			delete(c.entries, name)
		}
	}
}

// record holds the current field values of one entity together with its
// pending writes. assign applies a single named write to a value of T.
type record[T any] struct {
	mu        sync.Mutex
	info      T
	changes   changeSet
	assign    func(*T, string, any)
	generated map[string]bool
}

func (r *record[T]) get() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

func (r *record[T]) set(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assign(&r.info, name, value)
	r.changes.record(name, value)
}

// merge replaces the current values with remote ones, keeping every field
// that has a pending local write.
func (r *record[T]) merge(remote T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, ch := range r.changes.entries {
		r.assign(&remote, name, ch.value)
	}
	r.info = remote
}

func (r *record[T]) dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes.len() > 0
}

// pending returns the fields to send and a func that forgets them once the
// write has been accepted.
func (r *record[T]) pending() (map[string]any, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fields, versions := r.changes.snapshot(r.generated)
	if versions == nil {
		return nil, nil
	}
	return fields, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.changes.clear(versions)
	}
}
