package storage

import "sort"

// Overlay buffers writes on top of a Database. Reads observe buffered writes
// first. Nothing reaches the base store until Commit, which flushes every
// pending write in a single batch. Discard drops the buffer.
//
// Overlay is not safe for concurrent use.
type Overlay struct {
	base    Database
	pending map[string][]byte
	deleted map[string]struct{}
}

// NewOverlay returns an empty overlay on top of base.
func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		pending: make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	k := string(key)
	if value, ok := o.pending[k]; ok {
		return append([]byte(nil), value...), nil
	}
	if _, ok := o.deleted[k]; ok {
		return nil, ErrNotFound
	}
	return o.base.Get(key)
}

func (o *Overlay) Put(key []byte, value []byte) error {
	k := string(key)
	delete(o.deleted, k)
	o.pending[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	k := string(key)
	delete(o.pending, k)
	o.deleted[k] = struct{}{}
	return nil
}

// Dirty reports whether the overlay holds uncommitted writes.
func (o *Overlay) Dirty() bool {
	return len(o.pending) > 0 || len(o.deleted) > 0
}

// Commit flushes pending writes to the base store atomically and resets the
// overlay. Keys are written in sorted order so batches are deterministic.
func (o *Overlay) Commit() error {
	if !o.Dirty() {
		return nil
	}
	batch := o.base.NewBatch()
	keys := make([]string, 0, len(o.pending))
	for k := range o.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		batch.Put([]byte(k), o.pending[k])
	}
	removed := make([]string, 0, len(o.deleted))
	for k := range o.deleted {
		removed = append(removed, k)
	}
	sort.Strings(removed)
	for _, k := range removed {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	o.Discard()
	return nil
}

// Discard drops every pending write.
func (o *Overlay) Discard() {
	o.pending = make(map[string][]byte)
	o.deleted = make(map[string]struct{})
}
