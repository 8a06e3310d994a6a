// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/streamboard/internal/metrics"
	"github.com/tomtom215/streamboard/internal/models"
)

// StreamEntity is the cached state of one stream.
type StreamEntity struct {
	ID             string                 `json:"id"`
	SourceURL      string                 `json:"source_url"`
	Status         models.StreamStatus    `json:"status"`
	RecordingState models.RecordingState  `json:"recording_state"`
	Metrics        models.MetricsSnapshot `json:"metrics"`
	LastError      string                 `json:"last_error,omitempty"`
	LastEventAt    time.Time              `json:"last_event_at,omitempty"` // server timestamp of the last applied event
	LastUpdated    time.Time              `json:"last_updated"`            // local time of the last write
}

// Cache is the in-memory projection of server state.
type Cache struct {
	mu         sync.RWMutex
	streams    map[string]*StreamEntity
	recordings map[string]models.Recording
	recOrder   []string
	generation uint64
	revision   uint64
	now        func() time.Time
}

// New creates an empty cache at generation 1.
func New() *Cache {
	return &Cache{
		streams:    make(map[string]*StreamEntity),
		recordings: make(map[string]models.Recording),
		generation: 1,
		now:        time.Now,
	}
}

// Generation identifies the current session's cache contents. It changes on
// every Reset; work started under an older generation must not be applied.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Revision counts writes; readers can use it to detect change.
func (c *Cache) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

// Reset drops all entities and starts a new generation.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streams = make(map[string]*StreamEntity)
	c.recordings = make(map[string]models.Recording)
	c.recOrder = nil
	c.generation++
	c.revision++
	metrics.SetCacheSize(0, 0)
}

// Update runs fn under the write lock.
func (c *Cache) Update(fn func(tx *Tx)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(fn)
}

// UpdateAt runs fn only if the cache is still at generation gen.
// It reports whether fn ran.
func (c *Cache) UpdateAt(gen uint64, fn func(tx *Tx)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.apply(fn)
	return true
}

func (c *Cache) apply(fn func(tx *Tx)) {
	tx := &Tx{c: c, now: c.now()}
	fn(tx)
	if tx.dirty {
		c.revision++
		metrics.SetCacheSize(len(c.streams), len(c.recordings))
	}
}

// Stream returns a copy of the entity with the given id.
func (c *Cache) Stream(id string) (StreamEntity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.streams[id]
	if !ok {
		return StreamEntity{}, false
	}
	return *s, true
}

// Streams returns copies of all streams ordered by id.
func (c *Cache) Streams() []StreamEntity {
	c.mu.RLock()
	out := make([]StreamEntity, 0, len(c.streams))
	for _, s := range c.streams {
		out = append(out, *s)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Recordings returns copies of all recordings in the order they were added.
func (c *Cache) Recordings() []models.Recording {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Recording, 0, len(c.recOrder))
	for _, name := range c.recOrder {
		out = append(out, c.recordings[name])
	}
	return out
}

// Counts returns the number of cached streams and recordings.
func (c *Cache) Counts() (streams, recordings int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.streams), len(c.recordings)
}

// Tx is a write view of the cache valid only inside Update.
type Tx struct {
	c     *Cache
	now   time.Time
	dirty bool
}

// Stream returns the entity with id, creating it if absent. Changes made
// through the pointer are stamped with the transaction time.
func (tx *Tx) Stream(id string) *StreamEntity {
	tx.dirty = true
	s, ok := tx.c.streams[id]
	if !ok {
		s = &StreamEntity{ID: id, Status: models.StatusIdle, RecordingState: models.RecordingIdle}
		tx.c.streams[id] = s
	}
	s.LastUpdated = tx.now
	return s
}

// Lookup returns the entity with id without creating it.
func (tx *Tx) Lookup(id string) (*StreamEntity, bool) {
	s, ok := tx.c.streams[id]
	if ok {
		tx.dirty = true
		s.LastUpdated = tx.now
	}
	return s, ok
}

// DeleteStream removes the stream with id.
func (tx *Tx) DeleteStream(id string) {
	if _, ok := tx.c.streams[id]; ok {
		delete(tx.c.streams, id)
		tx.dirty = true
	}
}

// RetainStreams removes every stream whose id is not in keep.
func (tx *Tx) RetainStreams(keep map[string]struct{}) {
	for id := range tx.c.streams {
		if _, ok := keep[id]; !ok {
			delete(tx.c.streams, id)
			tx.dirty = true
		}
	}
}

// AddRecording inserts or replaces a recording keyed by filename.
func (tx *Tx) AddRecording(r models.Recording) {
	tx.dirty = true
	if _, ok := tx.c.recordings[r.Filename]; !ok {
		tx.c.recOrder = append(tx.c.recOrder, r.Filename)
	}
	tx.c.recordings[r.Filename] = r
}

// ReplaceRecordings makes list the entire recording set.
func (tx *Tx) ReplaceRecordings(list []models.Recording) {
	tx.dirty = true
	tx.c.recordings = make(map[string]models.Recording, len(list))
	tx.c.recOrder = make([]string, 0, len(list))
	for _, r := range list {
		tx.AddRecording(r)
	}
}
