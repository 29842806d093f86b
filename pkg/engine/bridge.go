package engine

import (
	"sync"
	"unsafe"

	"github.com/teslashibe/go-eyedid/internal/log"
)

// The engine sees a registration only as an opaque user-data integer. The
// registry maps it back to the Callbacks value so Go pointers never cross the
// ABI, and so a late callback for a removed registration is dropped instead of
// touching freed state.

type entry struct {
	cb Callbacks

	// Dispatches hold the read lock; unregister takes the write lock so it
	// returns only after every in-flight callback has finished.
	mu      sync.RWMutex
	removed bool
}

type registry struct {
	mu      sync.RWMutex
	next    uintptr
	entries map[uintptr]*entry
}

var bridge = &registry{entries: make(map[uintptr]*entry)}

// register returns a non-zero token for cb.
func (r *registry) register(cb Callbacks) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.entries[r.next] = &entry{cb: cb}
	return r.next
}

// unregister removes the token and waits for in-flight dispatches. It must not
// be called from inside a callback for the same token.
func (r *registry) unregister(token uintptr) {
	r.mu.Lock()
	e, ok := r.entries[token]
	delete(r.entries, token)
	r.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
}

func (r *registry) lookup(token uintptr) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[token]
	return e, ok
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// dispatch runs fn against the registration for token. Panics are recovered
// and logged; nothing propagates back into the engine.
func dispatch(token uintptr, kind string, fn func(Callbacks)) {
	e, ok := bridge.lookup(token)
	if !ok {
		log.Debug("dropping engine callback for unknown context", "kind", kind, "token", token)
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.removed {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("engine callback panicked", "kind", kind, "panic", r)
		}
	}()
	fn(e.cb)
}

func dispatchMetrics(token uintptr, timestamp uint64, data *Data) {
	if data == nil {
		log.Warn("engine sent metrics without data", "timestamp", timestamp)
		return
	}
	// Copy out of engine memory before handing it to Go code.
	d := *data
	dispatch(token, "metrics", func(cb Callbacks) { cb.OnMetrics(timestamp, &d) })
}

func dispatchDrop(token uintptr, timestamp uint64) {
	dispatch(token, "drop", func(cb Callbacks) { cb.OnDrop(timestamp) })
}

func dispatchProgress(token uintptr, progress float32) {
	dispatch(token, "calibration_progress", func(cb Callbacks) { cb.OnCalibrationProgress(progress) })
}

func dispatchNextPoint(token uintptr, x, y float32) {
	dispatch(token, "calibration_next_point", func(cb Callbacks) { cb.OnCalibrationNextPoint(x, y) })
}

func dispatchFinished(token uintptr, data *float32, size uint32) {
	blob := copyBlob(data, size)
	dispatch(token, "calibration_finished", func(cb Callbacks) { cb.OnCalibrationFinished(blob) })
}

func dispatchCanceled(token uintptr, data *float32, size uint32) {
	blob := copyBlob(data, size)
	dispatch(token, "calibration_canceled", func(cb Callbacks) { cb.OnCalibrationCanceled(blob) })
}

// copyBlob copies an engine-owned float array. A null or empty array yields an
// empty, non-nil slice.
func copyBlob(data *float32, size uint32) []float32 {
	if data == nil || size == 0 {
		return []float32{}
	}
	out := make([]float32, size)
	copy(out, unsafe.Slice(data, size))
	return out
}
