package orderreader

// SlidingWindow remembers the last N observed ids. Replay after a restart
// can re-deliver messages whose effects the snapshot already contains; the
// window drops those without unbounded memory.
type SlidingWindow struct {
	size  int
	seen  map[string]struct{}
	queue []string
	head  int
}

// NewSlidingWindow creates a window remembering the last size ids.
func NewSlidingWindow(size int) *SlidingWindow {
	if size <= 0 {
		size = 1
	}
	return &SlidingWindow{
		size:  size,
		seen:  make(map[string]struct{}, size),
		queue: make([]string, 0, size),
	}
}

// Observe records an id and reports whether it was already in the window.
func (w *SlidingWindow) Observe(id string) bool {
	if _, ok := w.seen[id]; ok {
		return true
	}

	if len(w.queue) < w.size {
		w.queue = append(w.queue, id)
	} else {
		delete(w.seen, w.queue[w.head])
		w.queue[w.head] = id
		w.head = (w.head + 1) % w.size
	}
	w.seen[id] = struct{}{}
	return false
}

// Len returns how many ids the window currently holds.
func (w *SlidingWindow) Len() int {
	return len(w.seen)
}
