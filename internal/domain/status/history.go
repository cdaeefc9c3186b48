package status

// History is a fixed-capacity FIFO of latency samples; nil marks a failed probe.
type History struct {
	buf  []*int64
	head int
	size int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistorySize
	}
	return &History{buf: make([]*int64, capacity)}
}

func (h *History) Push(latencyMs *int64) {
	var v *int64
	if latencyMs != nil {
		x := *latencyMs
		v = &x
	}
	idx := (h.head + h.size) % len(h.buf)
	h.buf[idx] = v
	if h.size < len(h.buf) {
		h.size++
		return
	}
	h.head = (h.head + 1) % len(h.buf)
}

func (h *History) Len() int { return h.size }

func (h *History) Cap() int { return len(h.buf) }

// Latencies returns the samples oldest first.
func (h *History) Latencies() []*int64 {
	out := make([]*int64, 0, h.size)
	for i := 0; i < h.size; i++ {
		v := h.buf[(h.head+i)%len(h.buf)]
		if v != nil {
			x := *v
			v = &x
		}
		out = append(out, v)
	}
	return out
}

func (h *History) Reset() {
	for i := range h.buf {
		h.buf[i] = nil
	}
	h.head, h.size = 0, 0
}
