// Package transcript keeps a bounded rolling log of what was spoken.
package transcript

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/sightline-go/internal/errors"
)

// DefaultCapacity is the transcript size in bytes.
const DefaultCapacity = 16 * 1024

// Line is one transcript entry.
type Line struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Transcript stores newline-terminated records in a byte ring. When a new
// record does not fit, whole records are evicted from the front.
type Transcript struct {
	mu       sync.Mutex
	buf      *ringbuffer.RingBuffer
	capacity int
	lines    int
	evicted  int
}

// New returns a transcript holding at most capacity bytes of records.
func New(capacity int) *Transcript {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Transcript{buf: ringbuffer.New(capacity), capacity: capacity}
}

// Append records text at t.
func (tr *Transcript) Append(t time.Time, text string) error {
	rec := encode(t, text, tr.capacity)

	tr.mu.Lock()
	defer tr.mu.Unlock()

	for tr.buf.Free() < len(rec) && tr.lines > 0 {
		if err := tr.dropOldest(); err != nil {
			return err
		}
	}
	if _, err := tr.buf.Write(rec); err != nil {
		return errors.New(err).
			Component("transcript").
			Category(errors.CategoryState).
			Context("operation", "append").
			Build()
	}
	tr.lines++
	return nil
}

func (tr *Transcript) dropOldest() error {
	for {
		b, err := tr.buf.ReadByte()
		if err != nil {
			return errors.New(err).
				Component("transcript").
				Category(errors.CategoryState).
				Context("operation", "evict").
				Build()
		}
		if b == '\n' {
			tr.lines--
			tr.evicted++
			return nil
		}
	}
}

// Lines returns the transcript, oldest first.
func (tr *Transcript) Lines() []Line {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	raw := tr.snapshot()
	out := make([]Line, 0, tr.lines)
	for rec := range bytes.SplitSeq(raw, []byte{'\n'}) {
		if len(rec) == 0 {
			continue
		}
		if l, ok := decode(rec); ok {
			out = append(out, l)
		}
	}
	return out
}

// Texts returns only the spoken text of each line.
func (tr *Transcript) Texts() []string {
	lines := tr.Lines()
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

// snapshot copies the ring contents without consuming them.
func (tr *Transcript) snapshot() []byte {
	n := tr.buf.Length()
	if n == 0 {
		return nil
	}
	data := make([]byte, n)
	read, _ := tr.buf.Read(data)
	data = data[:read]
	_, _ = tr.buf.Write(data)
	return data
}

// Len returns the number of stored lines.
func (tr *Transcript) Len() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.lines
}

// Evicted returns how many lines were pushed out since creation.
func (tr *Transcript) Evicted() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.evicted
}

// Reset empties the transcript.
func (tr *Transcript) Reset() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.buf.Reset()
	tr.lines = 0
}

func encode(t time.Time, text string, capacity int) []byte {
	text = strings.Join(strings.Fields(text), " ")
	rec := t.UTC().Format(time.RFC3339Nano) + "\t" + text
	if len(rec)+1 > capacity {
		rec = rec[:capacity-1]
	}
	return []byte(rec + "\n")
}

func decode(rec []byte) (Line, bool) {
	stamp, text, ok := bytes.Cut(rec, []byte{'\t'})
	if !ok {
		return Line{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, string(stamp))
	if err != nil {
		return Line{}, false
	}
	return Line{Time: t, Text: string(text)}, true
}
