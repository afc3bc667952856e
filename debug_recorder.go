package collide

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// DebugCell is one occupied grid cell of a recorded frame.
type DebugCell struct {
	Key    CellKey  `msgpack:"k"`
	Bounds AABB     `msgpack:"b"`
	Bodies []BodyID `msgpack:"ids"`
}

// DebugFrame is what the recorder writes per Update: enough to draw the grid
// and the pair lines in an external overlay.
type DebugFrame struct {
	Frame     uint64          `msgpack:"f"`
	Rebuilt   bool            `msgpack:"r"`
	Reason    string          `msgpack:"why,omitempty"`
	Cells     []DebugCell     `msgpack:"cells,omitempty"`
	Pairs     []PairKey       `msgpack:"pairs,omitempty"`
	Confirmed []CollisionInfo `msgpack:"hits,omitempty"`
	Stats     FrameStats      `msgpack:"stats"`
}

// DebugRecorder streams DebugFrames as consecutive msgpack values.
type DebugRecorder struct {
	w      io.Writer
	enc    *msgpack.Encoder
	cells  bool
	closed bool
	frames int
}

// NewDebugRecorder writes to w. withCells controls whether grid cells are
// included, which is the bulk of each frame.
func NewDebugRecorder(w io.Writer, withCells bool) *DebugRecorder {
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	return &DebugRecorder{w: w, enc: enc, cells: withCells}
}

var ErrRecorderClosed = errors.New("debug recorder closed")

// Record encodes one frame.
func (r *DebugRecorder) Record(frame DebugFrame) error {
	if r == nil || r.closed {
		return ErrRecorderClosed
	}
	if !r.cells {
		frame.Cells = nil
	}
	if err := r.enc.Encode(&frame); err != nil {
		return fmt.Errorf("encode debug frame %d: %w", frame.Frame, err)
	}
	r.frames++
	return nil
}

// WantsCells reports whether Record keeps the cell list.
func (r *DebugRecorder) WantsCells() bool { return r != nil && r.cells }

// Frames is the number of frames written so far.
func (r *DebugRecorder) Frames() int {
	if r == nil {
		return 0
	}
	return r.frames
}

// Close closes the writer if it is an io.Closer. Closing twice is a no-op.
func (r *DebugRecorder) Close() error {
	if r == nil || r.closed {
		return nil
	}
	r.closed = true
	if c, ok := r.w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close debug recorder: %w", err)
		}
	}
	return nil
}

// ReadDebugFrames decodes every frame from rd until EOF.
func ReadDebugFrames(rd io.Reader) ([]DebugFrame, error) {
	dec := msgpack.NewDecoder(rd)
	var frames []DebugFrame
	for {
		var f DebugFrame
		if err := dec.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return frames, fmt.Errorf("decode debug frame %d: %w", len(frames), err)
		}
		frames = append(frames, f)
	}
}
