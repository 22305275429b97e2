package host

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// StreamType is the DataType name of a Stream.
const StreamType = "stream"

// StreamID identifies an entry of a Stream.
type StreamID struct {
	Ms, Seq uint64
}

func (id StreamID) String() string { return fmt.Sprintf("%d-%d", id.Ms, id.Seq) }

// Less returns whether |id| orders before |other|.
func (id StreamID) Less(other StreamID) bool {
	return id.Ms < other.Ms || (id.Ms == other.Ms && id.Seq < other.Seq)
}

// ParseStreamID parses "<ms>-<seq>" or "<ms>". In the latter form, the
// sequence number is |defaultSeq|. "-" and "+" are the minimum and maximum IDs.
func ParseStreamID(s string, defaultSeq uint64) (StreamID, error) {
	switch s {
	case "-":
		return StreamID{}, nil
	case "+":
		return StreamID{Ms: math.MaxUint64, Seq: math.MaxUint64}, nil
	}
	var ms, seq = s, ""
	if ind := strings.IndexByte(s, '-'); ind != -1 {
		ms, seq = s[:ind], s[ind+1:]
	}
	var id = StreamID{Seq: defaultSeq}
	var err error

	if id.Ms, err = strconv.ParseUint(ms, 10, 64); err != nil {
		return StreamID{}, errInvalidStreamID
	}
	if seq != "" {
		if id.Seq, err = strconv.ParseUint(seq, 10, 64); err != nil {
			return StreamID{}, errInvalidStreamID
		}
	}
	return id, nil
}

// StreamEntry is an entry of a Stream: an ID and alternating field names
// and values.
type StreamEntry struct {
	ID     StreamID
	Fields []string
}

// Stream is an append-only log of entries ordered by increasing StreamID.
type Stream struct {
	entries []StreamEntry
	last    StreamID
}

// TypeName returns StreamType.
func (*Stream) TypeName() string { return StreamType }

// Len is the number of entries of the Stream.
func (s *Stream) Len() int { return len(s.entries) }

// Snapshot returns a copy of the Stream.
func (s *Stream) Snapshot() Value {
	return &Stream{entries: append([]StreamEntry(nil), s.entries...), last: s.last}
}

// Range returns up to |count| entries having IDs within [start, end].
// A |count| of zero is unlimited.
func (s *Stream) Range(start, end StreamID, count int) []StreamEntry {
	var out []StreamEntry
	for _, e := range s.entries {
		if e.ID.Less(start) {
			continue
		} else if end.Less(e.ID) {
			break
		}
		out = append(out, e)

		if count != 0 && len(out) == count {
			break
		}
	}
	return out
}

// append an entry of |fields|. If |id| is nil, an ID is generated from |now|.
func (s *Stream) append(id *StreamID, fields []string, now time.Time) (StreamID, error) {
	if len(fields) == 0 || len(fields)%2 != 0 {
		return StreamID{}, errors.New("ERR wrong number of arguments for 'xadd' command")
	}
	var next StreamID

	if id != nil {
		next = *id
		if (next == StreamID{}) {
			return StreamID{}, errors.New("ERR The ID specified in XADD must be greater than 0-0")
		} else if !s.last.Less(next) {
			return StreamID{}, errors.New("ERR The ID specified in XADD is equal or smaller than the target stream top item")
		}
	} else if ms := uint64(now.UnixNano() / int64(time.Millisecond)); ms > s.last.Ms {
		next = StreamID{Ms: ms}
	} else {
		next = StreamID{Ms: s.last.Ms, Seq: s.last.Seq + 1}
	}

	s.entries = append(s.entries, StreamEntry{ID: next, Fields: append([]string(nil), fields...)})
	s.last = next
	return next, nil
}

// streamAppend appends |fields| to the Stream at |key|, creating it if
// required. The execution context lock must be held.
func (s *Server) streamAppend(key string, id *StreamID, fields []string) (StreamID, error) {
	var v, ok = s.keys[key]
	if !ok {
		v = new(Stream)
	}
	var stream, isStream = v.(*Stream)
	if !isStream {
		return StreamID{}, ErrWrongType
	}
	var out, err = stream.append(id, fields, time.Now())
	if err == nil && !ok {
		s.keys[key] = stream
	}
	return out, err
}

// StreamAppend appends |fields| to the Stream at |key| under a generated ID.
func (c *Context) StreamAppend(key string, fields []string) (StreamID, error) {
	return c.srv.streamAppend(key, nil, fields)
}

var errInvalidStreamID = errors.New("ERR Invalid stream ID specified as stream command argument")

func saveStream(w *RDBWriter, v Value) error {
	var s = v.(*Stream)

	if err := w.SaveSigned(int64(len(s.entries))); err != nil {
		return err
	}
	for _, e := range s.entries {
		if err := w.SaveUnsigned(e.ID.Ms); err != nil {
			return err
		} else if err = w.SaveUnsigned(e.ID.Seq); err != nil {
			return err
		} else if err = w.SaveSigned(int64(len(e.Fields))); err != nil {
			return err
		}
		for _, f := range e.Fields {
			if err := w.SaveString(f); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadStream(r *RDBReader) (Value, error) {
	var n, err = r.LoadSigned()
	if err != nil {
		return nil, err
	}
	var s = new(Stream)

	for i := int64(0); i != n; i++ {
		var e StreamEntry
		var nFields int64

		if e.ID.Ms, err = r.LoadUnsigned(); err != nil {
			return nil, err
		} else if e.ID.Seq, err = r.LoadUnsigned(); err != nil {
			return nil, err
		} else if nFields, err = r.LoadSigned(); err != nil {
			return nil, err
		}
		for j := int64(0); j != nFields; j++ {
			var f string
			if f, err = r.LoadString(); err != nil {
				return nil, err
			}
			e.Fields = append(e.Fields, f)
		}
		s.entries = append(s.entries, e)
		s.last = e.ID
	}
	return s, nil
}
