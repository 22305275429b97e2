package instance

import (
	"io"
	"time"

	"go.gazette.dev/sqlkv/engine"
	"go.gazette.dev/sqlkv/host"
	"go.gazette.dev/sqlkv/sqlerr"
)

// yieldEvery is the number of rows streamed between releases of the
// execution context lock.
const yieldEvery = 256

// streamSink appends to Streams under the execution context lock.
// *host.ThreadSafeContext is a streamSink.
type streamSink interface {
	Lock()
	Unlock()
	StreamAppend(key string, fields []string) (host.StreamID, error)
}

// streamColumns are the columns of the summary row of a streamed result.
var streamColumns = []string{"stream", "first_id", "last_id", "size"}

// streamRows appends each row of |cur| as an entry of Stream |stream|, and
// returns a summary row of the Stream name, the first and last appended IDs,
// and the number of rows. Each cell is a field named by its type and column,
// as "int:<column>". The execution context lock is held while appending, and
// is released and re-acquired every yieldEvery rows. |deadline| is checked
// before every row. Rows appended before a failure remain in the Stream.
// |cur| must be a CursorRows.
func streamRows(sink streamSink, stream string, cur *engine.Cursor, deadline time.Time) (*engine.Result, error) {
	if expired(deadline) {
		return nil, sqlerr.NewTimeout()
	}
	sink.Lock()
	defer sink.Unlock()

	var columns = cur.Columns()
	var first, last host.StreamID
	var count int64

	for {
		var row, err = cur.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		} else if expired(deadline) {
			return nil, sqlerr.NewTimeout()
		}

		if count != 0 && count%yieldEvery == 0 {
			sink.Unlock()
			sink.Lock()
		}

		id, err := sink.StreamAppend(stream, rowFields(columns, row))
		if err != nil {
			return nil, sqlerr.New(sqlerr.Engine, err.Error(), "Error in XADD to "+stream)
		}
		if count == 0 {
			first = id
		}
		last = id
		count++
	}

	if count == 0 {
		panic("streamed cursor had no rows")
	}
	return &engine.Result{
		Kind:    engine.CursorRows,
		Columns: streamColumns,
		Rows: [][]engine.Value{{
			engine.TextValue(stream),
			engine.TextValue(first.String()),
			engine.TextValue(last.String()),
			engine.IntValue(count),
		}},
	}, nil
}

// rowFields returns alternating field names and values of |row|.
func rowFields(columns []string, row []engine.Value) []string {
	var out = make([]string, 0, 2*len(row))
	for i, v := range row {
		out = append(out, v.Kind.String()+":"+columns[i], v.String())
	}
	return out
}
