package instance

import (
	"go.gazette.dev/sqlkv/engine"
	"go.gazette.dev/sqlkv/host"
)

var okReply = host.ReplyFunc(func(w host.ReplyWriter) { w.WriteString("OK") })

func okOrError(err error) (host.Reply, error) {
	if err != nil {
		return nil, err
	}
	return okReply, nil
}

// resultReply returns a Reply of |res|. CursorOK is replied as "OK", and
// CursorDone as ["DONE", modified rows]. Rows are replied as an array of
// row arrays.
func resultReply(res *engine.Result) host.Reply {
	return host.ReplyFunc(func(w host.ReplyWriter) { WriteResult(w, res) })
}

// WriteResult writes |res| to |w|.
func WriteResult(w host.ReplyWriter, res *engine.Result) {
	switch res.Kind {
	case engine.CursorOK:
		w.WriteString("OK")
	case engine.CursorDone:
		w.WriteArray(2)
		w.WriteString("DONE")
		w.WriteInt64(res.ModifiedRows)
	case engine.CursorRows:
		w.WriteArray(len(res.Rows))
		for _, row := range res.Rows {
			w.WriteArray(len(row))
			for _, v := range row {
				writeValue(w, v)
			}
		}
	}
}

func writeValue(w host.ReplyWriter, v engine.Value) {
	switch v.Kind {
	case engine.Integer:
		w.WriteInt64(v.Int)
	case engine.Float:
		host.WriteFloat(w, v.Float)
	case engine.Text, engine.Blob:
		w.WriteBulk(v.Bytes)
	default:
		w.WriteNull()
	}
}
