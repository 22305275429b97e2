package host

import (
	"strconv"
)

// ReplyWriter writes replies of the RESP protocol to a client.
// redcon.Conn is a ReplyWriter.
type ReplyWriter interface {
	WriteError(msg string)
	WriteString(str string)
	WriteBulk(bulk []byte)
	WriteBulkString(bulk string)
	WriteInt64(num int64)
	WriteArray(count int)
	WriteNull()
}

// Reply is a deferred reply, written once its client is resumed.
type Reply interface {
	WriteReply(w ReplyWriter)
}

// ReplyFunc adapts a function to a Reply.
type ReplyFunc func(w ReplyWriter)

// WriteReply calls the ReplyFunc.
func (fn ReplyFunc) WriteReply(w ReplyWriter) { fn(w) }

// ErrorReply returns a Reply of |err|.
func ErrorReply(err error) Reply {
	return ReplyFunc(func(w ReplyWriter) { w.WriteError(err.Error()) })
}

// WriteFloat writes |f| as a bulk string, as RESP2 has no floating-point type.
func WriteFloat(w ReplyWriter, f float64) {
	w.WriteBulkString(strconv.FormatFloat(f, 'g', 17, 64))
}

// SimpleString is a recorded simple string reply.
type SimpleString string

// ErrorString is a recorded error reply.
type ErrorString string

// ReplyBuffer is a ReplyWriter which records replies as values. Simple
// strings are recorded as SimpleString, errors as ErrorString, bulk strings as
// string, integers as int64, nulls as nil, and arrays as []interface{}.
type ReplyBuffer struct {
	Replies []interface{}

	stack []*pendingArray
}

type pendingArray struct {
	items []interface{}
	want  int
}

// WriteError records an error.
func (b *ReplyBuffer) WriteError(msg string) { b.push(ErrorString(msg)) }

// WriteString records a simple string.
func (b *ReplyBuffer) WriteString(str string) { b.push(SimpleString(str)) }

// WriteBulk records a bulk string.
func (b *ReplyBuffer) WriteBulk(bulk []byte) { b.push(string(bulk)) }

// WriteBulkString records a bulk string.
func (b *ReplyBuffer) WriteBulkString(bulk string) { b.push(bulk) }

// WriteInt64 records an integer.
func (b *ReplyBuffer) WriteInt64(num int64) { b.push(num) }

// WriteNull records a null.
func (b *ReplyBuffer) WriteNull() { b.push(nil) }

// WriteArray begins an array of |count| following replies.
func (b *ReplyBuffer) WriteArray(count int) {
	if count <= 0 {
		b.push([]interface{}{})
		return
	}
	b.stack = append(b.stack, &pendingArray{items: make([]interface{}, 0, count), want: count})
}

// Last returns the most recently completed reply, or nil if there is none.
func (b *ReplyBuffer) Last() interface{} {
	if len(b.Replies) == 0 {
		return nil
	}
	return b.Replies[len(b.Replies)-1]
}

// Reset discards recorded replies.
func (b *ReplyBuffer) Reset() { b.Replies, b.stack = nil, nil }

func (b *ReplyBuffer) push(v interface{}) {
	for len(b.stack) != 0 {
		var top = b.stack[len(b.stack)-1]
		if top.items = append(top.items, v); len(top.items) < top.want {
			return
		}
		b.stack = b.stack[:len(b.stack)-1]
		v = top.items
	}
	b.Replies = append(b.Replies, v)
}
