package host

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/match"
)

func registerBuiltins(s *Server) {
	s.types[StreamType] = DataType{Name: StreamType, Save: saveStream, Load: loadStream}

	for name, fn := range map[string]CommandFunc{
		"PING":   cmdPing,
		"ECHO":   cmdEcho,
		"DEL":    cmdDel,
		"EXISTS": cmdExists,
		"TYPE":   cmdType,
		"KEYS":   cmdKeys,
		"DBSIZE": cmdDBSize,
		"XADD":   cmdXAdd,
		"XLEN":   cmdXLen,
		"XRANGE": cmdXRange,
		"SAVE":   cmdSave,
	} {
		s.commands[name] = fn
	}
}

func arityError(args [][]byte) error {
	return fmt.Errorf("ERR wrong number of arguments for '%s' command", strings.ToLower(string(args[0])))
}

func cmdPing(ctx *Context, args [][]byte) error {
	switch len(args) {
	case 1:
		ctx.Reply().WriteString("PONG")
	case 2:
		ctx.Reply().WriteBulk(args[1])
	default:
		return arityError(args)
	}
	return nil
}

func cmdEcho(ctx *Context, args [][]byte) error {
	if len(args) != 2 {
		return arityError(args)
	}
	ctx.Reply().WriteBulk(args[1])
	return nil
}

func cmdDel(ctx *Context, args [][]byte) error {
	if len(args) < 2 {
		return arityError(args)
	}
	var n int64
	for _, key := range args[1:] {
		if ctx.Delete(string(key)) {
			n++
		}
	}
	ctx.Reply().WriteInt64(n)
	return nil
}

func cmdExists(ctx *Context, args [][]byte) error {
	if len(args) < 2 {
		return arityError(args)
	}
	var n int64
	for _, key := range args[1:] {
		if _, ok := ctx.Get(string(key)); ok {
			n++
		}
	}
	ctx.Reply().WriteInt64(n)
	return nil
}

func cmdType(ctx *Context, args [][]byte) error {
	if len(args) != 2 {
		return arityError(args)
	}
	if v, ok := ctx.Get(string(args[1])); ok {
		ctx.Reply().WriteString(v.TypeName())
	} else {
		ctx.Reply().WriteString("none")
	}
	return nil
}

func cmdKeys(ctx *Context, args [][]byte) error {
	if len(args) != 2 {
		return arityError(args)
	}
	var out []string
	for _, key := range ctx.Keys() {
		if match.Match(key, string(args[1])) {
			out = append(out, key)
		}
	}
	ctx.Reply().WriteArray(len(out))
	for _, key := range out {
		ctx.Reply().WriteBulkString(key)
	}
	return nil
}

func cmdDBSize(ctx *Context, args [][]byte) error {
	if len(args) != 1 {
		return arityError(args)
	}
	ctx.Reply().WriteInt64(int64(len(ctx.srv.keys)))
	return nil
}

// XADD key <* | id> field value [field value ...]
func cmdXAdd(ctx *Context, args [][]byte) error {
	if len(args) < 5 || len(args)%2 != 1 {
		return arityError(args)
	}
	var id *StreamID
	if s := string(args[2]); s != "*" {
		var parsed, err = ParseStreamID(s, 0)
		if err != nil {
			return err
		}
		id = &parsed
	}
	var fields = make([]string, 0, len(args)-3)
	for _, f := range args[3:] {
		fields = append(fields, string(f))
	}
	var out, err = ctx.srv.streamAppend(string(args[1]), id, fields)
	if err != nil {
		return err
	}
	ctx.Reply().WriteBulkString(out.String())
	return nil
}

func cmdXLen(ctx *Context, args [][]byte) error {
	if len(args) != 2 {
		return arityError(args)
	}
	var stream, err = getStream(ctx, string(args[1]))
	if err != nil {
		return err
	}
	var n int
	if stream != nil {
		n = stream.Len()
	}
	ctx.Reply().WriteInt64(int64(n))
	return nil
}

// XRANGE key start end [COUNT count]
func cmdXRange(ctx *Context, args [][]byte) error {
	if len(args) != 4 && len(args) != 6 {
		return arityError(args)
	}
	var start, err = ParseStreamID(string(args[2]), 0)
	if err != nil {
		return err
	}
	end, err := ParseStreamID(string(args[3]), ^uint64(0))
	if err != nil {
		return err
	}
	var count int
	if len(args) == 6 {
		if !strings.EqualFold(string(args[4]), "COUNT") {
			return errors.New("ERR syntax error")
		} else if count, err = strconv.Atoi(string(args[5])); err != nil || count < 0 {
			return errors.New("ERR value is not an integer or out of range")
		}
	}
	stream, err := getStream(ctx, string(args[1]))
	if err != nil {
		return err
	}
	var entries []StreamEntry
	if stream != nil && (len(args) != 6 || count != 0) {
		entries = stream.Range(start, end, count)
	}

	var w = ctx.Reply()
	w.WriteArray(len(entries))
	for _, e := range entries {
		w.WriteArray(2)
		w.WriteBulkString(e.ID.String())
		w.WriteArray(len(e.Fields))
		for _, f := range e.Fields {
			w.WriteBulkString(f)
		}
	}
	return nil
}

func cmdSave(ctx *Context, args [][]byte) error {
	if len(args) != 1 {
		return arityError(args)
	}
	var srv = ctx.srv
	if srv.Checkpoint == nil {
		return errors.New("ERR checkpoint is not configured")
	}
	// The checkpoint is written once this handler releases the lock.
	var bc = ctx.BlockClient()
	go func() {
		if err := srv.SaveCheckpoint(); err != nil {
			log.WithField("err", err).Error("SAVE failed")
			bc.Unblock(ErrorReply(err))
		} else {
			bc.Unblock(ReplyFunc(func(w ReplyWriter) { w.WriteString("OK") }))
		}
	}()
	return nil
}

// getStream returns the Stream of |key|, or nil if the key doesn't exist.
func getStream(ctx *Context, key string) (*Stream, error) {
	var v, ok = ctx.Get(key)
	if !ok {
		return nil, nil
	}
	var s, isStream = v.(*Stream)
	if !isStream {
		return nil, ErrWrongType
	}
	return s, nil
}
