package host

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.gazette.dev/sqlkv/codecs"
)

// checkpointMagic begins the uncompressed header line of a checkpoint file.
const checkpointMagic = "SQLKV1"

// CheckpointConfig locates the checkpoint file of a Server.
type CheckpointConfig struct {
	Fs    afero.Fs
	Path  string
	Codec codecs.Codec
}

type checkpointEntry struct {
	key   string
	value Value
	dt    DataType
}

// SaveCheckpoint writes the configured checkpoint of the Server.
func (s *Server) SaveCheckpoint() error {
	if s.Checkpoint == nil {
		return errors.New("ERR checkpoint is not configured")
	}
	return s.WriteCheckpoint(s.Checkpoint.Fs, s.Checkpoint.Path, s.Checkpoint.Codec)
}

// LoadCheckpoint reads the configured checkpoint of the Server.
func (s *Server) LoadCheckpoint() error {
	if s.Checkpoint == nil {
		return errors.New("ERR checkpoint is not configured")
	}
	return s.ReadCheckpoint(s.Checkpoint.Fs, s.Checkpoint.Path)
}

// WriteCheckpoint writes all keys of the Server to |path|, compressed with
// |codec|. Values are snapshotted under the execution context lock, and then
// written without it. The file is written to a temporary sibling of |path|
// and renamed into place, so that |path| is always a complete checkpoint.
// WriteCheckpoint must not be called with the execution context lock held.
func (s *Server) WriteCheckpoint(fs afero.Fs, path string, codec codecs.Codec) error {
	var started = time.Now()

	var entries, err = s.snapshot()
	if err != nil {
		return err
	}

	tmp, err := afero.TempFile(fs, filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.WithMessage(err, "creating temporary checkpoint")
	}
	if err = writeCheckpoint(tmp, codec, entries); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmp.Name())
		return err
	} else if err = tmp.Close(); err != nil {
		_ = fs.Remove(tmp.Name())
		return errors.WithMessage(err, "closing temporary checkpoint")
	} else if err = fs.Rename(tmp.Name(), path); err != nil {
		_ = fs.Remove(tmp.Name())
		return errors.WithMessage(err, "renaming checkpoint")
	}

	var fields = log.Fields{
		"path":  path,
		"codec": codec,
		"keys":  len(entries),
		"took":  time.Since(started),
	}
	if info, err := fs.Stat(path); err == nil {
		fields["size"] = humanize.Bytes(uint64(info.Size()))
	}
	log.WithFields(fields).Info("wrote checkpoint")
	return nil
}

func (s *Server) snapshot() ([]checkpointEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out = make([]checkpointEntry, 0, len(s.keys))
	for _, key := range s.sortedKeys() {
		var v = s.keys[key]
		var dt, ok = s.types[v.TypeName()]
		if !ok {
			return nil, errors.Errorf("key %q has unregistered type %q", key, v.TypeName())
		}
		if sn, ok := v.(Snapshotter); ok {
			v = sn.Snapshot()
		}
		out = append(out, checkpointEntry{key: key, value: v, dt: dt})
	}
	return out, nil
}

func writeCheckpoint(f afero.File, codec codecs.Codec, entries []checkpointEntry) error {
	if _, err := fmt.Fprintf(f, "%s %s\n", checkpointMagic, codec); err != nil {
		return errors.WithMessage(err, "writing checkpoint header")
	}
	var cw, err = codecs.NewWriter(f, codec)
	if err != nil {
		return err
	}
	var w = NewRDBWriter(cw)

	if err = w.SaveSigned(int64(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err = w.SaveString(e.key); err != nil {
			return err
		} else if err = w.SaveString(e.dt.Name); err != nil {
			return err
		} else if err = e.dt.Save(w, e.value); err != nil {
			return errors.WithMessagef(err, "saving key %q", e.key)
		}
	}
	if err = w.Flush(); err != nil {
		return err
	} else if err = cw.Close(); err != nil {
		return errors.WithMessage(err, "closing checkpoint compressor")
	}
	return f.Sync()
}

// ReadCheckpoint loads all keys of the checkpoint at |path| into the Server,
// replacing keys of the same name. If any key fails to load, no key
// is changed. ReadCheckpoint must not be called with the execution context
// lock held.
func (s *Server) ReadCheckpoint(fs afero.Fs, path string) error {
	var f, err = fs.Open(path)
	if err != nil {
		return errors.WithMessage(err, "opening checkpoint")
	}
	defer f.Close()

	var br = bufio.NewReader(f)
	header, err := br.ReadString('\n')
	if err != nil {
		return errors.WithMessage(err, "reading checkpoint header")
	}
	var parts = strings.Fields(header)
	if len(parts) != 2 || parts[0] != checkpointMagic {
		return errors.Errorf("%s is not a checkpoint file", path)
	}
	var codec = codecs.Codec(parts[1])

	cr, err := codecs.NewReader(br, codec)
	if err != nil {
		return err
	}
	defer cr.Close()

	s.mu.Lock()
	var types = make(map[string]DataType, len(s.types))
	for name, dt := range s.types {
		types[name] = dt
	}
	s.mu.Unlock()

	var loaded []checkpointEntry
	if loaded, err = readEntries(NewRDBReader(cr), types); err != nil {
		for _, e := range loaded {
			free(e.value)
		}
		return err
	}

	s.mu.Lock()
	for _, e := range loaded {
		if prev, ok := s.keys[e.key]; ok {
			free(prev)
		}
		s.keys[e.key] = e.value
	}
	s.mu.Unlock()

	log.WithFields(log.Fields{"path": path, "codec": codec, "keys": len(loaded)}).
		Info("loaded checkpoint")
	return nil
}

// readEntries returns entries read before an error, as well as the error.
func readEntries(r *RDBReader, types map[string]DataType) ([]checkpointEntry, error) {
	var n, err = r.LoadSigned()
	if err != nil {
		return nil, err
	}
	var out []checkpointEntry

	for i := int64(0); i != n; i++ {
		var key, name string

		if key, err = r.LoadString(); err != nil {
			return out, err
		} else if name, err = r.LoadString(); err != nil {
			return out, err
		}
		var dt, ok = types[name]
		if !ok {
			return out, errors.Errorf("key %q has unregistered type %q", key, name)
		}
		v, err := dt.Load(r)
		if err != nil {
			return out, errors.WithMessagef(err, "loading key %q", key)
		}
		out = append(out, checkpointEntry{key: key, value: v, dt: dt})
	}
	return out, nil
}
