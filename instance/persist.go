package instance

import (
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.gazette.dev/sqlkv/engine"
	"go.gazette.dev/sqlkv/fileblocks"
	"go.gazette.dev/sqlkv/host"
	"go.gazette.dev/sqlkv/metadata"
	"go.gazette.dev/sqlkv/sqlerr"
)

// tempFs holds the temporary database files of checkpoints. The embedded
// engine reads and writes them directly, so they must be of the OS.
var tempFs = afero.NewOsFs()

func (cfg *Config) tempPath() string {
	var dir = cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "sqlkv-"+uuid.New().String()+".sqlite")
}

// save writes a backup of the Instance database to |w| as encoded blocks.
func (in *Instance) save(w *host.RDBWriter) error {
	var path = in.cfg.tempPath()
	defer tempFs.Remove(path)

	in.conn.Lock()
	var err error
	if in.closed {
		err = errClosed
	} else {
		err = engine.BackupToFile(in.conn, path, engine.NoDeadline)
	}
	in.conn.Unlock()

	if err != nil {
		return errors.WithMessage(err, "backing up instance")
	}

	f, err := tempFs.Open(path)
	if err != nil {
		return sqlerr.NewIO(err, "failed to open instance backup")
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		log.WithFields(log.Fields{
			"path": in.conn.Path(),
			"size": humanize.Bytes(uint64(info.Size())),
		}).Debug("saving instance")
	}
	return fileblocks.Encode(w, f, in.cfg.blockSize())
}

// load an Instance from encoded blocks of |r|. The database is restored at
// the path recorded in its metadata, and its worker is started.
func load(srv *host.Server, cfg *Config, r *host.RDBReader) (*Instance, error) {
	var tmpPath = cfg.tempPath()
	defer tempFs.Remove(tmpPath)

	f, err := tempFs.Create(tmpPath)
	if err != nil {
		return nil, sqlerr.NewIO(err, "failed to create temporary database file")
	}
	n, err := fileblocks.Decode(r, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = sqlerr.NewIO(closeErr, "failed to close temporary database file")
	}
	if err != nil {
		return nil, err
	}

	src, err := engine.Open(tmpPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if !metadata.IsDatabase(src) {
		return nil, sqlerr.New(sqlerr.IO, "Not a database",
			"The loaded file is not a database of this system, as it lacks a metadata table")
	}
	path, err := metadata.Path(src)
	if err != nil {
		return nil, err
	}

	in, err := open(srv, path, cfg)
	if err != nil {
		return nil, err
	}
	in.conn.Lock()
	err = engine.Backup(in.conn, src, engine.BackupPagesPerStep, engine.NoDeadline)
	in.conn.Unlock()

	if err != nil {
		_ = in.conn.Close()
		return nil, err
	}
	log.WithFields(log.Fields{"path": path, "size": humanize.Bytes(uint64(n))}).
		Info("loaded instance")

	in.start()
	return in, nil
}
