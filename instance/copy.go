package instance

import (
	"time"

	log "github.com/sirupsen/logrus"
	"go.gazette.dev/sqlkv/engine"
	"go.gazette.dev/sqlkv/metadata"
	"go.gazette.dev/sqlkv/sqlerr"
)

// copyTo replaces the database of |dst| with a backup of this Instance.
// It's called from the worker of this Instance. The locks of both databases
// are held for the duration of the backup, and are acquired in order of
// Instance creation so that concurrent copies between the same pair of
// Instances, in either direction, can't deadlock.
//
// On success, the statements of |dst| are restored from its copied metadata,
// and its path metadata is rewritten to its own path. On failure, the cached
// statements and metadata of |dst| are not changed.
func (in *Instance) copyTo(dst *Instance, deadline time.Time) error {
	if dst == in {
		return sqlerr.New(sqlerr.Engine, "Same source and destination",
			"A database can't be copied onto itself")
	}
	var first, second = in, dst
	if second.seq < first.seq {
		first, second = second, first
	}
	first.conn.Lock()
	defer first.conn.Unlock()
	second.conn.Lock()
	defer second.conn.Unlock()

	if dst.closed {
		return errDestinationClosed
	} else if in.closed {
		return errClosed
	}

	// Read before the backup, which overwrites it with the source's path.
	var dstPath, err = metadata.Path(dst.conn)
	if err != nil {
		return err
	}
	if err = engine.Backup(dst.conn, in.conn, engine.BackupPagesPerStep, deadline); err != nil {
		return err
	}

	dst.cache.Clear()
	n, err := dst.cache.Restore()
	if err != nil {
		log.WithFields(log.Fields{"path": dstPath, "err": err}).
			Warn("failed to restore statements of copied database")
	}
	if err = metadata.UpdatePath(dst.conn, dstPath); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"source":      in.conn.Path(),
		"destination": dstPath,
		"statements":  n,
	}).Info("copied database")
	return nil
}

var errDestinationClosed = sqlerr.New(sqlerr.Engine, "Error in opening the DESTINATION database",
	"The destination database is no longer available")
