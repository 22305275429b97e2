package engine

import (
	"time"

	"go.gazette.dev/sqlkv/sqlerr"
)

// BackupPagesPerStep is the number of pages copied by each step of a Backup.
const BackupPagesPerStep = 1

// Backup copies the main database of |src| into |dst|, replacing its content.
// Pages are copied |pagesPerStep| at a time, and |deadline| (if non-zero) is
// checked between steps: a step already begun runs to completion. The caller
// must hold the locks of both Conns, and no Cursor of |dst| may be open.
func Backup(dst, src *Conn, pagesPerStep int, deadline time.Time) error {
	var bk, err = dst.raw.Backup("main", src.raw, "main")
	if err != nil {
		return engineError(err)
	}
	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			_ = bk.Finish()
			return sqlerr.NewTimeout()
		}
		if done, err := bk.Step(pagesPerStep); err != nil {
			_ = bk.Finish()
			return engineError(err)
		} else if done {
			break
		}
	}
	if err = bk.Finish(); err != nil {
		return engineError(err)
	}
	return nil
}

// BackupToFile copies the database of |src| into a new database file
// at |path|. The caller must hold the lock of |src|.
func BackupToFile(src *Conn, path string, deadline time.Time) error {
	var dst, err = Open(path)
	if err != nil {
		return err
	}
	if err = Backup(dst, src, BackupPagesPerStep, deadline); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
