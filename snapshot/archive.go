package snapshot

import (
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/relloyd/scdpipe/aws/s3"
	"github.com/relloyd/scdpipe/file"
	h "github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/logger"
)

// Archiver writes each extracted entity to <Directory>/<run-date>/<entity>.csv and
// uploads the file when an Uploader is set.
type Archiver struct {
	Log       logger.Logger
	Directory string `errorTxt:"archive directory" mandatory:"yes"`
	Gzip      bool
	Uploader  s3.Uploader // optional
}

// Archive writes records under header for entity and run date.
func (a *Archiver) Archive(runDate time.Time, entity string, header []string, records [][]string) error {
	dir := filepath.Join(a.Directory, h.FormatDate(runDate))
	f, err := file.NewCSVFileOutput(a.Log, dir, entity, "csv", a.Gzip)
	if err != nil {
		return err
	}
	f.SetHeader(header)
	for _, rec := range records {
		if err := f.WriteToCSV(rec); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.Log.Info("archived ", f.RowCount(), " rows of ", entity, " to ", f.Name())
	if a.Uploader == nil {
		return nil
	}
	fh, err := os.Open(f.Name())
	if err != nil {
		return err
	}
	defer fh.Close()
	key := path.Join(h.FormatDate(runDate), filepath.Base(f.Name()))
	if err := a.Uploader.BufferPut(key, fh); err != nil {
		return errors.Wrapf(err, "unable to upload %v", key)
	}
	a.Log.Info("uploaded archive ", key)
	return nil
}
