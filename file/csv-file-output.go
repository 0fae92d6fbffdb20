package file

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"

	"github.com/relloyd/scdpipe/logger"
)

// CSVFileOutput writes one CSV file, optionally gzip compressed, with a header row.
type CSVFileOutput struct {
	log          logger.Logger
	name         string
	headerRecord []string
	file         *os.File
	gzWriter     *gzip.Writer
	fWriter      *bufio.Writer
	csvWriter    *csv.Writer
	useGzip      bool
	rowCount     int
	headerDone   bool
}

var gzipExtension = regexp.MustCompile(`^(.*?)(\.*)(?i)(gzip|gz){0,}$`) // strip leading '.' and any trailing "gz|gzip"

// NewCSVFileOutput creates <directory>/<fileNamePrefix>.<extension>, creating directory as needed.
// Setting useGzip makes the extension end with '.gz'.
func NewCSVFileOutput(log logger.Logger, directory string, fileNamePrefix string, extension string, useGzip bool) (*CSVFileOutput, error) {
	if useGzip {
		extension = gzipExtension.ReplaceAllString(extension, "$1.gz")
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, errors.Wrapf(err, "unable to create directory %q", directory)
	}
	f := &CSVFileOutput{
		log:     log,
		name:    filepath.Join(directory, fmt.Sprintf("%v.%v", fileNamePrefix, extension)),
		useGzip: useGzip,
	}
	var err error
	f.file, err = os.Create(f.name)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create OS file with name %q", f.name)
	}
	if useGzip {
		f.gzWriter = gzip.NewWriter(f.file)
		f.fWriter = bufio.NewWriter(f.gzWriter)
		f.csvWriter = csv.NewWriter(f.fWriter)
	} else {
		f.csvWriter = csv.NewWriter(f.file)
	}
	log.Debug("created CSV file ", f.name, "; useGzip=", useGzip)
	return f, nil
}

// Name returns the path of the file.
func (f *CSVFileOutput) Name() string {
	return f.name
}

// RowCount returns the number of records written, excluding the header.
func (f *CSVFileOutput) RowCount() int {
	return f.rowCount
}

// SetHeader stores the header written before the first record.
func (f *CSVFileOutput) SetHeader(record []string) {
	f.headerRecord = record
}

// WriteToCSV writes record to the file, preceded by the header on the first call.
func (f *CSVFileOutput) WriteToCSV(record []string) error {
	if !f.headerDone && f.headerRecord != nil {
		if err := f.csvWriter.Write(f.headerRecord); err != nil {
			return errors.Wrap(err, "unable to write header to CSV file")
		}
	}
	f.headerDone = true
	f.log.Trace("writing CSV record ", record)
	if err := f.csvWriter.Write(record); err != nil {
		return errors.Wrap(err, "unable to write to CSV file")
	}
	f.rowCount++
	return nil
}

// Close flushes all writers and closes the OS file.
// A file with a header and no records still gets its header.
func (f *CSVFileOutput) Close() error {
	if !f.headerDone && f.headerRecord != nil {
		if err := f.csvWriter.Write(f.headerRecord); err != nil {
			return errors.Wrap(err, "unable to write header to CSV file")
		}
		f.headerDone = true
	}
	f.csvWriter.Flush()
	if err := f.csvWriter.Error(); err != nil {
		return errors.Wrap(err, "unable to flush CSV file")
	}
	if f.useGzip {
		if err := f.fWriter.Flush(); err != nil {
			return err
		}
		if err := f.gzWriter.Close(); err != nil {
			return err
		}
	}
	if err := f.file.Close(); err != nil {
		return errors.Wrapf(err, "unable to close OS file %q", f.name)
	}
	f.log.Debug("closed CSV file ", f.name, " with ", f.rowCount, " rows")
	return nil
}
