package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Special values of FileOptions.Output.
const (
	OutputStderr = "-"
	OutputNone   = "none"
	OutputAuto   = "auto"

	logFilePrefix = "aksstack-"
	logFileSuffix = ".log"
)

// FileOptions selects where log output goes.
type FileOptions struct {
	Output        string // "-" (stderr), "none", "auto" or a path
	Dir           string // directory for "auto" and relative paths
	RetentionDays int    // auto-generated files older than this are removed; 0 keeps all
}

// LogFile is an opened log destination.
type LogFile struct {
	Path string // empty unless writing to a file

	file   *os.File
	writer io.Writer
}

// OpenLogFile opens the destination described by opts. An "auto" output gets a
// timestamped file in opts.Dir and prunes old ones.
func OpenLogFile(opts FileOptions) (*LogFile, error) {
	lf := &LogFile{}
	switch strings.ToLower(opts.Output) {
	case "", OutputStderr:
		lf.writer = os.Stderr
		return lf, nil
	case OutputNone:
		lf.writer = io.Discard
		return lf, nil
	case OutputAuto:
		if err := CleanupOldLogFiles(opts.Dir, opts.RetentionDays); err != nil {
			return nil, err
		}
		lf.Path = filepath.Join(opts.Dir, GenerateLogFilename(time.Now().UTC()))
	default:
		lf.Path = opts.Output
		if !filepath.IsAbs(lf.Path) && opts.Dir != "" {
			lf.Path = filepath.Join(opts.Dir, lf.Path)
		}
	}

	dir := filepath.Dir(lf.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory %q: %w", dir, err)
	}
	f, err := os.OpenFile(lf.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %q: %w", lf.Path, err)
	}
	lf.file = f
	lf.writer = f
	return lf, nil
}

// Writer returns the io.Writer for log output.
func (lf *LogFile) Writer() io.Writer { return lf.writer }

// Close closes the log file if one was opened.
func (lf *LogFile) Close() error {
	if lf.file != nil {
		return lf.file.Close()
	}
	return nil
}

// GenerateLogFilename returns aksstack-YYYYMMDD-HHMMSS-sss.log for t.
func GenerateLogFilename(t time.Time) string {
	return fmt.Sprintf("%s%s-%03d%s", logFilePrefix, t.Format("20060102-150405"), t.Nanosecond()/1_000_000, logFileSuffix)
}

// CleanupOldLogFiles removes generated log files older than retentionDays from dir.
func CleanupOldLogFiles(dir string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading log directory %q: %w", dir, err)
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}
