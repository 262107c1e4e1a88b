package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rohankatakam/kgvault/internal/errors"
)

var fileNamePattern = regexp.MustCompile(`^(.+)_backup_(\d{8}_\d{6})\.json$`)

var unsafeSourceChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeSource makes a source name safe for use in a file name
func SanitizeSource(source string) string {
	s := unsafeSourceChars.ReplaceAllString(strings.TrimSpace(source), "_")
	if s == "" {
		return "graph"
	}
	return s
}

// FileName returns <source>_backup_<YYYYMMDD_HHMMSS>.json
func FileName(source string, t time.Time) string {
	return fmt.Sprintf("%s_backup_%s.json", SanitizeSource(source), t.Format(TimestampLayout))
}

// ParseFileName extracts the source and embedded timestamp from a snapshot
// file name. ok is false for names that do not follow the convention.
func ParseFileName(name string) (source string, ts time.Time, ok bool) {
	m := fileNamePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", time.Time{}, false
	}
	ts, err := time.ParseInLocation(TimestampLayout, m[2], time.Local)
	if err != nil {
		return "", time.Time{}, false
	}
	return m[1], ts, true
}

// WriteFile writes the snapshot into dir under its conventional name and
// returns the path. The file is written to a temporary name and renamed, so
// readers never see a partial snapshot. An existing file with the same name
// is replaced.
func WriteFile(dir string, s *Snapshot) (string, error) {
	data, err := Marshal(s)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.FileSystemErrorf(err, "failed to create backup directory %s", dir)
	}

	name := fmt.Sprintf("%s_backup_%s.json", SanitizeSource(s.Metadata.Source), s.Metadata.Timestamp)
	if _, _, ok := ParseFileName(name); !ok {
		return "", errors.SerializationErrorf("invalid snapshot timestamp %q", s.Metadata.Timestamp)
	}
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", errors.FileSystemErrorf(err, "failed to create temporary file in %s", dir)
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", errors.FileSystemErrorf(err, "failed to write %s", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return "", errors.FileSystemErrorf(err, "failed to sync %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", errors.FileSystemErrorf(err, "failed to close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return "", errors.FileSystemErrorf(err, "failed to move snapshot into place at %s", path)
	}
	return path, nil
}

// ReadFile loads and validates a snapshot file
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to read snapshot %s", path)
	}
	s, err := Unmarshal(data)
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			return nil, e.WithContext("file", path)
		}
		return nil, err
	}
	return s, nil
}

// ReadMetadata decodes only the metadata section of a snapshot file.
// It does not verify the record counts; use ReadFile for that.
func ReadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, errors.FileSystemErrorf(err, "failed to read snapshot %s", path)
	}
	var doc struct {
		Metadata *Metadata `json:"metadata"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Metadata{}, errors.CorruptSnapshotError(err, fmt.Sprintf("snapshot %s is not valid JSON", path))
	}
	if doc.Metadata == nil {
		return Metadata{}, errors.CorruptSnapshotErrorf("snapshot %s has no metadata", path)
	}
	return *doc.Metadata, nil
}
