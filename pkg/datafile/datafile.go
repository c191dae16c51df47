// Package datafile names and discovers the append-only log files that back
// an Ignite data directory. Every data file is named "data_<N>.db", where N
// is a decimal integer >= 1, unique, and strictly increasing in the order
// files were created. Discovery walks the directory directly instead of
// globbing so that co-located files (a lock file, a config file) are
// silently ignored rather than matched.
package datafile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

const (
	prefix    = "data_"
	extension = ".db"
)

var namePattern = regexp.MustCompile(`^data_([0-9]+)\.db$`)

// Name returns the filename for the given data file id.
func Name(id uint32) string {
	return fmt.Sprintf("%s%d%s", prefix, id, extension)
}

// Path joins dir with the filename for the given data file id.
func Path(dir string, id uint32) string {
	return filepath.Join(dir, Name(id))
}

// ParseID extracts the numeric id from a data file's base name. ok is false
// if the name does not match the "data_<N>.db" pattern.
func ParseID(name string) (id uint32, ok bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	parsed, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(parsed), true
}

// List returns the ids of every data file in dir, sorted ascending. Files
// that don't match the naming pattern (a lock file, a config file, a
// directory) are silently ignored.
func List(dir string) ([]uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var ids []uint32
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := ParseID(entry.Name()); ok {
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Max returns the largest id in ids, or 0 if ids is empty.
func Max(ids []uint32) uint32 {
	var max uint32
	for _, id := range ids {
		if id > max {
			max = id
		}
	}
	return max
}
