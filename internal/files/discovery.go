package files

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	apperrors "auditcli/internal/errors"
)

// FileInfo represents information about a discovered extract file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// FindExtracts finds all files matching the glob pattern, sorted by
// modification time (oldest first).
func FindExtracts(pattern string) ([]FileInfo, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, apperrors.NewStorageError("invalid extract glob pattern", err).
			WithContext("pattern", pattern)
	}

	var files []FileInfo
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, FileInfo{
			Path:    path,
			Name:    filepath.Base(path),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.Before(files[j].ModTime)
	})

	return files, nil
}

// FindLatestExtract returns the path of the newest file matching the
// glob pattern. Several dated extracts accumulate in the working
// directory over consecutive weeks; the audit always processes the most
// recent one.
func FindLatestExtract(pattern string) (string, error) {
	files, err := FindExtracts(pattern)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", apperrors.NewNotFoundError("extract file").
			WithContext("pattern", pattern)
	}
	return files[len(files)-1].Path, nil
}
