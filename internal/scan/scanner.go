package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// File describes a recently created file
type File struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ListRecent returns files in dir ending in ext that were created at most
// window before now, ordered by file name.
func ListRecent(dir, ext string, window time.Duration, now time.Time) ([]File, error) {
	return ListRecentIn([]string{dir}, ext, window, now, creationTime)
}

// ListRecentIn scans several directories with a custom creation-time source.
// Missing directories are skipped. Results are ordered by file name.
func ListRecentIn(dirs []string, ext string, window time.Duration, now time.Time,
	createdAt func(os.FileInfo) time.Time) ([]File, error) {

	if createdAt == nil {
		createdAt = creationTime
	}

	var files []File
	seen := make(map[string]bool)
	for _, dir := range dirs {
		if seen[dir] {
			continue
		}
		seen[dir] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				// removed between ReadDir and Info
				continue
			}
			created := createdAt(info)
			if now.Sub(created) > window {
				continue
			}
			files = append(files, File{
				Path:      filepath.Join(dir, entry.Name()),
				Name:      entry.Name(),
				Size:      info.Size(),
				CreatedAt: created,
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Name == files[j].Name {
			return files[i].Path < files[j].Path
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// DayDirs returns the UTC day directories under root that can hold files
// created within window before now: today's and, around midnight, yesterday's.
func DayDirs(root string, now time.Time, window time.Duration) []string {
	today := now.UTC().Format("2006-01-02")
	earliest := now.Add(-window).UTC().Format("2006-01-02")

	dirs := []string{}
	if earliest != today {
		dirs = append(dirs, filepath.Join(root, earliest))
	}
	return append(dirs, filepath.Join(root, today))
}
