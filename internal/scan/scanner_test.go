package scan

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func modTime(info os.FileInfo) time.Time { return info.ModTime() }

func writeFile(t *testing.T, dir, name string, size int, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListRecentInWindow(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)

	writeFile(t, dir, "stream_2024-05-01T06:59:30.mp3", 10, now.Add(-30*time.Second))
	writeFile(t, dir, "stream_2024-05-01T06:58:00.mp3", 10, now.Add(-2*time.Minute))
	writeFile(t, dir, "stream_2024-05-01T06:59:00.mp3", 0, now.Add(-time.Minute))
	writeFile(t, dir, "notes.txt", 10, now)

	files, err := ListRecentIn([]string{dir}, ".mp3", time.Minute, now, modTime)
	if err != nil {
		t.Fatalf("ListRecentIn failed: %v", err)
	}

	want := []string{"stream_2024-05-01T06:59:00.mp3", "stream_2024-05-01T06:59:30.mp3"}
	if len(files) != len(want) {
		t.Fatalf("Expected %d files, got %d: %+v", len(want), len(files), files)
	}
	for i, name := range want {
		if files[i].Name != name {
			t.Errorf("files[%d] = %s, want %s", i, files[i].Name, name)
		}
		if files[i].Path != filepath.Join(dir, name) {
			t.Errorf("files[%d].Path = %s", i, files[i].Path)
		}
	}
	if files[0].Size != 0 {
		t.Errorf("Expected empty file to be listed with size 0, got %d", files[0].Size)
	}
}

func TestListRecentMissingDir(t *testing.T) {
	files, err := ListRecent(filepath.Join(t.TempDir(), "absent"), ".mp3", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("Expected no error for missing dir, got %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Expected no files, got %d", len(files))
	}
}

func TestListRecentCreationTime(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stream_a.mp3", 5, time.Time{})
	created := time.Now()

	files, err := ListRecent(dir, ".mp3", time.Minute, created.Add(10*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("Expected fresh file, got %d files", len(files))
	}

	files, err = ListRecent(dir, ".mp3", time.Minute, created.Add(5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("Expected stale file to be excluded, got %d files", len(files))
	}
}

func TestListRecentInMultipleDirs(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2024, 5, 2, 0, 0, 20, 0, time.UTC)
	dirs := DayDirs(root, now, time.Minute)
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	writeFile(t, dirs[0], "stream_2024-05-01T23:59:50.mp3", 1, now.Add(-30*time.Second))
	writeFile(t, dirs[1], "stream_2024-05-02T00:00:10.mp3", 1, now.Add(-10*time.Second))

	files, err := ListRecentIn(dirs, ".mp3", time.Minute, now, modTime)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files across midnight, got %d", len(files))
	}
	if files[0].Name != "stream_2024-05-01T23:59:50.mp3" {
		t.Errorf("Expected yesterday's file first, got %s", files[0].Name)
	}
}

func TestDayDirs(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want []string
	}{
		{
			name: "midday",
			now:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			want: []string{"/data/2024-05-01"},
		},
		{
			name: "just after midnight",
			now:  time.Date(2024, 5, 1, 0, 0, 30, 0, time.UTC),
			want: []string{"/data/2024-04-30", "/data/2024-05-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DayDirs("/data", tt.now, time.Minute)
			if len(got) != len(tt.want) {
				t.Fatalf("DayDirs() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("DayDirs()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}
