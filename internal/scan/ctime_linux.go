package scan

import (
	"os"
	"syscall"
	"time"
)

// creationTime uses the inode change time, which for chunk files that are
// only ever appended is set when the file is created and last written.
func creationTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec))
	}
	return info.ModTime()
}
