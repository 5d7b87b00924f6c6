//go:build linux

package post

import (
	"time"

	"golang.org/x/sys/unix"
)

// birthTime asks statx for the creation time; filesystems that do not
// record it yield the zero time.
func birthTime(path string) time.Time {
	var stx unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, path, 0, unix.STATX_BTIME, &stx); err != nil {
		return time.Time{}
	}
	if stx.Mask&unix.STATX_BTIME == 0 {
		return time.Time{}
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
}
