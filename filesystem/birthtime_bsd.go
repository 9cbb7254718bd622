//go:build darwin || freebsd

package filesystem

import (
	"time"

	"golang.org/x/sys/unix"
)

func birthTime(path string) time.Time {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}
	}
	return time.Unix(st.Btim.Unix())
}
