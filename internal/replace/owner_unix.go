//go:build unix

package replace

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// copyOwner gives path the uid and gid of ref. Unprivileged runs can only
// keep their own ids, so callers treat an error as informational.
func copyOwner(path string, ref os.FileInfo) error {
	st, ok := ref.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	if int(st.Uid) == os.Geteuid() && int(st.Gid) == os.Getegid() {
		return nil
	}
	return unix.Lchown(path, int(st.Uid), int(st.Gid))
}
