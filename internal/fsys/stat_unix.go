//go:build unix

package fsys

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// stat identifies a file by device and inode number.
func (o *OS) stat(path string) (bool, FileID, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, "", err
	}
	id := FileID(fmt.Sprintf("%d:%d", uint64(st.Dev), uint64(st.Ino)))
	return st.Mode&unix.S_IFMT == unix.S_IFDIR, id, nil
}
