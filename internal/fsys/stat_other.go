//go:build !unix

package fsys

import (
	"os"
	"path/filepath"
)

// stat falls back to synthetic identities keyed by the cleaned absolute path.
func (o *OS) stat(path string) (bool, FileID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			o.ids.Forget(abs)
		}
		return false, "", err
	}
	return info.IsDir(), o.ids.Lookup(abs), nil
}
