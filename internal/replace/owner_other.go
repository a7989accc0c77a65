//go:build !unix

package replace

import "os"

// copyOwner is a no-op where files have no unix owner.
func copyOwner(string, os.FileInfo) error {
	return nil
}
