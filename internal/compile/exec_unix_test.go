//go:build !windows

package compile

import "os"

func chmodExec(path string) error {
	return os.Chmod(path, 0o755)
}
