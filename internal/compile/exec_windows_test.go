//go:build windows

package compile

func chmodExec(string) error {
	return nil
}
