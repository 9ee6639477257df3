//go:build !unix

package modem

func checkAccess(path string) error {
	return nil
}
