//go:build !unix

package capture

func isPermissionErrno(_ error) bool {
	return false
}
