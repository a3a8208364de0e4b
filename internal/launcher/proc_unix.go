//go:build unix

package launcher

import "syscall"

// New process group: a Ctrl+C aimed at the host does not reach the child.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
