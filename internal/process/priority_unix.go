//go:build !windows

package process

import "golang.org/x/sys/unix"

// niceness used for each priority class
var niceness = map[Priority]int{
	PriorityNormal: 0,
	PriorityHigh:   -10,
}

// setPriority adjusts the nice value of pid. Raising priority usually needs
// CAP_SYS_NICE or root; the resulting EACCES/EPERM is returned to the caller.
func setPriority(pid int, p Priority) error {
	return unix.Setpriority(unix.PRIO_PROCESS, pid, niceness[p])
}
