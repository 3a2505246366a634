//go:build windows

package process

import "golang.org/x/sys/windows"

var priorityClass = map[Priority]uint32{
	PriorityNormal: windows.NORMAL_PRIORITY_CLASS,
	PriorityHigh:   windows.HIGH_PRIORITY_CLASS,
}

// setPriority sets the priority class of pid.
func setPriority(pid int, p Priority) error {
	h, err := windows.OpenProcess(windows.PROCESS_SET_INFORMATION, false, uint32(pid))
	if err != nil {
		return err
	}
	defer func() { _ = windows.CloseHandle(h) }()
	return windows.SetPriorityClass(h, priorityClass[p])
}
