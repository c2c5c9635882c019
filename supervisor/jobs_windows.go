//go:build windows

package supervisor

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"spear/process"
)

// WindowsJobs implements JobAPI with job objects
type WindowsJobs struct{}

func NewWindowsJobs() *WindowsJobs {
	return &WindowsJobs{}
}

func (WindowsJobs) CreateJob() (Handle, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return 0, fmt.Errorf("CreateJobObject: %w", err)
	}
	return Handle(job), nil
}

func (WindowsJobs) SetKillOnClose(job Handle) error {
	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}

	_, err := windows.SetInformationJobObject(
		windows.Handle(job),
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	)
	if err != nil {
		return fmt.Errorf("SetInformationJobObject: %w", err)
	}
	return nil
}

func (WindowsJobs) Spawn(spec SpawnSpec) (Handle, process.ProcessID, error) {
	cmdline, err := windows.UTF16PtrFromString(windows.ComposeCommandLine(append([]string{spec.Path}, spec.Args...)))
	if err != nil {
		return 0, 0, err
	}

	var dir *uint16
	if spec.Dir != "" {
		if dir, err = windows.UTF16PtrFromString(spec.Dir); err != nil {
			return 0, 0, err
		}
	}

	si := windows.StartupInfo{
		Flags:     windows.STARTF_USESTDHANDLES,
		StdInput:  windows.InvalidHandle,
		StdOutput: windows.InvalidHandle,
		StdErr:    windows.InvalidHandle,
	}
	si.Cb = uint32(unsafe.Sizeof(si))

	var flags uint32
	if spec.Hidden {
		si.Flags |= windows.STARTF_USESHOWWINDOW
		si.ShowWindow = windows.SW_HIDE
		flags |= windows.CREATE_NO_WINDOW
	}

	var pi windows.ProcessInformation
	if err := windows.CreateProcess(nil, cmdline, nil, nil, false, flags, nil, dir, &si, &pi); err != nil {
		return 0, 0, fmt.Errorf("CreateProcess %s: %w", spec.Path, err)
	}
	windows.CloseHandle(pi.Thread)

	return Handle(pi.Process), process.ProcessID(pi.ProcessId), nil
}

func (WindowsJobs) Open(pid process.ProcessID) (Handle, error) {
	h, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return 0, fmt.Errorf("OpenProcess %d: %w", pid, err)
	}
	return Handle(h), nil
}

func (WindowsJobs) Assign(job, proc Handle) error {
	if err := windows.AssignProcessToJobObject(windows.Handle(job), windows.Handle(proc)); err != nil {
		return fmt.Errorf("AssignProcessToJobObject: %w", err)
	}
	return nil
}

func (WindowsJobs) CloseHandle(h Handle) error {
	return windows.CloseHandle(windows.Handle(h))
}
