package process

import "time"

// ProcessFinder defines operations for discovering processes in the OS process table
type ProcessFinder interface {
	// FindProcessByPID finds a process by its PID
	FindProcessByPID(pid ProcessID) (*ProcessInfo, error)

	// FindProcessByName finds processes by their executable name (case-insensitive exact match)
	FindProcessByName(name string) ([]ProcessInfo, error)

	// FindAllProcesses returns information about all running processes
	FindAllProcesses() ([]ProcessInfo, error)

	// WaitForProcess polls until a process with the given name exists.
	// There is no timeout: the target may be started at any later time.
	WaitForProcess(name string, interval time.Duration) ProcessInfo
}
