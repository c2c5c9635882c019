package process

import "fmt"

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessInfo contains basic information about a process
type ProcessInfo struct {
	PID     ProcessID // Process ID
	PPID    ProcessID // Parent Process ID
	Name    string    // Executable base name, e.g. HITMAN3.exe
	Exe     string    // Path to the executable, when it could be resolved
	Cmdline []string  // Command line arguments
	User    string    // User running the process
	Threads int       // Number of threads
	Memory  uint64    // Resident Set Size (memory usage in bytes)
}

func (pi ProcessInfo) String() string {
	return fmt.Sprintf("%s(%d)", pi.Name, pi.PID)
}
