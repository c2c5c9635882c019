package process_find

import (
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	ps "github.com/mitchellh/go-ps"

	"spear/process"
)

type fakeProcess struct {
	pid  int
	ppid int
	exe  string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return p.ppid }
func (p fakeProcess) Executable() string { return p.exe }

func staticLister(procs ...ps.Process) Lister {
	return func() ([]ps.Process, error) {
		return procs, nil
	}
}

func TestFindProcessByNameIgnoresCase(t *testing.T) {
	f := New(WithDetails(false), WithLister(staticLister(
		fakeProcess{pid: 10, ppid: 1, exe: "Launcher.exe"},
		fakeProcess{pid: 20, ppid: 10, exe: "HITMAN3.exe"},
	)))

	found, err := f.FindProcessByName("hitman3.exe")
	if err != nil {
		t.Fatalf("FindProcessByName() error = %v", err)
	}
	if len(found) != 1 || found[0].PID != 20 || found[0].PPID != 10 || found[0].Name != "HITMAN3.exe" {
		t.Fatalf("found = %+v", found)
	}
}

func TestFindProcessByNameMissing(t *testing.T) {
	f := New(WithDetails(false), WithLister(staticLister(fakeProcess{pid: 10, exe: "Launcher.exe"})))
	if _, err := f.FindProcessByName("node.exe"); !errors.Is(err, process.ErrProcessNotFound) {
		t.Fatalf("FindProcessByName() error = %v, want ErrProcessNotFound", err)
	}
}

func TestFindProcessByNameListError(t *testing.T) {
	f := New(WithLister(func() ([]ps.Process, error) { return nil, errors.New("snapshot failed") }))
	if _, err := f.FindProcessByName("node.exe"); err == nil || errors.Is(err, process.ErrProcessNotFound) {
		t.Fatalf("FindProcessByName() error = %v", err)
	}
}

func TestWaitForProcessPolls(t *testing.T) {
	var polls atomic.Int32
	f := New(WithDetails(false), WithLister(func() ([]ps.Process, error) {
		if polls.Add(1) < 4 {
			return nil, nil
		}
		return []ps.Process{fakeProcess{pid: 42, exe: "HITMAN3.exe"}}, nil
	}))

	got := f.WaitForProcess("HITMAN3.exe", time.Millisecond)
	if got.PID != 42 {
		t.Fatalf("WaitForProcess() = %+v", got)
	}
	if polls.Load() != 4 {
		t.Fatalf("polls = %d, want 4", polls.Load())
	}
}

func TestWaitForProcessZeroInterval(t *testing.T) {
	var polls atomic.Int32
	f := New(WithDetails(false), WithLister(func() ([]ps.Process, error) {
		if polls.Add(1) < 2 {
			return nil, nil
		}
		return []ps.Process{fakeProcess{pid: 7, exe: "node.exe"}}, nil
	}))

	start := time.Now()
	if got := f.WaitForProcess("node.exe", 0); got.PID != 7 {
		t.Fatalf("WaitForProcess() = %+v", got)
	}
	if elapsed := time.Since(start); elapsed < DefaultPollInterval/2 {
		t.Fatalf("returned after %s, a zero interval must not spin", elapsed)
	}
}

func TestFindAllProcesses(t *testing.T) {
	f := New(WithLister(staticLister(fakeProcess{pid: 1, exe: "a"}, fakeProcess{pid: 2, exe: "b"})))
	all, err := f.FindAllProcesses()
	if err != nil || len(all) != 2 {
		t.Fatalf("FindAllProcesses() = %v, %v", all, err)
	}
}

func TestFindOwnProcess(t *testing.T) {
	self := process.ProcessID(os.Getpid())

	pi, err := New().FindProcessByPID(self)
	if err != nil {
		t.Fatalf("FindProcessByPID() error = %v", err)
	}
	if pi.PID != self || pi.Name == "" {
		t.Fatalf("FindProcessByPID() = %+v", pi)
	}
	if !Exists(self) {
		t.Fatal("own pid not present")
	}
}
