package supervisor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"spear/process"
)

// fakeJobs simulates job objects: closing a kill-on-close job marks its members dead
type fakeJobs struct {
	mu sync.Mutex

	failCreate bool
	failKill   bool
	failSpawn  map[string]bool
	failAssign map[process.ProcessID]bool
	failOpen   bool

	next    Handle
	nextPID process.ProcessID
	kill    map[Handle]bool
	procs   map[Handle]process.ProcessID
	members map[Handle][]process.ProcessID
	alive   map[process.ProcessID]bool
	open    map[Handle]bool
	spawned []SpawnSpec
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		next:       100,
		nextPID:    1000,
		failSpawn:  make(map[string]bool),
		failAssign: make(map[process.ProcessID]bool),
		kill:       make(map[Handle]bool),
		procs:      make(map[Handle]process.ProcessID),
		members:    make(map[Handle][]process.ProcessID),
		alive:      make(map[process.ProcessID]bool),
		open:       make(map[Handle]bool),
	}
}

func (f *fakeJobs) handle() Handle {
	f.next++
	f.open[f.next] = true
	return f.next
}

func (f *fakeJobs) CreateJob() (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return 0, errors.New("access denied")
	}
	return f.handle(), nil
}

func (f *fakeJobs) SetKillOnClose(job Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKill {
		return errors.New("invalid parameter")
	}
	f.kill[job] = true
	return nil
}

func (f *fakeJobs) Spawn(spec SpawnSpec) (Handle, process.ProcessID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSpawn[spec.Path] {
		return 0, 0, errors.New("file not found")
	}
	f.nextPID++
	h := f.handle()
	f.procs[h] = f.nextPID
	f.alive[f.nextPID] = true
	f.spawned = append(f.spawned, spec)
	return h, f.nextPID, nil
}

func (f *fakeJobs) Open(pid process.ProcessID) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOpen {
		return 0, errors.New("access denied")
	}
	h := f.handle()
	f.procs[h] = pid
	f.alive[pid] = true
	return h, nil
}

func (f *fakeJobs) Assign(job, proc Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pid := f.procs[proc]
	if f.failAssign[pid] {
		return errors.New("access denied")
	}
	f.members[job] = append(f.members[job], pid)
	return nil
}

func (f *fakeJobs) CloseHandle(h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open[h] {
		return errors.New("invalid handle")
	}
	delete(f.open, h)
	if f.kill[h] {
		for _, pid := range f.members[h] {
			f.alive[pid] = false
		}
	}
	return nil
}

func (f *fakeJobs) isAlive(pid process.ProcessID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeJobs) openHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.open)
}

type fakeFinder struct {
	found process.ProcessInfo
	wait  chan struct{}
}

func (f *fakeFinder) FindProcessByPID(pid process.ProcessID) (*process.ProcessInfo, error) {
	return nil, process.ErrProcessNotFound
}

func (f *fakeFinder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	return nil, process.ErrProcessNotFound
}

func (f *fakeFinder) FindAllProcesses() ([]process.ProcessInfo, error) {
	return nil, nil
}

func (f *fakeFinder) WaitForProcess(name string, interval time.Duration) process.ProcessInfo {
	if f.wait != nil {
		<-f.wait
	}
	return f.found
}

func TestKillOnCloseEndsMembers(t *testing.T) {
	jobs := newFakeJobs()
	s := New(jobs, &fakeFinder{})

	g, err := s.CreateGroup()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ConfigureKillOnClose(g); err != nil || !g.KillOnClose() {
		t.Fatalf("ConfigureKillOnClose() = %v", err)
	}

	a, err := s.SpawnAndTrack(g, "a", SpawnSpec{Path: "a.exe", Hidden: true})
	if err != nil || !a.Managed {
		t.Fatalf("SpawnAndTrack(a) = %v, %v", a, err)
	}
	b, err := s.SpawnAndTrack(g, "b", SpawnSpec{Path: "b.exe"})
	if err != nil || !b.Managed {
		t.Fatalf("SpawnAndTrack(b) = %v, %v", b, err)
	}

	// process handles are closed right after assignment
	if jobs.openHandles() != 1 {
		t.Fatalf("open handles = %d, want only the job", jobs.openHandles())
	}

	if err := g.Close(); err != nil {
		t.Fatal(err)
	}
	if jobs.isAlive(a.PID) || jobs.isAlive(b.PID) {
		t.Fatal("members survived closing the group")
	}
	if err := g.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}
}

func TestCreateGroupFailure(t *testing.T) {
	jobs := newFakeJobs()
	jobs.failCreate = true
	s := New(jobs, &fakeFinder{})

	g, err := s.CreateGroup()
	if g != nil || !errors.Is(err, process.ErrProcessControl) {
		t.Fatalf("CreateGroup() = %v, %v", g, err)
	}

	p, err := s.SpawnAndTrack(nil, "service", SpawnSpec{Path: "node.exe"})
	if err != nil || p.Managed {
		t.Fatalf("unsupervised spawn = %v, %v", p, err)
	}
	if jobs.openHandles() != 0 {
		t.Fatal("process handle leaked")
	}
}

func TestAssignFailureLeavesProcessUnmanaged(t *testing.T) {
	jobs := newFakeJobs()
	s := New(jobs, &fakeFinder{})
	g, _ := s.CreateGroup()
	s.ConfigureKillOnClose(g)

	jobs.failAssign[1001] = true
	first, err := s.SpawnAndTrack(g, "first", SpawnSpec{Path: "first.exe"})
	if err != nil || first.Managed {
		t.Fatalf("first = %v, %v", first, err)
	}
	second, err := s.SpawnAndTrack(g, "second", SpawnSpec{Path: "second.exe"})
	if err != nil || !second.Managed {
		t.Fatalf("second = %v, %v", second, err)
	}

	g.Close()
	if !jobs.isAlive(first.PID) {
		t.Fatal("unmanaged process should escape the group")
	}
	if jobs.isAlive(second.PID) {
		t.Fatal("managed process survived")
	}

	members := g.Members()
	if len(members) != 2 || members[0].Managed || !members[1].Managed {
		t.Fatalf("members = %v", members)
	}
}

func TestSpawnFailure(t *testing.T) {
	jobs := newFakeJobs()
	jobs.failSpawn["missing.exe"] = true
	s := New(jobs, &fakeFinder{})
	g, _ := s.CreateGroup()

	if _, err := s.SpawnAndTrack(g, "missing", SpawnSpec{Path: "missing.exe"}); !errors.Is(err, process.ErrProcessControl) {
		t.Fatalf("SpawnAndTrack() error = %v", err)
	}
	if len(g.Members()) != 0 {
		t.Fatal("failed spawn tracked")
	}
}

func TestTrackExistingByName(t *testing.T) {
	jobs := newFakeJobs()
	s := New(jobs, &fakeFinder{found: process.ProcessInfo{PID: 4242, Name: "HITMAN3.exe"}})
	g, _ := s.CreateGroup()
	s.ConfigureKillOnClose(g)

	p := s.TrackExistingByName(g, RoleGame, "HITMAN3.exe", 0)
	if p.PID != 4242 || !p.Managed {
		t.Fatalf("TrackExistingByName() = %v", p)
	}

	s.Close()
	if jobs.isAlive(4242) {
		t.Fatal("tracked game survived Close")
	}
}

func TestTrackExistingOpenFailure(t *testing.T) {
	jobs := newFakeJobs()
	jobs.failOpen = true
	s := New(jobs, &fakeFinder{found: process.ProcessInfo{PID: 7, Name: "HITMAN3.exe"}})
	g, _ := s.CreateGroup()

	if p := s.TrackExistingByName(g, RoleGame, "HITMAN3.exe", time.Millisecond); p.Managed || p.PID != 7 {
		t.Fatalf("TrackExistingByName() = %v", p)
	}
}

func TestWatchdog(t *testing.T) {
	jobs := newFakeJobs()
	finder := &fakeFinder{found: process.ProcessInfo{PID: 9000, Name: "HITMAN3.exe"}, wait: make(chan struct{})}
	s := New(jobs, finder)

	w := StartWatchdog(s, WatchdogConfig{
		Service:  SpawnSpec{Path: `peacock\nodedist\node.exe`, Args: []string{"chunk0.js"}, Dir: "peacock", Hidden: true},
		Patcher:  SpawnSpec{Path: `peacock\PeacockPatcher.exe`, Hidden: true},
		GameName: "HITMAN3.exe",
	})

	if w.Group == nil || !w.Group.KillOnClose() {
		t.Fatal("watchdog group not configured")
	}
	if len(w.Spawned) != 2 || w.Spawned[0].Role != RoleService || w.Spawned[1].Role != RolePatcher {
		t.Fatalf("spawned = %v", w.Spawned)
	}
	if jobs.spawned[0].Args[0] != "chunk0.js" || jobs.spawned[0].Dir != "peacock" {
		t.Fatalf("service spec = %+v", jobs.spawned[0])
	}

	select {
	case <-w.Game:
		t.Fatal("game reported before it exists")
	default:
	}

	close(finder.wait)
	select {
	case game := <-w.Game:
		if game.PID != 9000 || !game.Managed {
			t.Fatalf("game = %v", game)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("game never tracked")
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	for _, pid := range []process.ProcessID{w.Spawned[0].PID, w.Spawned[1].PID, 9000} {
		if jobs.isAlive(pid) {
			t.Fatalf("pid %d survived watchdog close", pid)
		}
	}
}

func TestWatchdogWithoutJob(t *testing.T) {
	jobs := newFakeJobs()
	jobs.failCreate = true
	s := New(jobs, &fakeFinder{found: process.ProcessInfo{PID: 1}})

	w := StartWatchdog(s, WatchdogConfig{
		Service:  SpawnSpec{Path: "node.exe"},
		Patcher:  SpawnSpec{Path: "PeacockPatcher.exe"},
		GameName: "HITMAN3.exe",
	})
	if w.Group != nil || len(w.Spawned) != 2 || w.Spawned[0].Managed {
		t.Fatalf("watchdog = %+v", w)
	}
	<-w.Game
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}
