package proxy

// WinmmDLL is the system DLL this module is deployed as
const WinmmDLL = "winmm.dll"

// Failure codes returned when the real export is missing
const (
	mmsyserrError = 1  // MMSYSERR_ERROR
	timerrNoCando = 97 // TIMERR_NOCANDO
	mmioError     = ^uintptr(0)
)

// Export is one forwarded entry point and the value returned when it cannot be forwarded
type Export struct {
	Name     string
	Fallback uintptr
}

// WinmmExports are the winmm entry points this module carries
var WinmmExports = []Export{
	{"timeBeginPeriod", timerrNoCando},
	{"timeEndPeriod", timerrNoCando},
	{"timeGetTime", 0},
	{"timeGetDevCaps", timerrNoCando},
	{"timeGetSystemTime", timerrNoCando},
	{"timeSetEvent", 0},
	{"timeKillEvent", timerrNoCando},
	{"PlaySoundA", 0},
	{"PlaySoundW", 0},
	{"waveOutGetNumDevs", 0},
	{"waveOutGetDevCapsW", mmsyserrError},
	{"waveOutSetVolume", mmsyserrError},
	{"waveOutGetVolume", mmsyserrError},
	{"midiOutGetNumDevs", 0},
	{"joyGetNumDevs", 0},
	{"joyGetDevCapsW", mmsyserrError},
	{"joyGetPos", mmsyserrError},
	{"joyGetPosEx", mmsyserrError},
	{"mciSendStringW", mmsyserrError},
	{"mciGetErrorStringW", 0},
	{"mmioOpenW", 0},
	{"mmioClose", mmsyserrError},
	{"mmioRead", mmioError},
	{"mmioDescend", mmsyserrError},
	{"mmioAscend", mmsyserrError},
}

// ExportNames lists the names of exports
func ExportNames(exports []Export) []string {
	names := make([]string, len(exports))
	for i, e := range exports {
		names[i] = e.Name
	}
	return names
}

// Fallback returns the value a forwarded call to name returns when the real export is missing
func Fallback(exports []Export, name string) uintptr {
	for _, e := range exports {
		if e.Name == name {
			return e.Fallback
		}
	}
	return 0
}
