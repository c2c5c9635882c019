//go:build windows

package main

import "C"
import (
	"sync"

	"spear/proxy"
)

// winmm is the real system winmm.dll behind the exports below
var winmm = sync.OnceValue(func() *proxy.Forwarder {
	return proxy.System(proxy.WinmmDLL)
})

func forward(name string, args ...uintptr) uintptr {
	return winmm().Call(proxy.Fallback(proxy.WinmmExports, name), name, args...)
}

//export timeBeginPeriod
func timeBeginPeriod(period uintptr) uintptr {
	return forward("timeBeginPeriod", period)
}

//export timeEndPeriod
func timeEndPeriod(period uintptr) uintptr {
	return forward("timeEndPeriod", period)
}

//export timeGetTime
func timeGetTime() uintptr {
	return forward("timeGetTime")
}

//export timeGetDevCaps
func timeGetDevCaps(caps, size uintptr) uintptr {
	return forward("timeGetDevCaps", caps, size)
}

//export timeGetSystemTime
func timeGetSystemTime(mmt, size uintptr) uintptr {
	return forward("timeGetSystemTime", mmt, size)
}

//export timeSetEvent
func timeSetEvent(delay, resolution, callback, user, flags uintptr) uintptr {
	return forward("timeSetEvent", delay, resolution, callback, user, flags)
}

//export timeKillEvent
func timeKillEvent(id uintptr) uintptr {
	return forward("timeKillEvent", id)
}

//export PlaySoundA
func PlaySoundA(sound, module, flags uintptr) uintptr {
	return forward("PlaySoundA", sound, module, flags)
}

//export PlaySoundW
func PlaySoundW(sound, module, flags uintptr) uintptr {
	return forward("PlaySoundW", sound, module, flags)
}

//export waveOutGetNumDevs
func waveOutGetNumDevs() uintptr {
	return forward("waveOutGetNumDevs")
}

//export waveOutGetDevCapsW
func waveOutGetDevCapsW(device, caps, size uintptr) uintptr {
	return forward("waveOutGetDevCapsW", device, caps, size)
}

//export waveOutSetVolume
func waveOutSetVolume(wave, volume uintptr) uintptr {
	return forward("waveOutSetVolume", wave, volume)
}

//export waveOutGetVolume
func waveOutGetVolume(wave, volume uintptr) uintptr {
	return forward("waveOutGetVolume", wave, volume)
}

//export midiOutGetNumDevs
func midiOutGetNumDevs() uintptr {
	return forward("midiOutGetNumDevs")
}

//export joyGetNumDevs
func joyGetNumDevs() uintptr {
	return forward("joyGetNumDevs")
}

//export joyGetDevCapsW
func joyGetDevCapsW(joy, caps, size uintptr) uintptr {
	return forward("joyGetDevCapsW", joy, caps, size)
}

//export joyGetPos
func joyGetPos(joy, info uintptr) uintptr {
	return forward("joyGetPos", joy, info)
}

//export joyGetPosEx
func joyGetPosEx(joy, info uintptr) uintptr {
	return forward("joyGetPosEx", joy, info)
}

//export mciSendStringW
func mciSendStringW(command, ret, size, callback uintptr) uintptr {
	return forward("mciSendStringW", command, ret, size, callback)
}

//export mciGetErrorStringW
func mciGetErrorStringW(code, text, size uintptr) uintptr {
	return forward("mciGetErrorStringW", code, text, size)
}

//export mmioOpenW
func mmioOpenW(name, info, flags uintptr) uintptr {
	return forward("mmioOpenW", name, info, flags)
}

//export mmioClose
func mmioClose(mmio, flags uintptr) uintptr {
	return forward("mmioClose", mmio, flags)
}

//export mmioRead
func mmioRead(mmio, buf, size uintptr) uintptr {
	return forward("mmioRead", mmio, buf, size)
}

//export mmioDescend
func mmioDescend(mmio, ck, parent, flags uintptr) uintptr {
	return forward("mmioDescend", mmio, ck, parent, flags)
}

//export mmioAscend
func mmioAscend(mmio, ck, flags uintptr) uintptr {
	return forward("mmioAscend", mmio, ck, flags)
}
