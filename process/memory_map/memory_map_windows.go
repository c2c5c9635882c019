//go:build windows

package memory_map

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const memCommit = 0x1000

// ReadMemoryMapHandle walks the committed regions reachable through an already open handle
func ReadMemoryMapHandle(handle windows.Handle) ([]MemoryMapItem, error) {
	var result []MemoryMapItem
	var addr uintptr

	for {
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQueryEx(handle, addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			break
		}
		if mbi.RegionSize == 0 {
			break
		}

		if mbi.State == memCommit {
			result = append(result, MemoryMapItem{
				Address: uint64(mbi.BaseAddress),
				Size:    uint(mbi.RegionSize),
				Perms:   PermsFromProtect(mbi.Protect),
				Protect: mbi.Protect,
			})
		}

		next := mbi.BaseAddress + mbi.RegionSize
		if next <= addr {
			break
		}
		addr = next
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("VirtualQueryEx returned no committed regions")
	}

	Sort(result)
	return result, nil
}

// QueryProtect returns the protection of the page holding addr
func QueryProtect(handle windows.Handle, addr uintptr) (uint32, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQueryEx(handle, addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		return 0, fmt.Errorf("VirtualQueryEx failed: %w", err)
	}
	return mbi.Protect, nil
}
