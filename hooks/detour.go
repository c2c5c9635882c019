package hooks

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// absJumpLen is the size of jmp [rip+0] followed by its 8-byte target
const absJumpLen = 14

var errUnrelocatable = errors.New("prologue cannot be relocated")

// absJump encodes an indirect jump through the 8 bytes that follow it
func absJump(target uintptr) []byte {
	b := make([]byte, absJumpLen)
	b[0], b[1] = 0xFF, 0x25
	binary.LittleEndian.PutUint64(b[6:], uint64(target))
	return b
}

// jumpStubSlot reports whether code at addr starts with jmp [rip+disp] and returns the
// address of the pointer it jumps through. Forwarding exports are often just this.
func jumpStubSlot(code []byte, addr uintptr) (uintptr, bool) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil || inst.Op != x86asm.JMP {
		return 0, false
	}
	mem, ok := inst.Args[0].(x86asm.Mem)
	if !ok || mem.Base != x86asm.RIP || mem.Index != 0 {
		return 0, false
	}
	return uintptr(int64(addr) + int64(inst.Len) + mem.Disp), true
}

// reloc is a rel32 field inside the prologue. The field is always the last four bytes
// of its instruction, so the displacement is relative to at+4.
type reloc struct {
	at     int
	target uintptr
}

// prologue is the whole instructions displaced by the detour jump
type prologue struct {
	addr   uintptr
	code   []byte
	relocs []reloc
}

// stealPrologue decodes instructions at addr until at least absJumpLen bytes are covered
func stealPrologue(code []byte, addr uintptr) (prologue, error) {
	p := prologue{addr: addr}

	off := 0
	for off < absJumpLen {
		if off >= len(code) {
			return prologue{}, fmt.Errorf("%w: ran out of code at +%d", errUnrelocatable, off)
		}
		if code[off] == 0xC3 || code[off] == 0xCC {
			return prologue{}, fmt.Errorf("%w: function ends at +%d", errUnrelocatable, off)
		}

		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			return prologue{}, fmt.Errorf("%w: decode at +%d: %v", errUnrelocatable, off, err)
		}
		end := addr + uintptr(off+inst.Len)

		hasImm := false
		for _, a := range inst.Args {
			if _, ok := a.(x86asm.Imm); ok {
				hasImm = true
			}
		}

		for _, a := range inst.Args {
			switch a := a.(type) {
			case x86asm.Mem:
				if a.Base != x86asm.RIP {
					continue
				}
				if hasImm {
					return prologue{}, fmt.Errorf("%w: %s at +%d", errUnrelocatable, inst, off)
				}
				p.relocs = append(p.relocs, reloc{at: off + inst.Len - 4, target: uintptr(int64(end) + a.Disp)})
			case x86asm.Rel:
				if !isRel32(code[off:off+inst.Len]) {
					return prologue{}, fmt.Errorf("%w: short branch %s at +%d", errUnrelocatable, inst, off)
				}
				p.relocs = append(p.relocs, reloc{at: off + inst.Len - 4, target: uintptr(int64(end) + int64(a))})
			}
		}

		off += inst.Len
	}

	p.code = append([]byte(nil), code[:off]...)
	return p, nil
}

// isRel32 matches call rel32, jmp rel32 and jcc rel32 with no prefixes
func isRel32(inst []byte) bool {
	switch {
	case len(inst) == 5 && (inst[0] == 0xE8 || inst[0] == 0xE9):
		return true
	case len(inst) == 6 && inst[0] == 0x0F && inst[1]&0xF0 == 0x80:
		return true
	}
	return false
}

// trampoline returns the displaced instructions rebased to run at at, followed by a jump
// back to the rest of the original function
func (p prologue) trampoline(at uintptr) ([]byte, error) {
	b := append([]byte(nil), p.code...)
	for _, r := range p.relocs {
		disp := int64(r.target) - int64(at+uintptr(r.at+4))
		if disp != int64(int32(disp)) {
			return nil, fmt.Errorf("%w: target 0x%X out of rel32 range from 0x%X", errUnrelocatable, r.target, at)
		}
		binary.LittleEndian.PutUint32(b[r.at:], uint32(int32(disp)))
	}
	return append(b, absJump(p.addr+uintptr(len(p.code)))...), nil
}

// patch is the jump to detour, padded with int3 to the displaced length
func (p prologue) patch(detour uintptr) []byte {
	b := absJump(detour)
	for len(b) < len(p.code) {
		b = append(b, 0xCC)
	}
	return b
}
