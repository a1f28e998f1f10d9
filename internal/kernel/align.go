package kernel

import "unsafe"

// uintptrOf reports the address of v as a uintptr, used only to test 64-byte
// alignment when carving a buffer out of alignedSoA. This is the one place
// the kernel touches unsafe, and only for an address comparison — no pointer
// arithmetic crosses an allocation boundary.
func uintptrOf(v *SoA) uintptr {
	return uintptr(unsafe.Pointer(v))
}
