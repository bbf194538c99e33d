package runtime

import "unsafe"

// PtrSize64 reports whether the running binary uses 8-byte pointers.
// Generated layout tables carry both a size_32 and a size_64 member;
// this picks which one applies without needing a build tag per
// architecture.
const PtrSize64 = unsafe.Sizeof(uintptr(0)) == 8
