package sandbox

import "strings"

// Trap and guest-error message markers. Matching these is fragile — it
// couples the host to the underlying engine's diagnostic text — but it
// is the only signal available short of the engine exposing structured
// trap codes, and it mirrors the reference implementation's own
// substring checks on wasmtime's trap messages.
const (
	fuelExhaustedMarker    = "all fuel consumed by WebAssembly"
	engineOOMTrapMarker    = "rust_oom"
	allocatorRefusalMarker = "memory allocation failed because the memory allocator returned a error"
)

// classifyTrap maps a trap's message to OutOfFuel / OutOfMemory. The
// second return value is false when the trap is neither — a signal that
// the caller must treat this as a host-side fatal error (CORE-4.4: "any
// other trap... indicates a host bug or corrupted module, not a guest
// fault").
func classifyTrap(message string) (Kind, bool) {
	switch {
	case strings.Contains(message, fuelExhaustedMarker):
		return KindOutOfFuel, true
	case strings.Contains(message, engineOOMTrapMarker):
		return KindOutOfMemory, true
	default:
		return KindRuntimeError, false
	}
}

// isAllocatorRefusal reports whether a guest-produced Err(message)
// signals an allocator refusal, which is reclassified as OutOfMemory
// rather than a plain RuntimeError.
func isAllocatorRefusal(message string) bool {
	return strings.Contains(message, allocatorRefusalMarker)
}
