package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// LinkHostCapabilities instantiates the WASI preview1 host module against
// rt. wazero's wasi_snapshot_preview1 package links the whole syscall
// surface, but the *effective* capability a guest instance gets is gated
// by its own wazero.ModuleConfig: no preopened directory besides the
// guestfs.Dir scratch directory mounted per SandboxContext, and no socket extension
// configured. Beyond its stdio pipes and that scratch directory (a real
// host directory the guest can read and write), the guest reaches clock
// and entropy (clock_time_get, random_get); it reaches neither the
// network nor any host path outside the scratch directory.
func LinkHostCapabilities(ctx context.Context, rt wazero.Runtime) error {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return fmt.Errorf("engine: link WASI host capabilities: %w", err)
	}
	return nil
}
