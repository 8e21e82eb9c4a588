// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts helper processes in their own process group so
// cancelling the context reaps the whole tree, including grandchildren that
// would otherwise keep stdout open.
package procgroup

import (
	"os/exec"
	"time"
)

// Bind puts cmd in a new process group and makes context cancellation kill
// that group. After waitDelay, Wait stops waiting on the output pipes.
// cmd must come from exec.CommandContext; Start rejects a Cancel hook on a
// command without a context. Call before Start.
func Bind(cmd *exec.Cmd, waitDelay time.Duration) {
	set(cmd)
	cmd.Cancel = func() error { return Kill(cmd) }
	cmd.WaitDelay = waitDelay
}
