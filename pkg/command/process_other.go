//go:build !unix

package command

import "os/exec"

// killProcessGroupOnCancel keeps the default Cancel, which kills the direct
// child only; WaitDelay still bounds the wait for leftover pipe holders.
func killProcessGroupOnCancel(*exec.Cmd) {}
