//go:build windows

package stt

import (
	"os/exec"
	"syscall"
)

// createNoWindow keeps whisper-cli from flashing a console window.
const createNoWindow = 0x08000000

func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true, CreationFlags: createNoWindow}
}
