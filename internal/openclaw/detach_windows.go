//go:build windows

package openclaw

import (
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}
