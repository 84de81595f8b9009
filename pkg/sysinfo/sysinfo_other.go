//go:build !unix

package sysinfo

import (
	"os/exec"
	"runtime"
	"strings"
)

func stat(info *SysInfo) error {
	if runtime.GOOS != "windows" {
		return nil
	}

	info.Name = "Windows"
	if output, err := exec.Command("cmd", "/c", "ver").Output(); err == nil {
		info.Version = strings.TrimSpace(string(output))
	}
	return nil
}
