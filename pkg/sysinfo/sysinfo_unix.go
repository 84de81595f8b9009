//go:build unix

package sysinfo

import (
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

func stat(info *SysInfo) error {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		info.Name = unix.ByteSliceToString(uts.Sysname[:])
		info.Version = unix.ByteSliceToString(uts.Release[:])
		info.Machine = unix.ByteSliceToString(uts.Machine[:])
	}

	switch runtime.GOOS {
	case "linux":
		if release := linuxRelease(); release != "" {
			info.Release = release
		}
	case "darwin":
		if release := darwinRelease(); release != "" {
			info.Release = release
		}
	}
	return nil
}

func linuxRelease() string {
	f, err := os.Open("/etc/os-release")
	if err != nil {
		return ""
	}
	defer f.Close()

	return joinNonEmpty(parseOSRelease(f))
}

// darwinRelease parses the output of sw_vers.
func darwinRelease() string {
	output, err := exec.Command("sw_vers").Output()
	if err != nil {
		return ""
	}

	var name, version string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ProductName":
			name = strings.TrimSpace(value)
		case "ProductVersion":
			version = strings.TrimSpace(value)
		}
	}
	return joinNonEmpty(name, version)
}
