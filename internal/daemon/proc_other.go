//go:build !unix

package daemon

import (
	"errors"
	"os"
	"syscall"
)

func detachAttr() *syscall.SysProcAttr { return nil }

func alive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}

func terminate(pid int) error { return kill(pid) }

func kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
