//go:build !unix

package runner

import "os/exec"

func configureProcAttr(*exec.Cmd) {}

func signalTerm(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func signalKill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
