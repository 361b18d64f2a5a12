//go:build !unix

package encoder

import "os/exec"

func configureProcessGroup(*exec.Cmd) {}
