package runtime

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Execution is the captured result of one shell run. A non-zero ExitCode is
// a completed run, not an error.
type Execution struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

func (e Execution) Success() bool {
	return e.ExitCode == 0
}

// ExecutionError reports that the process could not be started at all.
type ExecutionError struct {
	Command string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Run executes command through the user's shell with the inherited
// environment, capturing output. The process is never cancelled once started.
func Run(command string) (Execution, error) {
	if err := validateCommand(command); err != nil {
		return Execution{}, &ExecutionError{Command: command, Err: err}
	}

	shell, args := shellCommandInvocation(command)
	cmd := exec.Command(shell, args...)
	cmd.Env = os.Environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Execution{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, &ExecutionError{Command: command, Err: err}
}

func shellCommandInvocation(command string) (string, []string) {
	if runtime.GOOS == "windows" {
		comspec := strings.TrimSpace(os.Getenv("COMSPEC"))
		if comspec == "" {
			comspec = "cmd"
		}
		return comspec, []string{"/C", command}
	}

	shell := strings.TrimSpace(os.Getenv("SHELL"))
	if shell != "" {
		if filepath.IsAbs(shell) {
			if _, err := os.Stat(shell); err == nil {
				return shell, []string{"-c", command}
			}
		} else if resolved, err := exec.LookPath(shell); err == nil {
			return resolved, []string{"-c", command}
		}
	}
	return "sh", []string{"-c", command}
}

// ShellPath reports the shell Run would use, for diagnostics.
func ShellPath() string {
	shell, _ := shellCommandInvocation("")
	return shell
}

func validateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if strings.ContainsRune(command, '\x00') {
		return fmt.Errorf("command contains invalid null byte")
	}
	return nil
}

// HighRisk flags command text that is destructive enough that a registry
// entry running it should be marked dangerous.
func HighRisk(command string) bool {
	low := strings.ToLower(strings.TrimSpace(command))
	highRiskPatterns := []string{
		"rm -rf",
		"mkfs",
		"dd if=",
		"shutdown",
		"poweroff",
		"reboot",
		"userdel",
		"chmod 777 /",
		"pacman -syu",
		"apt upgrade",
		"dnf upgrade",
	}
	for _, pattern := range highRiskPatterns {
		if strings.Contains(low, pattern) {
			return true
		}
	}
	return false
}
