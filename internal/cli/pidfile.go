package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

func getPIDFilePath(dataDir string) string {
	return filepath.Join(dataDir, "followgpt.pid")
}

func readPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

func isRunning(pidFile string) bool {
	pid, err := readPID(pidFile)
	if err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so check liveness with signal 0
	return process.Signal(syscall.Signal(0)) == nil
}
