package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// GetPIDFilePath returns the path to the PID file
func GetPIDFilePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".archive-columnar", "converter.pid")
}

// GetStopFilePath returns the path to the stop file. Creating this file
// while a conversion is running triggers the same graceful abort as
// CTRL-C (useful for terminals that swallow the interrupt key).
func GetStopFilePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".archive-columnar", "stop")
}

// WritePIDFile writes the current process PID to a file
func WritePIDFile() error {
	pidPath := GetPIDFilePath()
	dir := filepath.Dir(pidPath)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	pid := os.Getpid()
	return os.WriteFile(pidPath, []byte(strconv.Itoa(pid)), 0o600)
}

// RemovePIDFile removes the PID file
func RemovePIDFile() error {
	return os.Remove(GetPIDFilePath())
}

// ReadPIDFile reads the PID from file
func ReadPIDFile() (int, error) {
	data, err := os.ReadFile(GetPIDFilePath())
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}

	return pid, nil
}

// IsProcessRunning checks if a process with given PID is running
// Works on both Unix and Windows systems
func IsProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix systems, signal 0 checks process existence without
	// delivering anything; Windows FindProcess always succeeds so the
	// signal probe is what actually decides
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// StopFileExists reports whether the stop file is present
func StopFileExists() bool {
	_, err := os.Stat(GetStopFilePath())
	return err == nil
}

// RemoveStopFile removes a leftover stop file so the next run does not
// abort immediately
func RemoveStopFile() error {
	err := os.Remove(GetStopFilePath())
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
