package codes

import (
	"fmt"
	"syscall"
)

// ExitCodes maps conventional shell exit codes to their descriptions
var ExitCodes = map[int]string{
	0:   "Success",
	1:   "General failure",
	2:   "Misuse of shell builtin",
	126: "Command found but not executable",
	127: "Command not found",
	128: "Invalid exit argument",
	130: "Terminated by Ctrl-C",
}

// signalBase is added to a signal number by POSIX shells for killed children
const signalBase = 128

// IsSuccess returns true if the exit code indicates a successful step
func IsSuccess(code int) bool {
	return code == 0
}

// GetErrorMessage returns the description for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ExitCodes[code]; ok {
		return msg
	}

	if code > signalBase && code < signalBase+65 {
		return fmt.Sprintf("Killed by signal %d (%s)", code-signalBase, syscall.Signal(code-signalBase))
	}

	if code < 0 {
		return "Killed by signal"
	}

	return "Unknown error"
}
