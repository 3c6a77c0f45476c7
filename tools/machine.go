package tools

import (
	"fmt"

	"github.com/shirou/gopsutil/host"
)

// hostID is a function variable for testing injection.
var hostID = host.HostID

// MachineID returns a stable identifier for the local machine. Callers that
// want machine-bound archive keys feed the result into key derivation
// explicitly; nothing in this module consults it on its own.
func MachineID() (string, error) {
	id, err := hostID()
	if err != nil {
		return "", fmt.Errorf("reading host id: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("empty host id")
	}
	return id, nil
}
