package toolexecutor

import (
	"fmt"
	"strings"
)

// Capability is a permission tag a tool declares and a policy may grant or withhold.
type Capability string

const (
	CapFilesRead      Capability = "files.read"
	CapFilesWrite     Capability = "files.write"
	CapFilesDelete    Capability = "files.delete"
	CapProcessExec    Capability = "process.exec"
	CapHotkeysManage  Capability = "hotkeys.manage"
	CapServicesManage Capability = "services.manage"
	CapTagsManage     Capability = "tags.manage"
	CapMacrosManage   Capability = "macros.manage"
	CapArchiveManage  Capability = "archive.manage"
	CapSearchRead     Capability = "search.read"
)

// AllCapabilities returns every valid capability
func AllCapabilities() []Capability {
	return []Capability{
		CapFilesRead,
		CapFilesWrite,
		CapFilesDelete,
		CapProcessExec,
		CapHotkeysManage,
		CapServicesManage,
		CapTagsManage,
		CapMacrosManage,
		CapArchiveManage,
		CapSearchRead,
	}
}

// IsValidCapability checks if a capability name belongs to the closed set
func IsValidCapability(name string) bool {
	for _, valid := range AllCapabilities() {
		if Capability(name) == valid {
			return true
		}
	}
	return false
}

// ParseCapabilities converts names into capabilities, failing on the first unknown name.
// Surrounding whitespace is ignored and duplicates are dropped.
func ParseCapabilities(names []string) ([]Capability, error) {
	seen := make(map[Capability]bool, len(names))
	out := make([]Capability, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if !IsValidCapability(name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCapability, name)
		}
		c := Capability(name)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

// MissingCapabilities returns the members of required that are not in allowed,
// preserving the order of required.
func MissingCapabilities(required, allowed []Capability) []Capability {
	allowedSet := make(map[Capability]bool, len(allowed))
	for _, c := range allowed {
		allowedSet[c] = true
	}

	var missing []Capability
	for _, c := range required {
		if !allowedSet[c] {
			missing = append(missing, c)
		}
	}
	return missing
}
