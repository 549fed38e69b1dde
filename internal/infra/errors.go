package infra

import (
	"fmt"
	"sort"
	"strings"

	"chassis/internal/config"
)

// NotCompiledError reports a runtime flag enabling a capability this binary
// was built without. Silently dropping the capability would be worse than
// refusing to start, so this aborts startup.
type NotCompiledError struct {
	Capability config.Capability
}

func (e *NotCompiledError) Error() string {
	return fmt.Sprintf("FEATURE_%s is enabled but this binary was built without the %s client",
		strings.ToUpper(string(e.Capability)), e.Capability)
}

// StartupPolicyError escalates per-capability init failures under the
// strict startup policy. Under the lenient default the same failures are
// recorded on the Registry instead.
type StartupPolicyError struct {
	Failures map[config.Capability]error
}

func (e *StartupPolicyError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for capability := range e.Failures {
		names = append(names, string(capability))
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Failures[config.Capability(name)]))
	}
	return fmt.Sprintf("strict startup policy: %d capability(ies) failed to initialize: %s",
		len(parts), strings.Join(parts, "; "))
}
