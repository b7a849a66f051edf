package filter

import (
	"strings"

	"github.com/havenlighting/provision-core/internal/identity"
)

// targetPrefixes are the advertised-name prefixes that identify a Haven
// controller in provisioning mode. Matching is case-folded.
var targetPrefixes = []string{"haven", "hvn"}

// IsTargetDevice reports whether an advertised name belongs to a Haven
// controller. Empty or absent names never match.
func IsTargetDevice(name string) bool {
	if name == "" {
		return false
	}
	folded := strings.ToLower(name)
	for _, prefix := range targetPrefixes {
		if strings.HasPrefix(folded, prefix) {
			return true
		}
	}
	return false
}

// InRSSIWindow reports whether a signal reading falls inside [min, max].
//
// Readings >= 0 dBm are physically impossible for BLE and always rejected
// as sensor noise, regardless of the window. Callers use a one-sided bound
// by passing max = -1.
func InRSSIWindow(rssi, min, max int) bool {
	if rssi >= 0 {
		return false
	}
	return rssi >= min && rssi <= max
}

// Logger is the minimal logging surface needed by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

// ControllerTypeID infers the numeric controller type code from an
// advertised name.
//
// Unmatched names return the documented default (the Mini code) and emit a
// warning through log; inference never fails an attempt.
func ControllerTypeID(name string, log Logger) int {
	family := identity.InferFamily(name)
	if family == identity.FamilyUnknown && log != nil {
		log.Warn("controller family not recognised, defaulting type id",
			"name", name,
			"type_id", identity.TypeIDMini,
		)
	}
	return family.TypeID()
}
