package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/havenlighting/provision-core/internal/identity"
)

// LocationMode selects how the registration location id is resolved.
type LocationMode string

// Supported location modes. The named presets map controller family to a
// fixed location id; custom uses a caller-supplied id unchanged.
const (
	LocationProduction LocationMode = "production"
	LocationTestbed    LocationMode = "testbed"
	LocationCustom     LocationMode = "custom"
)

// presetLocations maps (mode, family) to a cloud location id. Devices whose
// family cannot be inferred register under the mode's Mini location,
// consistent with the controller type default.
var presetLocations = map[LocationMode]map[identity.Family]int{
	LocationProduction: {
		identity.FamilyMini:   1001,
		identity.FamilySeries: 1002,
		identity.FamilyPoE:    1003,
	},
	LocationTestbed: {
		identity.FamilyMini:   9001,
		identity.FamilySeries: 9002,
		identity.FamilyPoE:    9003,
	},
}

// ResolveLocationID resolves the numeric location id a device must be
// registered under.
//
// For preset modes the id comes from the (mode, family) table. For custom
// mode the caller-supplied id is parsed as an integer; a blank or
// non-numeric id is a configuration error, surfaced as ErrConfig before any
// cloud call is made.
//
// Parameters:
//   - mode: Resolution mode (production, testbed, custom)
//   - customID: Caller-supplied id, used only in custom mode
//   - family: Controller family inferred for the device
//
// Returns:
//   - int: Resolved location id
//   - error: ErrConfig-wrapped description when resolution is impossible
func ResolveLocationID(mode LocationMode, customID string, family identity.Family) (int, error) {
	switch mode {
	case LocationCustom:
		trimmed := strings.TrimSpace(customID)
		if trimmed == "" {
			return 0, fmt.Errorf("%w: custom location id is blank", ErrConfig)
		}
		id, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, fmt.Errorf("%w: custom location id %q is not numeric", ErrConfig, customID)
		}
		return id, nil

	case LocationProduction, LocationTestbed:
		table := presetLocations[mode]
		if family == identity.FamilyUnknown {
			family = identity.FamilyMini
		}
		id, ok := table[family]
		if !ok {
			return 0, fmt.Errorf("%w: no %s location for family %s", ErrConfig, mode, family)
		}
		return id, nil

	default:
		return 0, fmt.Errorf("%w: unknown location mode %q", ErrConfig, mode)
	}
}
