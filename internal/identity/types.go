package identity

import "strings"

// UnknownFirmware is the sentinel shown when a device does not report
// a firmware version.
const UnknownFirmware = "—"

// Family is the controller hardware family, inferred from the advertised
// name or the WHO_AM_I model field.
type Family string

// Known controller families.
const (
	FamilyUnknown Family = "Unknown"
	FamilyMini    Family = "Mini"
	FamilySeries  Family = "Series"
	FamilyPoE     Family = "PoE"
)

// Controller type ids used by the cloud credentials endpoint.
//
// Unmatched names default to the Mini code: the Mini is the highest-volume
// controller and the cloud treats the id as a routing hint, not a contract.
const (
	TypeIDMini   = 1
	TypeIDSeries = 2
	TypeIDPoE    = 3
)

// TypeID returns the numeric controller type code for the family.
func (f Family) TypeID() int {
	switch f {
	case FamilySeries:
		return TypeIDSeries
	case FamilyPoE:
		return TypeIDPoE
	default:
		return TypeIDMini
	}
}

// InferFamily matches known family tokens in a device or model name.
//
// Matching is case-insensitive and tolerant of "-", " ", or no separator
// (e.g. "Haven-Mini-01F2", "HVN POE 3", "havenseries").
// Unmatched names return FamilyUnknown; callers decide how loudly to warn.
func InferFamily(name string) Family {
	folded := strings.ToLower(name)
	folded = strings.ReplaceAll(folded, "-", "")
	folded = strings.ReplaceAll(folded, " ", "")

	switch {
	case strings.Contains(folded, "mini"):
		return FamilyMini
	case strings.Contains(folded, "series"):
		return FamilySeries
	case strings.Contains(folded, "poe"):
		return FamilyPoE
	default:
		return FamilyUnknown
	}
}

// Identity is the device identity derived once per provisioning attempt
// from the WHO_AM_I reply. Immutable after ParseWhoAmI returns it.
type Identity struct {
	// MAC is the normalized hardware address: uppercase hex, no separators.
	MAC string

	// Family is the controller family inferred from the model field.
	Family Family

	// Firmware is the reported firmware version, or UnknownFirmware.
	Firmware string

	// Model is the raw model/type string from the reply, if any.
	Model string
}

// MACSuffix returns the last four characters of the MAC for display in
// identity events, or the full MAC when it is shorter than four.
func (id Identity) MACSuffix() string {
	if len(id.MAC) <= 4 {
		return id.MAC
	}
	return id.MAC[len(id.MAC)-4:]
}
