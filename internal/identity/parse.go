package identity

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Accepted key aliases per field, probed in priority order. The first key
// present in the reply wins. "Firmware Version" (embedded space) is emitted
// by 1.x Mini builds and must stay in the list.
var (
	macKeys      = []string{"DeviceID", "deviceId", "MAC", "mac", "device_id", "macAddress"}
	firmwareKeys = []string{"FirmwareVersion", "firmwareVersion", "Firmware Version", "FW", "fw_version", "version"}
	modelKeys    = []string{"Model", "model", "Type", "type", "ModelName", "model_name"}
)

// macPattern matches a MAC address: six groups of two hex digits, with
// optional colon or dash separators. Used as the fallback when a reply
// carries no JSON object.
var macPattern = regexp.MustCompile(`(?i)[0-9a-f]{2}(?:[:-]?[0-9a-f]{2}){5}`)

// ParseWhoAmI extracts a device Identity from a raw WHO_AM_I reply.
//
// Strategy:
//  1. Locate the first "{" and last "}" in the text. If a non-empty span
//     exists, normalize loose JSON (single quotes, separator whitespace) and
//     parse it as a key/value map, probing the alias lists per field.
//  2. If no span exists, or the span does not parse, fall back to matching
//     a MAC-shaped substring across the raw text. First match wins.
//
// The returned MAC is normalized: separators stripped, uppercased.
//
// Parameters:
//   - raw: Decoded reply text (may contain noise around the JSON object)
//
// Returns:
//   - Identity: Parsed identity with normalized MAC
//   - error: *ParseError when no MAC can be recovered
func ParseWhoAmI(raw string) (Identity, error) {
	if span, ok := jsonSpan(raw); ok {
		fields, err := parseLooseJSON(span)
		if err == nil {
			return identityFromFields(fields, raw)
		}
		// Span exists but is not JSON even after normalization. Old
		// firmware prints braces in banner art, so fall through to the
		// pattern match rather than failing here.
	}

	if mac := macPattern.FindString(raw); mac != "" {
		return Identity{
			MAC:      NormalizeMAC(mac),
			Family:   FamilyUnknown,
			Firmware: UnknownFirmware,
		}, nil
	}

	return Identity{}, &ParseError{Reason: "no JSON object or MAC pattern in reply", Raw: raw}
}

// jsonSpan returns the substring between the first "{" and the last "}",
// inclusive, when both exist and the span is non-empty.
func jsonSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// parseLooseJSON normalizes tolerated deviations (single quotes, stray
// whitespace around separators) and unmarshals the result into a map.
func parseLooseJSON(span string) (map[string]any, error) {
	normalized := strings.ReplaceAll(span, "'", `"`)

	var fields map[string]any
	if err := json.Unmarshal([]byte(normalized), &fields); err != nil {
		return nil, fmt.Errorf("parsing reply JSON: %w", err)
	}
	return fields, nil
}

// identityFromFields probes the alias lists against a parsed reply map.
// A found JSON object without a MAC is a hard failure.
func identityFromFields(fields map[string]any, raw string) (Identity, error) {
	mac, ok := probeString(fields, macKeys)
	if !ok || strings.TrimSpace(mac) == "" {
		return Identity{}, &ParseError{Reason: "reply JSON has no device id key", Raw: raw}
	}

	id := Identity{
		MAC:      NormalizeMAC(mac),
		Family:   FamilyUnknown,
		Firmware: UnknownFirmware,
	}

	if fw, ok := probeString(fields, firmwareKeys); ok && strings.TrimSpace(fw) != "" {
		id.Firmware = strings.TrimSpace(fw)
	}

	if model, ok := probeString(fields, modelKeys); ok && strings.TrimSpace(model) != "" {
		id.Model = strings.TrimSpace(model)
		id.Family = InferFamily(id.Model)
	}

	return id, nil
}

// probeString tries each key alias in order and returns the first value
// present, rendered as a string. Numeric values are stringified; firmware
// fields on some builds are bare numbers.
func probeString(fields map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		v, ok := fields[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			return val, true
		case float64, bool, json.Number:
			return fmt.Sprint(val), true
		default:
			// Nested objects/arrays are not valid field values; keep probing.
		}
	}
	return "", false
}

// NormalizeMAC strips common separators and uppercases a MAC address.
// All downstream use (cloud calls, ledger, events) requires this form.
func NormalizeMAC(mac string) string {
	replacer := strings.NewReplacer(":", "", "-", "", ".", "", " ", "")
	return strings.ToUpper(replacer.Replace(strings.TrimSpace(mac)))
}
