// Package identity derives device identity from Haven controller replies.
//
// A controller answers CONSOLE.WHO_AM_I with free-form text that usually
// embeds a JSON object, but firmware builds differ: some emit loose JSON
// (single quotes, stray whitespace), very old builds emit no JSON at all and
// only mention their MAC somewhere in the text. ParseWhoAmI tolerates all of
// these and produces a normalized Identity.
//
// Field extraction is alias-driven: each field probes an explicit, ordered
// list of accepted key names (see macKeys, firmwareKeys, modelKeys) and uses
// the first one present. The lists are part of the device compatibility
// surface; extend them rather than renaming entries.
//
// A reply that yields no MAC is a hard failure surfaced as *ParseError
// carrying the raw text for diagnostics. It is never silently defaulted.
package identity
