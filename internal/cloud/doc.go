// Package cloud is the client for the Haven cloud API used during
// provisioning.
//
// Exactly two calls matter to the engine: fetching a device's API key by
// MAC, and registering the device under a location. Both authenticate with
// a caller-supplied bearer token; token acquisition is out of scope.
//
// HTTP transport is abstracted behind the Doer interface so tests can
// substitute canned responses. Errors are classified by status code into
// the package sentinels; callers branch with errors.Is/errors.As.
//
// Every request and response is logged with the bearer token redacted to a
// short visible prefix.
package cloud
