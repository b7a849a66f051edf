package filter

import "errors"

// ErrConfig is returned when a location target cannot be resolved from the
// given configuration. It is a setup problem, not a runtime fault: the
// provisioning loop treats it as fatal for the attempt and logs it loudly.
var ErrConfig = errors.New("filter: invalid location configuration")
