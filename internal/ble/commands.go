package ble

import (
	"encoding/json"
	"fmt"
	"time"
)

// Settle delays applied after a command write before the reply read.
// This is a timing contract with the controller firmware, not an
// optimization: reading earlier returns the previous characteristic value.
const (
	// defaultSettle covers simple SET-style commands.
	defaultSettle = 100 * time.Millisecond

	// identitySettle covers WHO_AM_I, which gathers state before replying.
	identitySettle = 500 * time.Millisecond
)

// Command is one verb of the Haven console mini-language. Values are built
// only through the constructors below, which prevents malformed wire strings.
type Command struct {
	namespace string
	verb      string
	args      map[string]string

	// sensitive marks args whose values must be masked in logs.
	sensitive bool

	// settle overrides defaultSettle when non-zero.
	settle time.Duration
}

// WhoAmI requests device identification: MAC, firmware, and model.
// Its reply is the only one the engine parses.
func WhoAmI() Command {
	return Command{namespace: "CONSOLE", verb: "WHO_AM_I", settle: identitySettle}
}

// SetAPIKey hands the device its per-device cloud API key.
func SetAPIKey(key string) Command {
	return Command{namespace: "SYSTEM", verb: "SET", args: map[string]string{"API_KEY": key}, sensitive: true}
}

// SetSSID sets the WiFi network name.
func SetSSID(ssid string) Command {
	return Command{namespace: "WIFI", verb: "SET", args: map[string]string{"SSID1": ssid}}
}

// SetPassword sets the WiFi passphrase.
func SetPassword(pass string) Command {
	return Command{namespace: "WIFI", verb: "SET", args: map[string]string{"PASS1": pass}, sensitive: true}
}

// SetAnnounceURL sets the server endpoint the device announces itself to.
func SetAnnounceURL(url string) Command {
	return Command{namespace: "SYSTEM", verb: "SET", args: map[string]string{"DEVICE_ANNOUNCE_URL": url}}
}

// ServerConnect tells the device to join WiFi and contact its server.
func ServerConnect() Command {
	return Command{namespace: "SYSTEM", verb: "SERVER_CONNECT"}
}

// AdvertStop tells the device to stop BLE advertising. Sent last; the
// device may already have dropped the link, so failures are expected.
func AdvertStop() Command {
	return Command{namespace: "BLE", verb: "ADVERT_STOP"}
}

// Wire renders the command in device wire format: <NAMESPACE.VERB(JSON)>.
// No length prefix or framing beyond the characteristic write boundary.
func (c Command) Wire() string {
	return c.render(false)
}

// Redacted renders the command for logging, masking sensitive arg values.
func (c Command) Redacted() string {
	return c.render(c.sensitive)
}

// Name returns "NAMESPACE.VERB" for log fields.
func (c Command) Name() string {
	return c.namespace + "." + c.verb
}

// Settle returns the post-write delay required before reading the reply.
func (c Command) Settle() time.Duration {
	if c.settle > 0 {
		return c.settle
	}
	return defaultSettle
}

func (c Command) render(mask bool) string {
	if len(c.args) == 0 {
		return fmt.Sprintf("<%s.%s()>", c.namespace, c.verb)
	}

	args := c.args
	if mask {
		args = make(map[string]string, len(c.args))
		for k := range c.args {
			args[k] = "***"
		}
	}

	// Commands carry a single key; map iteration order is not a concern.
	// json.Marshal of map[string]string cannot fail.
	payload, _ := json.Marshal(args)
	return fmt.Sprintf("<%s.%s(%s)>", c.namespace, c.verb, payload)
}
