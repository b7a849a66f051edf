package ble

import (
	"strings"
	"testing"
	"time"
)

func TestCommandWireFormat(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"who_am_i", WhoAmI(), `<CONSOLE.WHO_AM_I()>`},
		{"server_connect", ServerConnect(), `<SYSTEM.SERVER_CONNECT()>`},
		{"advert_stop", AdvertStop(), `<BLE.ADVERT_STOP()>`},
		{"set_ssid", SetSSID("ShopFloor"), `<WIFI.SET({"SSID1":"ShopFloor"})>`},
		{"set_password", SetPassword("hunter22"), `<WIFI.SET({"PASS1":"hunter22"})>`},
		{"set_api_key", SetAPIKey("abc-123"), `<SYSTEM.SET({"API_KEY":"abc-123"})>`},
		{"set_announce", SetAnnounceURL("https://api.test/announce"), `<SYSTEM.SET({"DEVICE_ANNOUNCE_URL":"https://api.test/announce"})>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Wire(); got != tt.want {
				t.Errorf("Wire() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandWireEscapesJSON(t *testing.T) {
	got := SetSSID(`Caf"e`).Wire()
	if !strings.Contains(got, `\"`) {
		t.Errorf("Wire() = %q, want JSON-escaped quote", got)
	}
}

func TestCommandRedaction(t *testing.T) {
	if got := SetPassword("secret").Redacted(); strings.Contains(got, "secret") {
		t.Errorf("Redacted() = %q leaked the password", got)
	}
	if got := SetAPIKey("key-1").Redacted(); strings.Contains(got, "key-1") {
		t.Errorf("Redacted() = %q leaked the api key", got)
	}
	// Non-sensitive commands are rendered verbatim.
	if got := SetSSID("ShopFloor").Redacted(); !strings.Contains(got, "ShopFloor") {
		t.Errorf("Redacted() = %q, want SSID visible", got)
	}
}

func TestCommandSettle(t *testing.T) {
	if got := WhoAmI().Settle(); got != 500*time.Millisecond {
		t.Errorf("WhoAmI settle = %v, want 500ms", got)
	}
	if got := SetSSID("x").Settle(); got != 100*time.Millisecond {
		t.Errorf("SetSSID settle = %v, want 100ms", got)
	}
}

func TestCommandName(t *testing.T) {
	if got := WhoAmI().Name(); got != "CONSOLE.WHO_AM_I" {
		t.Errorf("Name() = %q, want CONSOLE.WHO_AM_I", got)
	}
}
