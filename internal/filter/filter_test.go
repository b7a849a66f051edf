package filter

import (
	"errors"
	"sync"
	"testing"

	"github.com/havenlighting/provision-core/internal/identity"
)

func TestIsTargetDevice(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Haven-Mini-01F2", true},
		{"haven series", true},
		{"HVN-PoE-3", true},
		{"hvnmini", true},
		{"HAVEN", true},
		{"Shaven-Head-Salon", false}, // prefix, not substring
		{"LivingRoomTV", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsTargetDevice(tt.name); got != tt.want {
			t.Errorf("IsTargetDevice(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestInRSSIWindow(t *testing.T) {
	tests := []struct {
		name     string
		rssi     int
		min, max int
		want     bool
	}{
		{"inside", -50, -60, -40, true},
		{"at min", -60, -60, -40, true},
		{"at max", -40, -60, -40, true},
		{"too weak", -75, -60, -40, false},
		{"too strong", -30, -60, -40, false},
		{"one-sided bound", -45, -60, -1, true},
		{"zero is noise", 0, -60, -1, false},
		{"positive is noise", 12, -100, -1, false},
		{"positive noise even inside window", 5, -10, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InRSSIWindow(tt.rssi, tt.min, tt.max); got != tt.want {
				t.Errorf("InRSSIWindow(%d, %d, %d) = %v, want %v", tt.rssi, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

// captureLogger records warnings for assertion.
type captureLogger struct {
	mu       sync.Mutex
	warnings []string
}

func (c *captureLogger) Warn(msg string, _ ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, msg)
}

func TestControllerTypeID(t *testing.T) {
	log := &captureLogger{}

	if got := ControllerTypeID("Haven-Series-9", log); got != identity.TypeIDSeries {
		t.Errorf("ControllerTypeID(series) = %d, want %d", got, identity.TypeIDSeries)
	}
	if len(log.warnings) != 0 {
		t.Errorf("recognised family logged %d warnings, want 0", len(log.warnings))
	}

	if got := ControllerTypeID("Haven-X9", log); got != identity.TypeIDMini {
		t.Errorf("ControllerTypeID(unknown) = %d, want default %d", got, identity.TypeIDMini)
	}
	if len(log.warnings) != 1 {
		t.Errorf("unknown family logged %d warnings, want 1", len(log.warnings))
	}

	// A nil logger must not panic.
	_ = ControllerTypeID("Haven-X9", nil)
}

func TestResolveLocationID_Presets(t *testing.T) {
	tests := []struct {
		mode   LocationMode
		family identity.Family
		want   int
	}{
		{LocationProduction, identity.FamilyMini, 1001},
		{LocationProduction, identity.FamilySeries, 1002},
		{LocationProduction, identity.FamilyPoE, 1003},
		{LocationProduction, identity.FamilyUnknown, 1001},
		{LocationTestbed, identity.FamilyMini, 9001},
		{LocationTestbed, identity.FamilyPoE, 9003},
	}

	for _, tt := range tests {
		got, err := ResolveLocationID(tt.mode, "", tt.family)
		if err != nil {
			t.Errorf("ResolveLocationID(%s, %s) error = %v", tt.mode, tt.family, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveLocationID(%s, %s) = %d, want %d", tt.mode, tt.family, got, tt.want)
		}
	}
}

func TestResolveLocationID_Custom(t *testing.T) {
	got, err := ResolveLocationID(LocationCustom, "4242", identity.FamilyMini)
	if err != nil {
		t.Fatalf("ResolveLocationID(custom) error = %v", err)
	}
	if got != 4242 {
		t.Errorf("ResolveLocationID(custom) = %d, want 4242", got)
	}
}

func TestResolveLocationID_CustomErrors(t *testing.T) {
	for _, id := range []string{"", "   ", "lobby", "12a"} {
		_, err := ResolveLocationID(LocationCustom, id, identity.FamilyMini)
		if !errors.Is(err, ErrConfig) {
			t.Errorf("ResolveLocationID(custom, %q) error = %v, want ErrConfig", id, err)
		}
	}
}

func TestResolveLocationID_UnknownMode(t *testing.T) {
	if _, err := ResolveLocationID(LocationMode("sideways"), "", identity.FamilyMini); !errors.Is(err, ErrConfig) {
		t.Errorf("unknown mode error = %v, want ErrConfig", err)
	}
}
