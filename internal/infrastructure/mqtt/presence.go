package mqtt

import (
	"encoding/json"
	"time"
)

// Presence is the retained record on the daemon status topic. Exactly one
// of three forms exists per gateway at any time: online, offline with
// reason graceful_shutdown (published by Close), or offline with reason
// unexpected_disconnect (the broker's Will after a crash).
type Presence struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func onlinePresence(clientID string) []byte {
	return marshalPresence(Presence{
		Status:   "online",
		ClientID: clientID,
	})
}

func stoppedPresence(clientID string) []byte {
	return marshalPresence(Presence{
		Status:   "offline",
		ClientID: clientID,
		Reason:   "graceful_shutdown",
	})
}

// crashedPresence is registered as the connection's Last Will; the broker
// publishes it when the daemon vanishes without a graceful Close.
func crashedPresence(clientID string) []byte {
	return marshalPresence(Presence{
		Status:   "offline",
		ClientID: clientID,
		Reason:   "unexpected_disconnect",
	})
}

func marshalPresence(p Presence) []byte {
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	out, err := json.Marshal(p)
	if err != nil {
		// Presence has no unmarshalable fields; this cannot happen.
		return []byte(`{"status":"unknown"}`)
	}
	return out
}
