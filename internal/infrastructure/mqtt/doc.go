// Package mqtt provides MQTT client connectivity for the Haven
// provisioning daemon.
//
// This package manages:
//   - Connection to the site broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The broker is optional. When enabled, the daemon mirrors provisioning
// events (status, identity, result, device_added) onto the haven/provision
// topic tree so dashboards and site services can follow an install session
// without polling the daemon's API, and listens on the command topic for
// remote start/stop requests.
//
//	provisiond ↔ MQTT Broker ↔ dashboards / site services
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Listen for remote commands
//	err = client.Subscribe(mqtt.Topics{}.Command(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(payload)
//	    })
//
//	// Publish an event
//	client.Publish(mqtt.Topics{}.Result(), payload, 1, false)
package mqtt
