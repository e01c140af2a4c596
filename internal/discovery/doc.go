// Package discovery finds BLE-to-WebSocket bridges on the local network.
//
// A bridge is a small network device (an ESP32 or a Raspberry Pi, typically)
// that sits next to the power station, holds the BLE connection and relays
// notifications over a WebSocket. Bridges advertise the "_powerroam._tcp"
// service over multicast DNS with two optional TXT keys:
//
//	path=/ws          WebSocket path, "/ws" when absent
//	device=UGREEN GS  name of the station the bridge is attached to
//
// # Usage Example
//
//	bridges, err := discovery.DiscoverBridges(ctx, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, b := range bridges {
//	    fmt.Println(b, b.URL())
//	}
//
// The scan runs for the whole timeout and returns every bridge that
// answered. WaitForBridge returns as soon as a matching bridge is seen.
package discovery
