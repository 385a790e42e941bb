package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RecordDispatch counts one intent request forwarded to the endpoint.
// Non-blocking; the point is batched and sent asynchronously.
func (c *Client) RecordDispatch() {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"endpoint_dispatch",
		nil,
		map[string]interface{}{"count": 1},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// RecordResult counts one completed endpoint request, tagged by outcome.
func (c *Client) RecordResult(ok bool) {
	if !c.IsConnected() {
		return
	}

	outcome := "error"
	if ok {
		outcome = "ok"
	}
	point := write.NewPoint(
		"endpoint_result",
		map[string]string{"outcome": outcome},
		map[string]interface{}{"count": 1},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// RecordEndpointState records an endpoint connectivity transition.
func (c *Client) RecordEndpointState(connected bool) {
	if !c.IsConnected() {
		return
	}

	state := 0.0
	if connected {
		state = 1.0
	}
	point := write.NewPoint(
		"endpoint_state",
		nil,
		map[string]interface{}{"connected": state},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// RecordDeviceCount records the current connected device count.
func (c *Client) RecordDeviceCount(count int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"devices",
		nil,
		map[string]interface{}{"connected": count},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}
