package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStockLevel records a product's stock position at a point in time.
//
// Called after every product create and update so the bucket accumulates a
// per-product quantity history. The write is non-blocking; data is batched
// and sent asynchronously.
//
// Example:
//
//	client.WriteStockLevel("prd-1a2b3c4d", "cleaning", 12, 1.5)
func (c *Client) WriteStockLevel(productID string, productType string, packageQuantity int, packageSize float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"stock_levels",
		map[string]string{
			"product_id":   productID,
			"product_type": productType,
		},
		map[string]interface{}{
			"package_quantity": packageQuantity,
			"package_size":     packageSize,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAuthEvent records an authentication event for rate dashboards.
//
// Parameters:
//   - action: event name (sign_in, refresh, denied)
//   - username: acting username; empty for anonymous failures
func (c *Client) WriteAuthEvent(action string, username string) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"action": action,
	}
	if username != "" {
		tags["username"] = username
	}

	point := write.NewPoint(
		"auth_events",
		tags,
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
