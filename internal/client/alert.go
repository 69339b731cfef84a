package client

import (
	"context"

	"pharmadesk/m/domain"
)

func (c *Client) LowStockAlerts(ctx context.Context) ([]domain.LowStockAlert, error) {
	var alerts []domain.LowStockAlert
	err := c.do(ctx, "GET", "/alerts/low-stock", nil, &alerts)
	return alerts, err
}

func (c *Client) ExpiryAlerts(ctx context.Context) ([]domain.ExpiryAlert, error) {
	var alerts []domain.ExpiryAlert
	err := c.do(ctx, "GET", "/alerts/near-expiry", nil, &alerts)
	return alerts, err
}
