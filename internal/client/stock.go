package client

import (
	"context"
	"fmt"

	"pharmadesk/m/domain"
)

type StockMovementRequest struct {
	MedicationID int64  `json:"medication_id"`
	Quantity     int64  `json:"quantity"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
	Note         string `json:"note,omitempty"`
}

// StockLevel returns the aggregate quantity on hand for a medication.
func (c *Client) StockLevel(ctx context.Context, medicationID int64) (domain.StockLevel, error) {
	var level domain.StockLevel
	err := c.do(ctx, "GET", fmt.Sprintf("/stock/%d", medicationID), nil, &level)
	return level, err
}

// StockBatches returns the individual lots, nearest expiry first.
func (c *Client) StockBatches(ctx context.Context, medicationID int64) ([]domain.StockBatch, error) {
	var batches []domain.StockBatch
	err := c.do(ctx, "GET", fmt.Sprintf("/stock/medication/%d", medicationID), nil, &batches)
	return batches, err
}

func (c *Client) RegisterEntry(ctx context.Context, req StockMovementRequest) error {
	return c.do(ctx, "POST", "/stock/entry", req, nil)
}

func (c *Client) RegisterExit(ctx context.Context, req StockMovementRequest) error {
	return c.do(ctx, "POST", "/stock/exit", req, nil)
}
