package client

import (
	"context"
	"fmt"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/checkout"
)

type SaleItemRequest struct {
	MedicationID int64 `json:"medication_id"`
	Quantity     int64 `json:"quantity"`
}

type SaleRequest struct {
	CustomerID int64             `json:"customer_id"`
	Items      []SaleItemRequest `json:"items"`
}

func (c *Client) ListSales(ctx context.Context) ([]domain.Sale, error) {
	var sales []domain.Sale
	err := c.do(ctx, "GET", "/sales", nil, &sales)
	return sales, err
}

func (c *Client) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	var sale domain.Sale
	err := c.do(ctx, "GET", fmt.Sprintf("/sales/%d", id), nil, &sale)
	return sale, err
}

func (c *Client) SalesByCustomer(ctx context.Context, customerID int64) ([]domain.Sale, error) {
	var sales []domain.Sale
	err := c.do(ctx, "GET", fmt.Sprintf("/sales/customer/%d", customerID), nil, &sales)
	return sales, err
}

func (c *Client) CreateSale(ctx context.Context, req SaleRequest) (domain.Sale, error) {
	var sale domain.Sale
	err := c.do(ctx, "POST", "/sales", req, &sale)
	return sale, err
}

// SubmitSale adapts a finished cart to the sale endpoint, making the Client
// a checkout.Submitter.
func (c *Client) SubmitSale(ctx context.Context, customerID int64, lines []checkout.Line) error {
	req := SaleRequest{CustomerID: customerID}
	for _, line := range lines {
		req.Items = append(req.Items, SaleItemRequest{
			MedicationID: line.Item.ID,
			Quantity:     line.Quantity,
		})
	}
	_, err := c.CreateSale(ctx, req)
	return err
}
