package client

import (
	"context"
	"fmt"

	"pharmadesk/m/domain"
)

type CustomerRequest struct {
	FullName     string  `json:"full_name"`
	TaxID        string  `json:"tax_id"`
	Email        string  `json:"email"`
	BirthDate    string  `json:"birth_date"`
	GuardianName *string `json:"guardian_name,omitempty"`
}

func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var customers []domain.Customer
	err := c.do(ctx, "GET", "/customers", nil, &customers)
	return customers, err
}

func (c *Client) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	var customer domain.Customer
	err := c.do(ctx, "GET", fmt.Sprintf("/customers/%d", id), nil, &customer)
	return customer, err
}

func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (domain.Customer, error) {
	var customer domain.Customer
	err := c.do(ctx, "POST", "/customers", req, &customer)
	return customer, err
}

func (c *Client) UpdateCustomer(ctx context.Context, id int64, req CustomerRequest) (domain.Customer, error) {
	var customer domain.Customer
	err := c.do(ctx, "PUT", fmt.Sprintf("/customers/%d", id), req, &customer)
	return customer, err
}

func (c *Client) DeleteCustomer(ctx context.Context, id int64) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/customers/%d", id), nil, nil)
}
