package client

import (
	"context"
	"fmt"

	"pharmadesk/m/domain"
)

type MedicationRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Dosage      string  `json:"dosage"`
	Price       float64 `json:"price"`
	MinStock    int64   `json:"min_stock"`
	Active      *bool   `json:"active,omitempty"`
	CategoryID  *int64  `json:"category_id,omitempty"`
}

func (c *Client) ListMedications(ctx context.Context) ([]domain.Medication, error) {
	var medications []domain.Medication
	err := c.do(ctx, "GET", "/medications", nil, &medications)
	return medications, err
}

func (c *Client) GetMedication(ctx context.Context, id int64) (domain.Medication, error) {
	var medication domain.Medication
	err := c.do(ctx, "GET", fmt.Sprintf("/medications/%d", id), nil, &medication)
	return medication, err
}

func (c *Client) MedicationsByCategory(ctx context.Context, categoryID int64) ([]domain.Medication, error) {
	var medications []domain.Medication
	err := c.do(ctx, "GET", fmt.Sprintf("/medications/category/%d", categoryID), nil, &medications)
	return medications, err
}

func (c *Client) CreateMedication(ctx context.Context, req MedicationRequest) (domain.Medication, error) {
	var medication domain.Medication
	err := c.do(ctx, "POST", "/medications", req, &medication)
	return medication, err
}

func (c *Client) UpdateMedication(ctx context.Context, id int64, req MedicationRequest) (domain.Medication, error) {
	var medication domain.Medication
	err := c.do(ctx, "PUT", fmt.Sprintf("/medications/%d", id), req, &medication)
	return medication, err
}

func (c *Client) SetMedicationStatus(ctx context.Context, id int64, active bool) (domain.Medication, error) {
	var medication domain.Medication
	body := map[string]bool{"active": active}
	err := c.do(ctx, "PATCH", fmt.Sprintf("/medications/%d/status", id), body, &medication)
	return medication, err
}

func (c *Client) DeleteMedication(ctx context.Context, id int64) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/medications/%d", id), nil, nil)
}
