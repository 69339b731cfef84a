package client

import (
	"context"
	"fmt"

	"pharmadesk/m/domain"
)

type CategoryRequest struct {
	Name string `json:"name"`
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	err := c.do(ctx, "GET", "/categories", nil, &categories)
	return categories, err
}

func (c *Client) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	var category domain.Category
	err := c.do(ctx, "GET", fmt.Sprintf("/categories/%d", id), nil, &category)
	return category, err
}

func (c *Client) CreateCategory(ctx context.Context, req CategoryRequest) (domain.Category, error) {
	var category domain.Category
	err := c.do(ctx, "POST", "/categories", req, &category)
	return category, err
}

func (c *Client) UpdateCategory(ctx context.Context, id int64, req CategoryRequest) (domain.Category, error) {
	var category domain.Category
	err := c.do(ctx, "PUT", fmt.Sprintf("/categories/%d", id), req, &category)
	return category, err
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/categories/%d", id), nil, nil)
}
