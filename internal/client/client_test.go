package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"pharmadesk/m/internal/api"
	"pharmadesk/m/internal/checkout"
	"pharmadesk/m/internal/migrations"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	migrations.Run(db)

	srv := httptest.NewServer(api.New(db, "test_secret", 30).Router())
	t.Cleanup(func() {
		srv.Close()
		db.Close()
	})
	return New(srv.URL, NewSessionContext())
}

func TestLoginStoresSession(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Register(ctx, "clara", "s3cret!", ""); err != nil {
		t.Fatalf("Register() = %v", err)
	}
	c.Logout()
	if c.Session().Authenticated() {
		t.Fatal("session still authenticated after logout")
	}

	resp, err := c.Login(ctx, "clara", "s3cret!")
	if err != nil {
		t.Fatalf("Login() = %v", err)
	}
	if resp.Token == "" || !c.Session().Authenticated() {
		t.Error("login did not populate the session")
	}
	if c.Session().Username() != "clara" {
		t.Errorf("session username = %q", c.Session().Username())
	}

	if _, err := c.Login(ctx, "clara", "wrong"); err == nil {
		t.Error("Login with bad password = nil, want error")
	}
}

func TestUnauthorizedClearsSession(t *testing.T) {
	c := newTestClient(t)
	c.Session().Init("not-a-real-token", "ghost")

	_, err := c.ListCategories(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 401 {
		t.Fatalf("ListCategories() = %v, want 401 APIError", err)
	}
	if c.Session().Authenticated() {
		t.Error("session not cleared after 401")
	}
}

func TestEntityWrappers(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Register(ctx, "worker", "s3cret!", ""); err != nil {
		t.Fatalf("Register() = %v", err)
	}

	category, err := c.CreateCategory(ctx, CategoryRequest{Name: "Analgesics"})
	if err != nil {
		t.Fatalf("CreateCategory() = %v", err)
	}

	med, err := c.CreateMedication(ctx, MedicationRequest{
		Name:       "Paracetamol",
		Dosage:     "500mg",
		Price:      12.50,
		MinStock:   5,
		CategoryID: &category.ID,
	})
	if err != nil {
		t.Fatalf("CreateMedication() = %v", err)
	}
	if med.Category == nil || med.Category.ID != category.ID {
		t.Errorf("medication category = %+v", med.Category)
	}

	if err := c.RegisterEntry(ctx, StockMovementRequest{
		MedicationID: med.ID,
		Quantity:     30,
		ExpiryDate:   time.Now().AddDate(0, 6, 0).Format("2006-01-02"),
	}); err != nil {
		t.Fatalf("RegisterEntry() = %v", err)
	}

	level, err := c.StockLevel(ctx, med.ID)
	if err != nil {
		t.Fatalf("StockLevel() = %v", err)
	}
	if level.Quantity != 30 {
		t.Errorf("stock level = %d, want 30", level.Quantity)
	}

	batches, err := c.StockBatches(ctx, med.ID)
	if err != nil {
		t.Fatalf("StockBatches() = %v", err)
	}
	if len(batches) != 1 {
		t.Errorf("batches = %d, want 1", len(batches))
	}

	if err := c.RegisterExit(ctx, StockMovementRequest{MedicationID: med.ID, Quantity: 100}); err == nil {
		t.Error("oversized RegisterExit() = nil, want error")
	}

	alerts, err := c.ExpiryAlerts(ctx)
	if err != nil {
		t.Fatalf("ExpiryAlerts() = %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("expiry alerts = %+v, want none within window", alerts)
	}
}

func TestCheckoutSubmitsThroughClient(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Register(ctx, "worker", "s3cret!", ""); err != nil {
		t.Fatalf("Register() = %v", err)
	}

	med, err := c.CreateMedication(ctx, MedicationRequest{Name: "Paracetamol", Price: 12.50})
	if err != nil {
		t.Fatalf("CreateMedication() = %v", err)
	}
	if err := c.RegisterEntry(ctx, StockMovementRequest{
		MedicationID: med.ID,
		Quantity:     10,
		ExpiryDate:   time.Now().AddDate(1, 0, 0).Format("2006-01-02"),
	}); err != nil {
		t.Fatalf("RegisterEntry() = %v", err)
	}

	birth := time.Now().AddDate(-30, 0, 0)
	customer, err := c.CreateCustomer(ctx, CustomerRequest{
		FullName:  "Ana Souza",
		TaxID:     "111.222.333-44",
		BirthDate: birth.Format("2006-01-02"),
	})
	if err != nil {
		t.Fatalf("CreateCustomer() = %v", err)
	}

	// The sales screen drives a checkout session with the client as its
	// submitter.
	session := checkout.NewSession(c)
	if err := session.SelectCustomer(checkout.Customer{
		ID:        customer.ID,
		FullName:  customer.FullName,
		BirthDate: birth,
	}); err != nil {
		t.Fatalf("SelectCustomer() = %v", err)
	}
	if err := session.AddToCart(checkout.CatalogItem{
		ID:        med.ID,
		Name:      med.Name,
		UnitPrice: med.Price,
	}, 3); err != nil {
		t.Fatalf("AddToCart() = %v", err)
	}
	if got := session.Snapshot().Total; got != 37.50 {
		t.Fatalf("cart total = %v, want 37.50", got)
	}

	if err := session.Submit(ctx); err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	if session.State() != checkout.Empty {
		t.Errorf("session state after submit = %v, want Empty", session.State())
	}

	sales, err := c.SalesByCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("SalesByCustomer() = %v", err)
	}
	if len(sales) != 1 || sales[0].Total != 37.50 {
		t.Fatalf("sales = %+v, want one sale of 37.50", sales)
	}
	if len(sales[0].Items) != 1 || sales[0].Items[0].Quantity != 3 {
		t.Errorf("sale items = %+v", sales[0].Items)
	}

	// A failed submission keeps the cart for retry.
	if err := session.SelectCustomer(checkout.Customer{ID: customer.ID, BirthDate: birth}); err != nil {
		t.Fatal(err)
	}
	if err := session.AddToCart(checkout.CatalogItem{ID: med.ID, UnitPrice: med.Price}, 1000); err != nil {
		t.Fatal(err)
	}
	err = session.Submit(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 409 {
		t.Fatalf("oversold Submit() = %v, want 409 APIError", err)
	}
	if session.State() != checkout.Composing {
		t.Errorf("state after failed submit = %v, want Composing", session.State())
	}
}
