package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"pharmadesk/m/domain"
	"pharmadesk/m/internal/checkout"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

const dateLayout = "2006-01-02"

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db              *sqlx.DB
	secret          string
	expiryAlertDays int
	now             func() time.Time
}

// New constructs a Handler.
func New(db *sqlx.DB, secret string, expiryAlertDays int) *Handler {
	if expiryAlertDays <= 0 {
		expiryAlertDays = 30
	}
	return &Handler{db: db, secret: secret, expiryAlertDays: expiryAlertDays, now: time.Now}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/categories", func(r chi.Router) {
			r.Get("/", h.listCategories)
			r.Post("/", h.createCategory)
			r.Get("/{id}", h.getCategory)
			r.Put("/{id}", h.updateCategory)
			r.Delete("/{id}", h.deleteCategory)
		})

		pr.Route("/medications", func(r chi.Router) {
			r.Get("/", h.listMedications)
			r.Post("/", h.createMedication)
			r.Get("/{id}", h.getMedication)
			r.Get("/category/{categoryID}", h.medicationsByCategory)
			r.Put("/{id}", h.updateMedication)
			r.Patch("/{id}/status", h.updateMedicationStatus)
			r.Delete("/{id}", h.deleteMedication)
		})

		pr.Route("/customers", func(r chi.Router) {
			r.Get("/", h.listCustomers)
			r.Post("/", h.createCustomer)
			r.Get("/{id}", h.getCustomer)
			r.Put("/{id}", h.updateCustomer)
			r.Delete("/{id}", h.deleteCustomer)
		})

		pr.Route("/stock", func(r chi.Router) {
			r.Get("/{medicationID}", h.stockLevel)
			r.Get("/medication/{medicationID}", h.stockBatches)
			r.Post("/entry", h.registerEntry)
			r.Post("/exit", h.registerExit)
		})

		pr.Route("/sales", func(r chi.Router) {
			r.Get("/", h.listSales)
			r.Get("/{id}", h.getSale)
			r.Get("/customer/{customerID}", h.salesByCustomer)
			r.Post("/", h.createSale)
		})

		pr.Route("/alerts", func(r chi.Router) {
			r.Get("/low-stock", h.lowStockAlerts)
			r.Get("/near-expiry", h.expiryAlerts)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64, role string) (string, error) {
	claims := authClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(string)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

func userIDFromContext(r *http.Request) *int64 {
	if val := r.Context().Value(ctxUserID); val != nil {
		if id, ok := val.(int64); ok {
			return &id
		}
	}
	return nil
}

// Auth handlers

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if req.Role == "" {
		req.Role = "attendant"
	}
	if req.Role != "attendant" && req.Role != "admin" {
		respondError(w, http.StatusBadRequest, "role must be attendant or admin")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	var userID int64
	err = h.db.QueryRowx(`INSERT INTO users (username, password, role) VALUES ($1, $2, $3) RETURNING id`,
		strings.ToLower(req.Username), hashed, req.Role).Scan(&userID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "unique constraint") {
			respondError(w, http.StatusConflict, "username already exists")
		} else {
			respondError(w, http.StatusInternalServerError, "unable to create user")
		}
		return
	}

	token, err := h.generateToken(userID, req.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{
		Token: token,
		User:  domain.User{ID: userID, Username: strings.ToLower(req.Username), Role: req.Role},
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user domain.User
	err := h.db.Get(&user, `SELECT id, username, password, role FROM users WHERE username = $1`, strings.ToLower(req.Username))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(user.ID, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// Category handlers

type categoryRequest struct {
	Name string `json:"name"`
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories := []domain.Category{}
	if err := h.db.Select(&categories, `SELECT id, name FROM categories ORDER BY id`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list categories")
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var category domain.Category
	if err := h.db.Get(&category, `SELECT id, name FROM categories WHERE id = $1`, id); err != nil {
		respondError(w, http.StatusNotFound, "category not found")
		return
	}
	respondJSON(w, http.StatusOK, category)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	var id int64
	err := h.db.QueryRowx(`INSERT INTO categories (name) VALUES ($1) RETURNING id`, strings.TrimSpace(req.Name)).Scan(&id)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			respondError(w, http.StatusConflict, "category already exists")
		} else {
			respondError(w, http.StatusInternalServerError, "unable to create category")
		}
		return
	}
	respondJSON(w, http.StatusCreated, domain.Category{ID: id, Name: strings.TrimSpace(req.Name)})
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	res, err := h.db.Exec(`UPDATE categories SET name = $1 WHERE id = $2`, strings.TrimSpace(req.Name), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update category")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "category not found")
		return
	}
	respondJSON(w, http.StatusOK, domain.Category{ID: id, Name: strings.TrimSpace(req.Name)})
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin") {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var inUse bool
	if err := h.db.Get(&inUse, `SELECT EXISTS(SELECT 1 FROM medications WHERE category_id = $1 AND deleted = 0)`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to check category usage")
		return
	}
	if inUse {
		respondError(w, http.StatusConflict, "category is in use by medications")
		return
	}
	res, err := h.db.Exec(`DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete category")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "category not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "category deleted"})
}

// Medication handlers

type medicationRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Dosage      string  `json:"dosage"`
	Price       float64 `json:"price"`
	MinStock    int64   `json:"min_stock"`
	Active      *bool   `json:"active,omitempty"`
	CategoryID  *int64  `json:"category_id,omitempty"`
}

type medicationRow struct {
	domain.Medication
	CategoryID   *int64  `db:"category_id"`
	CategoryName *string `db:"category_name"`
}

func (row medicationRow) toDomain() domain.Medication {
	med := row.Medication
	if row.CategoryID != nil {
		name := ""
		if row.CategoryName != nil {
			name = *row.CategoryName
		}
		med.Category = &domain.Category{ID: *row.CategoryID, Name: name}
	}
	return med
}

const medicationColumns = `m.id, m.name, m.description, m.dosage, m.price, m.min_stock, m.active, m.deleted, m.created_at, m.category_id, c.name AS category_name`

func (h *Handler) selectMedications(w http.ResponseWriter, where string, args ...any) {
	query := `SELECT ` + medicationColumns + ` FROM medications m LEFT JOIN categories c ON c.id = m.category_id WHERE m.deleted = 0`
	if where != "" {
		query += " AND " + where
	}
	query += " ORDER BY m.id"

	var rows []medicationRow
	if err := h.db.Select(&rows, query, args...); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list medications")
		return
	}
	medications := make([]domain.Medication, len(rows))
	for i, row := range rows {
		medications[i] = row.toDomain()
	}
	respondJSON(w, http.StatusOK, medications)
}

func (h *Handler) listMedications(w http.ResponseWriter, r *http.Request) {
	h.selectMedications(w, "")
}

func (h *Handler) medicationsByCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "categoryID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	h.selectMedications(w, "m.category_id = $1", id)
}

func (h *Handler) loadMedication(id int64) (domain.Medication, error) {
	var row medicationRow
	err := h.db.Get(&row, `SELECT `+medicationColumns+` FROM medications m LEFT JOIN categories c ON c.id = m.category_id WHERE m.id = $1 AND m.deleted = 0`, id)
	if err != nil {
		return domain.Medication{}, err
	}
	return row.toDomain(), nil
}

func (h *Handler) getMedication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}
	med, err := h.loadMedication(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "medication not found")
		return
	}
	respondJSON(w, http.StatusOK, med)
}

func (h *Handler) validateMedicationRequest(w http.ResponseWriter, req medicationRequest) bool {
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return false
	}
	if req.Price <= 0 {
		respondError(w, http.StatusBadRequest, "price must be greater than zero")
		return false
	}
	if req.MinStock < 0 {
		respondError(w, http.StatusBadRequest, "min_stock cannot be negative")
		return false
	}
	if req.CategoryID != nil {
		var exists bool
		if err := h.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, *req.CategoryID); err != nil || !exists {
			respondError(w, http.StatusBadRequest, "invalid category_id")
			return false
		}
	}
	return true
}

func (h *Handler) createMedication(w http.ResponseWriter, r *http.Request) {
	var req medicationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.validateMedicationRequest(w, req) {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	var id int64
	err := h.db.QueryRowx(`INSERT INTO medications (name, description, dosage, price, min_stock, active, category_id) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		strings.TrimSpace(req.Name), req.Description, req.Dosage, req.Price, req.MinStock, active, req.CategoryID).Scan(&id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create medication")
		return
	}
	med, err := h.loadMedication(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load medication")
		return
	}
	respondJSON(w, http.StatusCreated, med)
}

func (h *Handler) updateMedication(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}
	var req medicationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.validateMedicationRequest(w, req) {
		return
	}
	res, err := h.db.Exec(`UPDATE medications SET name = $1, description = $2, dosage = $3, price = $4, min_stock = $5, category_id = $6 WHERE id = $7 AND deleted = 0`,
		strings.TrimSpace(req.Name), req.Description, req.Dosage, req.Price, req.MinStock, req.CategoryID, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update medication")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "medication not found")
		return
	}
	med, err := h.loadMedication(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load medication")
		return
	}
	respondJSON(w, http.StatusOK, med)
}

func (h *Handler) updateMedicationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}
	var payload struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.db.Exec(`UPDATE medications SET active = $1 WHERE id = $2 AND deleted = 0`, payload.Active, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update status")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "medication not found")
		return
	}
	med, err := h.loadMedication(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load medication")
		return
	}
	respondJSON(w, http.StatusOK, med)
}

func (h *Handler) deleteMedication(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin") {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}
	// Soft delete keeps past sale items resolvable.
	res, err := h.db.Exec(`UPDATE medications SET deleted = 1, active = 0 WHERE id = $1 AND deleted = 0`, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete medication")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "medication not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "medication deleted"})
}

// Customer handlers

type customerRequest struct {
	FullName     string  `json:"full_name"`
	TaxID        string  `json:"tax_id"`
	Email        string  `json:"email"`
	BirthDate    string  `json:"birth_date"`
	GuardianName *string `json:"guardian_name,omitempty"`
}

func (h *Handler) validateCustomerRequest(w http.ResponseWriter, req customerRequest) bool {
	if strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.TaxID) == "" {
		respondError(w, http.StatusBadRequest, "full_name and tax_id are required")
		return false
	}
	if _, err := time.Parse(dateLayout, req.BirthDate); err != nil {
		respondError(w, http.StatusBadRequest, "birth_date must be in YYYY-MM-DD format")
		return false
	}
	return true
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers := []domain.Customer{}
	if err := h.db.Select(&customers, `SELECT id, full_name, tax_id, email, birth_date, guardian_name FROM customers ORDER BY id`); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list customers")
		return
	}
	respondJSON(w, http.StatusOK, customers)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}
	var customer domain.Customer
	if err := h.db.Get(&customer, `SELECT id, full_name, tax_id, email, birth_date, guardian_name FROM customers WHERE id = $1`, id); err != nil {
		respondError(w, http.StatusNotFound, "customer not found")
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.validateCustomerRequest(w, req) {
		return
	}
	var id int64
	err := h.db.QueryRowx(`INSERT INTO customers (full_name, tax_id, email, birth_date, guardian_name) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		strings.TrimSpace(req.FullName), strings.TrimSpace(req.TaxID), req.Email, req.BirthDate, req.GuardianName).Scan(&id)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			respondError(w, http.StatusConflict, "tax_id already registered")
		} else {
			respondError(w, http.StatusInternalServerError, "unable to create customer")
		}
		return
	}
	respondJSON(w, http.StatusCreated, domain.Customer{
		ID:           id,
		FullName:     strings.TrimSpace(req.FullName),
		TaxID:        strings.TrimSpace(req.TaxID),
		Email:        req.Email,
		BirthDate:    req.BirthDate,
		GuardianName: req.GuardianName,
	})
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.validateCustomerRequest(w, req) {
		return
	}
	res, err := h.db.Exec(`UPDATE customers SET full_name = $1, tax_id = $2, email = $3, birth_date = $4, guardian_name = $5 WHERE id = $6`,
		strings.TrimSpace(req.FullName), strings.TrimSpace(req.TaxID), req.Email, req.BirthDate, req.GuardianName, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update customer")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "customer not found")
		return
	}
	respondJSON(w, http.StatusOK, domain.Customer{
		ID:           id,
		FullName:     strings.TrimSpace(req.FullName),
		TaxID:        strings.TrimSpace(req.TaxID),
		Email:        req.Email,
		BirthDate:    req.BirthDate,
		GuardianName: req.GuardianName,
	})
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, "admin") {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}
	var hasSales bool
	if err := h.db.Get(&hasSales, `SELECT EXISTS(SELECT 1 FROM sales WHERE customer_id = $1)`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to check customer sales")
		return
	}
	if hasSales {
		respondError(w, http.StatusConflict, "customer has registered sales")
		return
	}
	res, err := h.db.Exec(`DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete customer")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "customer not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "customer deleted"})
}

// Stock handlers

func (h *Handler) stockLevel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "medicationID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}
	var level domain.StockLevel
	query := `SELECT m.id AS medication_id, m.name AS medication_name,
	          COALESCE(SUM(b.quantity), 0) AS quantity,
	          MIN(CASE WHEN b.quantity > 0 THEN b.expiry_date END) AS next_expiry
	          FROM medications m
	          LEFT JOIN stock_batches b ON b.medication_id = m.id
	          WHERE m.id = $1 AND m.deleted = 0
	          GROUP BY m.id`
	if err := h.db.Get(&level, query, id); err != nil {
		respondError(w, http.StatusNotFound, "medication not found")
		return
	}
	respondJSON(w, http.StatusOK, level)
}

func (h *Handler) stockBatches(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "medicationID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medication id")
		return
	}
	batches := []domain.StockBatch{}
	query := `SELECT b.id, b.medication_id, m.name AS medication_name, b.quantity, b.expiry_date
	          FROM stock_batches b
	          JOIN medications m ON m.id = b.medication_id
	          WHERE b.medication_id = $1 AND b.quantity > 0
	          ORDER BY b.expiry_date ASC`
	if err := h.db.Select(&batches, query, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list batches")
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

type stockMovementRequest struct {
	MedicationID int64  `json:"medication_id"`
	Quantity     int64  `json:"quantity"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
	Note         string `json:"note,omitempty"`
}

func (h *Handler) registerEntry(w http.ResponseWriter, r *http.Request) {
	var req stockMovementRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "quantity must be greater than zero")
		return
	}
	if _, err := time.Parse(dateLayout, req.ExpiryDate); err != nil {
		respondError(w, http.StatusBadRequest, "expiry_date must be in YYYY-MM-DD format")
		return
	}

	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to start entry")
		return
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.Get(&exists, `SELECT EXISTS(SELECT 1 FROM medications WHERE id = $1 AND deleted = 0)`, req.MedicationID); err != nil || !exists {
		respondError(w, http.StatusBadRequest, "invalid medication_id")
		return
	}

	// An entry with the same expiry date tops up the existing batch.
	var batchID int64
	err = tx.Get(&batchID, `SELECT id FROM stock_batches WHERE medication_id = $1 AND expiry_date = $2`, req.MedicationID, req.ExpiryDate)
	switch {
	case err == nil:
		if _, err := tx.Exec(`UPDATE stock_batches SET quantity = quantity + $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, req.Quantity, batchID); err != nil {
			respondError(w, http.StatusInternalServerError, "unable to update batch")
			return
		}
	case errors.Is(err, sql.ErrNoRows):
		if err := tx.QueryRowx(`INSERT INTO stock_batches (medication_id, quantity, expiry_date) VALUES ($1, $2, $3) RETURNING id`,
			req.MedicationID, req.Quantity, req.ExpiryDate).Scan(&batchID); err != nil {
			respondError(w, http.StatusInternalServerError, "unable to create batch")
			return
		}
	default:
		respondError(w, http.StatusInternalServerError, "unable to load batch")
		return
	}

	if _, err := tx.Exec(`INSERT INTO stock_movements (medication_id, batch_id, direction, quantity, note) VALUES ($1, $2, 'entry', $3, $4)`,
		req.MedicationID, batchID, req.Quantity, nullIfEmpty(req.Note)); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to record movement")
		return
	}

	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to complete entry")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "stock entry registered"})
}

func (h *Handler) registerExit(w http.ResponseWriter, r *http.Request) {
	var req stockMovementRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "quantity must be greater than zero")
		return
	}
	if req.ExpiryDate != "" {
		if _, err := time.Parse(dateLayout, req.ExpiryDate); err != nil {
			respondError(w, http.StatusBadRequest, "expiry_date must be in YYYY-MM-DD format")
			return
		}
	}

	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to start exit")
		return
	}
	defer tx.Rollback()

	if req.ExpiryDate != "" {
		// Targeted exit drains one specific lot.
		var batch domain.StockBatch
		err := tx.Get(&batch, `SELECT id, medication_id, quantity, expiry_date, '' AS medication_name FROM stock_batches WHERE medication_id = $1 AND expiry_date = $2`,
			req.MedicationID, req.ExpiryDate)
		if err != nil {
			respondError(w, http.StatusNotFound, "no batch with that expiry date")
			return
		}
		if batch.Quantity < req.Quantity {
			respondError(w, http.StatusBadRequest, "insufficient stock in batch")
			return
		}
		if err := h.drainBatch(tx, batch.ID, req.MedicationID, req.Quantity, req.Note); err != nil {
			respondError(w, http.StatusInternalServerError, "unable to register exit")
			return
		}
	} else {
		if err := h.consumeFIFO(tx, req.MedicationID, req.Quantity, req.Note); err != nil {
			if errors.Is(err, errInsufficientStock) {
				respondError(w, http.StatusBadRequest, "insufficient stock")
			} else {
				respondError(w, http.StatusInternalServerError, "unable to register exit")
			}
			return
		}
	}

	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to complete exit")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "stock exit registered"})
}

var errInsufficientStock = errors.New("insufficient stock")

func (h *Handler) drainBatch(tx *sqlx.Tx, batchID, medicationID, quantity int64, note string) error {
	if _, err := tx.Exec(`UPDATE stock_batches SET quantity = quantity - $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, quantity, batchID); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO stock_movements (medication_id, batch_id, direction, quantity, note) VALUES ($1, $2, 'exit', $3, $4)`,
		medicationID, batchID, quantity, nullIfEmpty(note))
	return err
}

// consumeFIFO allocates an exit against batches in ascending expiry order,
// draining each lot before touching the next.
func (h *Handler) consumeFIFO(tx *sqlx.Tx, medicationID, quantity int64, note string) error {
	var batches []domain.StockBatch
	err := tx.Select(&batches, `SELECT id, medication_id, quantity, expiry_date, '' AS medication_name FROM stock_batches WHERE medication_id = $1 AND quantity > 0 ORDER BY expiry_date ASC`, medicationID)
	if err != nil {
		return err
	}
	var available int64
	for _, batch := range batches {
		available += batch.Quantity
	}
	if available < quantity {
		return errInsufficientStock
	}
	remaining := quantity
	for _, batch := range batches {
		if remaining == 0 {
			break
		}
		take := batch.Quantity
		if take > remaining {
			take = remaining
		}
		if err := h.drainBatch(tx, batch.ID, medicationID, take, note); err != nil {
			return err
		}
		remaining -= take
	}
	return nil
}

// Sales handlers

type saleItemRequest struct {
	MedicationID int64 `json:"medication_id"`
	Quantity     int64 `json:"quantity"`
}

type saleRequest struct {
	CustomerID int64             `json:"customer_id"`
	Items      []saleItemRequest `json:"items"`
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CustomerID <= 0 {
		respondError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "sale must have at least one item")
		return
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			respondError(w, http.StatusBadRequest, "item quantity must be at least 1")
			return
		}
	}

	var customer domain.Customer
	if err := h.db.Get(&customer, `SELECT id, full_name, tax_id, email, birth_date, guardian_name FROM customers WHERE id = $1`, req.CustomerID); err != nil {
		respondError(w, http.StatusBadRequest, "invalid customer_id")
		return
	}
	birth, err := time.Parse(dateLayout, customer.BirthDate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "customer has an invalid birth date")
		return
	}
	if checkout.Age(birth, h.now()) < 18 {
		respondError(w, http.StatusUnprocessableEntity, "customer is under 18 and cannot purchase")
		return
	}

	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to start sale")
		return
	}
	defer tx.Rollback()

	var (
		total float64
		items []domain.SaleItem
	)
	for _, item := range req.Items {
		var med struct {
			ID    int64   `db:"id"`
			Name  string  `db:"name"`
			Price float64 `db:"price"`
		}
		err := tx.Get(&med, `SELECT id, name, price FROM medications WHERE id = $1 AND deleted = 0 AND active = 1`, item.MedicationID)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("medication %d not found or inactive", item.MedicationID))
			return
		}
		subtotal := med.Price * float64(item.Quantity)
		total += subtotal
		items = append(items, domain.SaleItem{
			MedicationID:   med.ID,
			MedicationName: med.Name,
			Quantity:       item.Quantity,
			UnitPrice:      med.Price,
			Subtotal:       subtotal,
		})
	}

	receipt := uuid.NewString()
	var saleID int64
	err = tx.QueryRowx(`INSERT INTO sales (receipt, customer_id, user_id, total_amount) VALUES ($1, $2, $3, $4) RETURNING id`,
		receipt, customer.ID, userIDFromContext(r), total).Scan(&saleID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create sale record")
		return
	}

	for i := range items {
		items[i].SaleID = saleID
		note := fmt.Sprintf("sale %s", receipt)
		if err := h.consumeFIFO(tx, items[i].MedicationID, items[i].Quantity, note); err != nil {
			if errors.Is(err, errInsufficientStock) {
				respondError(w, http.StatusConflict, fmt.Sprintf("insufficient stock for %s", items[i].MedicationName))
			} else {
				respondError(w, http.StatusInternalServerError, "unable to consume stock")
			}
			return
		}
		err := tx.QueryRowx(`INSERT INTO sale_items (sale_id, medication_id, quantity, unit_price, subtotal) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			saleID, items[i].MedicationID, items[i].Quantity, items[i].UnitPrice, items[i].Subtotal).Scan(&items[i].ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "unable to add sale items")
			return
		}
	}

	var createdAt string
	if err := tx.Get(&createdAt, `SELECT created_at FROM sales WHERE id = $1`, saleID); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load sale")
		return
	}

	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to finalize sale")
		return
	}

	respondJSON(w, http.StatusCreated, domain.Sale{
		ID:        saleID,
		Receipt:   receipt,
		Customer:  &customer,
		Total:     total,
		CreatedAt: createdAt,
		Items:     items,
	})
}

type saleRow struct {
	domain.Sale
	CustomerID       int64   `db:"customer_id"`
	CustomerName     string  `db:"customer_name"`
	CustomerTaxID    string  `db:"customer_tax_id"`
	CustomerEmail    string  `db:"customer_email"`
	CustomerBirth    string  `db:"customer_birth_date"`
	CustomerGuardian *string `db:"customer_guardian_name"`
}

const saleColumns = `s.id, s.receipt, s.total_amount, s.created_at, s.customer_id,
	c.full_name AS customer_name, c.tax_id AS customer_tax_id, COALESCE(c.email, '') AS customer_email,
	c.birth_date AS customer_birth_date, c.guardian_name AS customer_guardian_name`

func (h *Handler) selectSales(w http.ResponseWriter, where string, args ...any) {
	query := `SELECT ` + saleColumns + ` FROM sales s JOIN customers c ON c.id = s.customer_id`
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY s.created_at DESC, s.id DESC"

	var rows []saleRow
	if err := h.db.Select(&rows, query, args...); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list sales")
		return
	}
	sales, err := h.attachSaleItems(rows)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load sale items")
		return
	}
	respondJSON(w, http.StatusOK, sales)
}

func (h *Handler) attachSaleItems(rows []saleRow) ([]domain.Sale, error) {
	sales := make([]domain.Sale, len(rows))
	if len(rows) == 0 {
		return sales, nil
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.Sale.ID
	}

	itemsQuery, itemsArgs, err := sqlx.In(`SELECT si.id, si.sale_id, si.medication_id, si.quantity, si.unit_price, si.subtotal,
	            COALESCE(m.name, 'Unknown') AS medication_name
                FROM sale_items si
                LEFT JOIN medications m ON m.id = si.medication_id
                WHERE si.sale_id IN (?)
                ORDER BY si.id`, ids)
	if err != nil {
		return nil, err
	}
	itemsQuery = h.db.Rebind(itemsQuery)

	var items []domain.SaleItem
	if err := h.db.Select(&items, itemsQuery, itemsArgs...); err != nil {
		return nil, err
	}
	itemsBySale := make(map[int64][]domain.SaleItem)
	for _, item := range items {
		itemsBySale[item.SaleID] = append(itemsBySale[item.SaleID], item)
	}

	for i, row := range rows {
		sale := row.Sale
		sale.Customer = &domain.Customer{
			ID:           row.CustomerID,
			FullName:     row.CustomerName,
			TaxID:        row.CustomerTaxID,
			Email:        row.CustomerEmail,
			BirthDate:    row.CustomerBirth,
			GuardianName: row.CustomerGuardian,
		}
		sale.Items = itemsBySale[sale.ID]
		if sale.Items == nil {
			sale.Items = []domain.SaleItem{}
		}
		sales[i] = sale
	}
	return sales, nil
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	h.selectSales(w, "")
}

func (h *Handler) salesByCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}
	h.selectSales(w, "s.customer_id = $1", id)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	var row saleRow
	if err := h.db.Get(&row, `SELECT `+saleColumns+` FROM sales s JOIN customers c ON c.id = s.customer_id WHERE s.id = $1`, id); err != nil {
		respondError(w, http.StatusNotFound, "sale not found")
		return
	}
	sales, err := h.attachSaleItems([]saleRow{row})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load sale items")
		return
	}
	respondJSON(w, http.StatusOK, sales[0])
}

// Alert handlers

func (h *Handler) lowStockAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := []domain.LowStockAlert{}
	query := `SELECT m.id AS medication_id, m.name AS medication_name,
	          COALESCE(SUM(b.quantity), 0) AS quantity, m.min_stock, m.price
	          FROM medications m
	          LEFT JOIN stock_batches b ON b.medication_id = m.id AND b.quantity > 0
	          WHERE m.deleted = 0 AND m.active = 1 AND m.min_stock > 0
	          GROUP BY m.id
	          HAVING COALESCE(SUM(b.quantity), 0) <= m.min_stock
	          ORDER BY quantity ASC`
	if err := h.db.Select(&alerts, query); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch alerts")
		return
	}
	respondJSON(w, http.StatusOK, alerts)
}

func (h *Handler) expiryAlerts(w http.ResponseWriter, r *http.Request) {
	days := h.expiryAlertDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}
	today := h.now().Format(dateLayout)
	cutoff := h.now().AddDate(0, 0, days).Format(dateLayout)

	var batches []domain.ExpiryAlert
	query := `SELECT b.medication_id, m.name AS medication_name, b.id AS batch_id, b.quantity, b.expiry_date, 0 AS days_left
	          FROM stock_batches b
	          JOIN medications m ON m.id = b.medication_id
	          WHERE m.deleted = 0 AND b.quantity > 0 AND b.expiry_date >= $1 AND b.expiry_date <= $2
	          ORDER BY b.expiry_date ASC`
	if err := h.db.Select(&batches, query, today, cutoff); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch alerts")
		return
	}

	now := h.now()
	alerts := make([]domain.ExpiryAlert, len(batches))
	for i, alert := range batches {
		if expiry, err := time.Parse(dateLayout, alert.ExpiryDate); err == nil {
			alert.DaysLeft = int64(expiry.Sub(now).Hours() / 24)
		}
		alerts[i] = alert
	}
	respondJSON(w, http.StatusOK, alerts)
}

// Helpers

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
