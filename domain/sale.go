package domain

type Sale struct {
	ID        int64      `db:"id" json:"id"`
	Receipt   string     `db:"receipt" json:"receipt"`
	Customer  *Customer  `db:"-" json:"customer,omitempty"`
	Total     float64    `db:"total_amount" json:"total"`
	CreatedAt string     `db:"created_at" json:"created_at"`
	Items     []SaleItem `db:"-" json:"items"`
}

type SaleItem struct {
	ID             int64   `db:"id" json:"id"`
	SaleID         int64   `db:"sale_id" json:"-"`
	MedicationID   int64   `db:"medication_id" json:"medication_id"`
	MedicationName string  `db:"medication_name" json:"medication_name"`
	Quantity       int64   `db:"quantity" json:"quantity"`
	UnitPrice      float64 `db:"unit_price" json:"unit_price"`
	Subtotal       float64 `db:"subtotal" json:"subtotal"`
}
