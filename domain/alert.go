package domain

type LowStockAlert struct {
	MedicationID   int64   `db:"medication_id" json:"medication_id"`
	MedicationName string  `db:"medication_name" json:"medication_name"`
	Quantity       int64   `db:"quantity" json:"quantity"`
	MinStock       int64   `db:"min_stock" json:"min_stock"`
	Price          float64 `db:"price" json:"price"`
}

type ExpiryAlert struct {
	MedicationID   int64  `db:"medication_id" json:"medication_id"`
	MedicationName string `db:"medication_name" json:"medication_name"`
	BatchID        int64  `db:"batch_id" json:"batch_id"`
	Quantity       int64  `db:"quantity" json:"quantity"`
	ExpiryDate     string `db:"expiry_date" json:"expiry_date"`
	DaysLeft       int64  `db:"days_left" json:"days_left"`
}
