package domain

// StockBatch is one lot of a medication sharing a single expiry date.
// Exits and sales consume batches nearest-expiry-first.
type StockBatch struct {
	ID             int64  `db:"id" json:"id"`
	MedicationID   int64  `db:"medication_id" json:"medication_id"`
	MedicationName string `db:"medication_name" json:"medication_name"`
	Quantity       int64  `db:"quantity" json:"quantity"`
	ExpiryDate     string `db:"expiry_date" json:"expiry_date"`
}

// StockLevel is the aggregate on-hand quantity across all batches.
type StockLevel struct {
	MedicationID   int64   `db:"medication_id" json:"medication_id"`
	MedicationName string  `db:"medication_name" json:"medication_name"`
	Quantity       int64   `db:"quantity" json:"quantity"`
	NextExpiry     *string `db:"next_expiry" json:"next_expiry,omitempty"`
}
