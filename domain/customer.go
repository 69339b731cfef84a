package domain

type Customer struct {
	ID           int64   `db:"id" json:"id"`
	FullName     string  `db:"full_name" json:"full_name"`
	TaxID        string  `db:"tax_id" json:"tax_id"`
	Email        string  `db:"email" json:"email"`
	BirthDate    string  `db:"birth_date" json:"birth_date"`
	GuardianName *string `db:"guardian_name" json:"guardian_name,omitempty"`
}
