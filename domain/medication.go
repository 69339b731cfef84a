package domain

type Medication struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Dosage      string    `db:"dosage" json:"dosage"`
	Price       float64   `db:"price" json:"price"`
	MinStock    int64     `db:"min_stock" json:"min_stock"`
	Active      bool      `db:"active" json:"active"`
	Deleted     bool      `db:"deleted" json:"deleted"`
	Category    *Category `db:"-" json:"category,omitempty"`
	CreatedAt   string    `db:"created_at" json:"created_at"`
}
