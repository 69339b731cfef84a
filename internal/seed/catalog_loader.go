package seed

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// LoadCatalog ingests a CSV medication catalog, creating categories on the
// fly and ignoring rows already present. Expected columns:
// name,description,dosage,price,min_stock,category
func LoadCatalog(db *sqlx.DB, csvPath string) {
	if csvPath == "" {
		return
	}
	file, err := os.Open(csvPath)
	if err != nil {
		log.Printf("unable to load medication catalog %s: %v", csvPath, err)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Printf("unable to read catalog header: %v", err)
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Printf("unable to start catalog transaction: %v", err)
		return
	}

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("unable to read catalog row: %v", err)
			continue
		}
		if len(record) < 6 {
			continue
		}
		name := strings.TrimSpace(record[0])
		description := strings.TrimSpace(record[1])
		dosage := strings.TrimSpace(record[2])
		price, priceErr := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
		minStock, _ := strconv.ParseInt(strings.TrimSpace(record[4]), 10, 64)
		category := strings.TrimSpace(record[5])

		if name == "" || priceErr != nil {
			continue
		}

		var categoryID *int64
		if category != "" {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO categories (name) VALUES ($1)`, category); err != nil {
				log.Printf("unable to insert category %s: %v", category, err)
				continue
			}
			var id int64
			if err := tx.Get(&id, `SELECT id FROM categories WHERE name = $1`, category); err != nil {
				log.Printf("unable to resolve category %s: %v", category, err)
				continue
			}
			categoryID = &id
		}

		var exists bool
		if err := tx.Get(&exists, `SELECT EXISTS(SELECT 1 FROM medications WHERE name = $1 AND dosage = $2 AND deleted = 0)`, name, dosage); err != nil || exists {
			continue
		}

		if _, err := tx.Exec(`INSERT INTO medications (name, description, dosage, price, min_stock, category_id) VALUES ($1, $2, $3, $4, $5, $6)`,
			name, description, dosage, price, minStock, categoryID); err != nil {
			log.Printf("unable to insert medication %s: %v", name, err)
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("unable to commit catalog seed: %v", err)
	} else if rows > 0 {
		log.Printf("seeded medication catalog with %d rows", rows)
	}
}
