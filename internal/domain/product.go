package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog entry managed by the admin workflow.
// Version is the optimistic concurrency token checked on update.
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	PhotoURL    string          `json:"photo_url" db:"photo_url"`
	Price       decimal.Decimal `json:"price" db:"price"`
	SortNumber  int             `json:"sort_number" db:"sort_number"`
	CategoryID  int64           `json:"category_id" db:"category_id"`
	Category    *Category       `json:"category,omitempty" db:"-"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Category represents a product category. Categories are read-only from the
// product workflow's perspective.
type Category struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
