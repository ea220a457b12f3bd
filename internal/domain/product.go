package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customization holds the optional free-text customization options an
// artisan offers for a product.
type Customization struct {
	Color    string `json:"color,omitempty"`
	Material string `json:"material,omitempty"`
	Design   string `json:"design,omitempty"`
}

// Product is a catalog entry. The ID is assigned at creation and is the
// stable public identifier; insertion order is only used for listing.
// Products are immutable after creation.
type Product struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	Name          string        `json:"name" db:"name"`
	Price         float64       `json:"price" db:"price"`
	ArtisanEmail  string        `json:"artisan_email" db:"artisan_email"`
	Image         BlobRef       `json:"image"`
	Model         BlobRef       `json:"model"`
	Story         string        `json:"story" db:"story"`
	Customization Customization `json:"customization"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}
