package domain

import (
	"time"

	"github.com/google/uuid"
)

// Variant identifies which physical record set an identity lives in.
// The two sets share one logical email namespace.
type Variant string

const (
	VariantArtisan Variant = "artisan"
	VariantBuyer   Variant = "buyer"
)

// BlobRef points at an uploaded file in the object store. The key is the
// opaque storage id; the filename is kept for display only.
type BlobRef struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
}

// Identity holds the fields shared by both account variants. Email is stored
// lowercased and is unique across artisans and buyers combined.
type Identity struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Address      string    `json:"address" db:"address"`
	Newsletter   bool      `json:"newsletter" db:"newsletter"`
	Active       bool      `json:"is_active" db:"is_active"`
	ProfilePic   BlobRef   `json:"profile_pic"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Artisan is a craft producer. Catalog counters start at zero and are
// maintained by the product service.
type Artisan struct {
	Identity
	CraftType       string  `json:"craft_type" db:"craft_type"`
	Skills          string  `json:"skills" db:"skills"`
	BankInfo        string  `json:"-" db:"bank_info"`
	ShopName        string  `json:"shop_name" db:"shop_name"`
	ShopDescription string  `json:"shop_description" db:"shop_description"`
	ProductsCount   int     `json:"products_count" db:"products_count"`
	TotalSales      int     `json:"total_sales" db:"total_sales"`
	Rating          float64 `json:"rating" db:"rating"`
	Verified        bool    `json:"is_verified" db:"is_verified"`
}

// Buyer is a purchasing account. The list fields are empty (never nil)
// at creation.
type Buyer struct {
	Identity
	Wishlist          []string `json:"wishlist"`
	OrderHistory      []string `json:"order_history"`
	ShippingAddresses []string `json:"shipping_addresses"`
	PaymentMethods    []string `json:"payment_methods"`
}

// PendingRegistration is the transient state bridging the two signup steps.
// It is created on step-1 submission and must not outlive the handshake:
// the buyer path promotes it immediately, the artisan path consumes it on
// step-2 submission, and abandonment expires it via store TTL.
type PendingRegistration struct {
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         Variant   `json:"role"`
	CraftType    string    `json:"craft_type,omitempty"`
	Address      string    `json:"address"`
	Newsletter   bool      `json:"newsletter"`
	ProfilePic   BlobRef   `json:"profile_pic"`
	CreatedAt    time.Time `json:"created_at"`
}
