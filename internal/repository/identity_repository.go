package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"artisan-market/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrEmailTaken       = errors.New("email already registered")
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// ArtisanPatch describes a partial update to an artisan profile. Nil fields
// are left untouched; updated_at is stamped on every update.
type ArtisanPatch struct {
	Skills          *string
	BankInfo        *string
	ShopName        *string
	ShopDescription *string
}

// IdentityRepository is the single logical identity namespace backed by two
// physical record sets. Emails are unique across both sets combined: every
// insert claims the email in a shared claims table within the same
// transaction, so concurrent registrations of one address in different
// tables cannot both commit. The service-level lookup pre-check is only a
// fast path.
type IdentityRepository interface {
	CreateArtisan(ctx context.Context, artisan *domain.Artisan) error
	CreateBuyer(ctx context.Context, buyer *domain.Buyer) error
	// FindByEmail checks the artisan set first, then the buyer set; the
	// first match wins.
	FindByEmail(ctx context.Context, email string) (*domain.Identity, domain.Variant, error)
	FindArtisanByEmail(ctx context.Context, email string) (*domain.Artisan, error)
	FindBuyerByEmail(ctx context.Context, email string) (*domain.Buyer, error)
	UpdateArtisan(ctx context.Context, email string, patch ArtisanPatch) error
	IncrementProductCount(ctx context.Context, email string) error
}

type identityRepository struct {
	db *sql.DB
}

// NewIdentityRepository creates a new instance of IdentityRepository
func NewIdentityRepository(db *sql.DB) IdentityRepository {
	return &identityRepository{db: db}
}

// CreateArtisan inserts a new artisan record using parameterized queries
func (r *identityRepository) CreateArtisan(ctx context.Context, artisan *domain.Artisan) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := claimEmail(ctx, tx, artisan.Email); err != nil {
		return err
	}

	query := `
		INSERT INTO artisans (
			id, email, password_hash, first_name, last_name, address, newsletter,
			is_active, profile_pic_key, profile_pic_name, craft_type, skills,
			bank_info, shop_name, shop_description, products_count, total_sales,
			rating, is_verified, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		artisan.ID,
		artisan.Email,
		artisan.PasswordHash,
		artisan.FirstName,
		artisan.LastName,
		artisan.Address,
		artisan.Newsletter,
		artisan.Active,
		artisan.ProfilePic.Key,
		artisan.ProfilePic.Filename,
		artisan.CraftType,
		artisan.Skills,
		artisan.BankInfo,
		artisan.ShopName,
		artisan.ShopDescription,
		artisan.ProductsCount,
		artisan.TotalSales,
		artisan.Rating,
		artisan.Verified,
		artisan.CreatedAt,
		artisan.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create artisan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit artisan: %w", err)
	}

	return nil
}

// CreateBuyer inserts a new buyer record using parameterized queries
func (r *identityRepository) CreateBuyer(ctx context.Context, buyer *domain.Buyer) error {
	wishlist, err := json.Marshal(emptyIfNil(buyer.Wishlist))
	if err != nil {
		return fmt.Errorf("failed to marshal wishlist: %w", err)
	}
	orderHistory, err := json.Marshal(emptyIfNil(buyer.OrderHistory))
	if err != nil {
		return fmt.Errorf("failed to marshal order history: %w", err)
	}
	shippingAddresses, err := json.Marshal(emptyIfNil(buyer.ShippingAddresses))
	if err != nil {
		return fmt.Errorf("failed to marshal shipping addresses: %w", err)
	}
	paymentMethods, err := json.Marshal(emptyIfNil(buyer.PaymentMethods))
	if err != nil {
		return fmt.Errorf("failed to marshal payment methods: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := claimEmail(ctx, tx, buyer.Email); err != nil {
		return err
	}

	query := `
		INSERT INTO buyers (
			id, email, password_hash, first_name, last_name, address, newsletter,
			is_active, profile_pic_key, profile_pic_name, wishlist, order_history,
			shipping_addresses, payment_methods, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		buyer.ID,
		buyer.Email,
		buyer.PasswordHash,
		buyer.FirstName,
		buyer.LastName,
		buyer.Address,
		buyer.Newsletter,
		buyer.Active,
		buyer.ProfilePic.Key,
		buyer.ProfilePic.Filename,
		wishlist,
		orderHistory,
		shippingAddresses,
		paymentMethods,
		buyer.CreatedAt,
		buyer.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create buyer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit buyer: %w", err)
	}

	return nil
}

// claimEmail reserves the address in the shared claims table. The claim
// commits or rolls back together with the variant insert.
func claimEmail(ctx context.Context, tx *sql.Tx, email string) error {
	_, err := tx.ExecContext(ctx, "INSERT INTO emails (email) VALUES ($1)", email)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to claim email: %w", err)
	}
	return nil
}

// FindByEmail looks up the shared identity fields across both record sets.
// Artisan wins if an email somehow exists in both sets.
func (r *identityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, domain.Variant, error) {
	identity, err := r.findIdentity(ctx, "artisans", email)
	if err == nil {
		return identity, domain.VariantArtisan, nil
	}
	if !errors.Is(err, ErrIdentityNotFound) {
		return nil, "", err
	}

	identity, err = r.findIdentity(ctx, "buyers", email)
	if err == nil {
		return identity, domain.VariantBuyer, nil
	}
	return nil, "", err
}

func (r *identityRepository) findIdentity(ctx context.Context, table, email string) (*domain.Identity, error) {
	query := fmt.Sprintf(`
		SELECT id, email, password_hash, first_name, last_name, address,
		       newsletter, is_active, profile_pic_key, profile_pic_name,
		       created_at, updated_at
		FROM %s
		WHERE email = $1
	`, table)

	identity := &domain.Identity{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.FirstName,
		&identity.LastName,
		&identity.Address,
		&identity.Newsletter,
		&identity.Active,
		&identity.ProfilePic.Key,
		&identity.ProfilePic.Filename,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to find identity in %s: %w", table, err)
	}

	return identity, nil
}

// FindArtisanByEmail retrieves a full artisan record using parameterized queries
func (r *identityRepository) FindArtisanByEmail(ctx context.Context, email string) (*domain.Artisan, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, address,
		       newsletter, is_active, profile_pic_key, profile_pic_name,
		       craft_type, skills, bank_info, shop_name, shop_description,
		       products_count, total_sales, rating, is_verified,
		       created_at, updated_at
		FROM artisans
		WHERE email = $1
	`

	artisan := &domain.Artisan{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&artisan.ID,
		&artisan.Email,
		&artisan.PasswordHash,
		&artisan.FirstName,
		&artisan.LastName,
		&artisan.Address,
		&artisan.Newsletter,
		&artisan.Active,
		&artisan.ProfilePic.Key,
		&artisan.ProfilePic.Filename,
		&artisan.CraftType,
		&artisan.Skills,
		&artisan.BankInfo,
		&artisan.ShopName,
		&artisan.ShopDescription,
		&artisan.ProductsCount,
		&artisan.TotalSales,
		&artisan.Rating,
		&artisan.Verified,
		&artisan.CreatedAt,
		&artisan.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to find artisan by email: %w", err)
	}

	return artisan, nil
}

// FindBuyerByEmail retrieves a full buyer record using parameterized queries
func (r *identityRepository) FindBuyerByEmail(ctx context.Context, email string) (*domain.Buyer, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, address,
		       newsletter, is_active, profile_pic_key, profile_pic_name,
		       wishlist, order_history, shipping_addresses, payment_methods,
		       created_at, updated_at
		FROM buyers
		WHERE email = $1
	`

	buyer := &domain.Buyer{}
	var wishlist, orderHistory, shippingAddresses, paymentMethods []byte
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&buyer.ID,
		&buyer.Email,
		&buyer.PasswordHash,
		&buyer.FirstName,
		&buyer.LastName,
		&buyer.Address,
		&buyer.Newsletter,
		&buyer.Active,
		&buyer.ProfilePic.Key,
		&buyer.ProfilePic.Filename,
		&wishlist,
		&orderHistory,
		&shippingAddresses,
		&paymentMethods,
		&buyer.CreatedAt,
		&buyer.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to find buyer by email: %w", err)
	}

	for _, column := range []struct {
		raw  []byte
		dest *[]string
	}{
		{wishlist, &buyer.Wishlist},
		{orderHistory, &buyer.OrderHistory},
		{shippingAddresses, &buyer.ShippingAddresses},
		{paymentMethods, &buyer.PaymentMethods},
	} {
		if err := json.Unmarshal(column.raw, column.dest); err != nil {
			return nil, fmt.Errorf("failed to unmarshal buyer list field: %w", err)
		}
	}

	return buyer, nil
}

// UpdateArtisan applies a partial profile update and stamps updated_at.
func (r *identityRepository) UpdateArtisan(ctx context.Context, email string, patch ArtisanPatch) error {
	sets := []string{"updated_at = $2"}
	args := []any{email, time.Now()}

	add := func(column string, value *string) {
		if value != nil {
			args = append(args, *value)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		}
	}
	add("skills", patch.Skills)
	add("bank_info", patch.BankInfo)
	add("shop_name", patch.ShopName)
	add("shop_description", patch.ShopDescription)

	query := fmt.Sprintf("UPDATE artisans SET %s WHERE email = $1", strings.Join(sets, ", "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update artisan: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrIdentityNotFound
	}

	return nil
}

// IncrementProductCount bumps the artisan's catalog counter and stamps updated_at.
func (r *identityRepository) IncrementProductCount(ctx context.Context, email string) error {
	query := `
		UPDATE artisans
		SET products_count = products_count + 1, updated_at = $2
		WHERE email = $1
	`

	result, err := r.db.ExecContext(ctx, query, email, time.Now())
	if err != nil {
		return fmt.Errorf("failed to increment product count: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrIdentityNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func emptyIfNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
