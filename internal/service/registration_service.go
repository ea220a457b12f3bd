package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"artisan-market/internal/apperror"
	"artisan-market/internal/domain"
	"artisan-market/internal/repository"
	"artisan-market/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10
)

// Upload is an uploaded file: display name plus content stream.
type Upload struct {
	Filename string
	Content  io.Reader
}

// BlobSaver persists an upload and returns its opaque reference.
type BlobSaver interface {
	Save(ctx context.Context, filename string, content io.Reader) (domain.BlobRef, error)
}

// SessionClaims are the JWT claims carried by an authenticated session.
type SessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// BeginRegistrationInput carries the step-1 form fields. The profile
// picture is mandatory: signup is rejected without one.
type BeginRegistrationInput struct {
	FirstName  string
	LastName   string
	Email      string
	Password   string
	Role       string
	CraftType  string
	Address    string
	Newsletter bool
	ProfilePic *Upload
}

// BeginRegistrationResult is the outcome of step 1. The buyer path
// completes immediately; the artisan path hands back a signup token for
// step 2.
type BeginRegistrationResult struct {
	Completed    bool
	SessionToken string
	Buyer        *domain.Buyer
	SignupToken  string
}

// CompleteArtisanInput carries the step-2 form fields merged into the
// pending registration.
type CompleteArtisanInput struct {
	Address  string
	Skills   string
	BankInfo string
}

// RegistrationService drives the two-step signup handshake and
// authentication against the shared identity namespace.
type RegistrationService interface {
	Begin(ctx context.Context, input BeginRegistrationInput) (*BeginRegistrationResult, error)
	CompleteArtisan(ctx context.Context, signupToken string, input CompleteArtisanInput) (*domain.Artisan, string, error)
	Authenticate(ctx context.Context, email, password string) (*domain.Identity, domain.Variant, string, error)
	ArtisanProfile(ctx context.Context, email string) (*domain.Artisan, error)
	BuyerProfile(ctx context.Context, email string) (*domain.Buyer, error)
}

type registrationService struct {
	identities    repository.IdentityRepository
	pending       *session.PendingStore
	blobs         BlobSaver
	jwtSecret     string
	sessionExpiry time.Duration
}

// NewRegistrationService creates a new instance of RegistrationService
func NewRegistrationService(
	identities repository.IdentityRepository,
	pending *session.PendingStore,
	blobs BlobSaver,
	jwtSecret string,
	sessionExpiry time.Duration,
) RegistrationService {
	return &registrationService{
		identities:    identities,
		pending:       pending,
		blobs:         blobs,
		jwtSecret:     jwtSecret,
		sessionExpiry: sessionExpiry,
	}
}

// Begin validates the step-1 submission, stores the profile picture and
// either promotes the registration to a durable buyer record or parks it
// as a pending artisan registration for step 2.
func (s *registrationService) Begin(ctx context.Context, input BeginRegistrationInput) (*BeginRegistrationResult, error) {
	if err := validateBegin(input); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	// Pre-check across both record sets. The per-table unique index closes
	// the remaining race window at insert time.
	_, _, err := s.identities.FindByEmail(ctx, email)
	if err == nil {
		return nil, apperror.Conflict("email already registered")
	}
	if !errors.Is(err, repository.ErrIdentityNotFound) {
		return nil, fmt.Errorf("failed to check existing identity: %w", err)
	}

	if input.ProfilePic == nil {
		return nil, apperror.Validation("profile_pic", "missing file")
	}

	picRef, err := s.blobs.Save(ctx, input.ProfilePic.Filename, input.ProfilePic.Content)
	if err != nil {
		return nil, err
	}

	passwordHash, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	pending := &domain.PendingRegistration{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         domain.Variant(input.Role),
		CraftType:    input.CraftType,
		Address:      input.Address,
		Newsletter:   input.Newsletter,
		ProfilePic:   picRef,
		CreatedAt:    time.Now(),
	}

	if pending.Role == domain.VariantArtisan {
		token, err := s.pending.Put(ctx, pending)
		if err != nil {
			return nil, fmt.Errorf("failed to store pending registration: %w", err)
		}
		return &BeginRegistrationResult{SignupToken: token}, nil
	}

	// Buyer path: no step 2, promote immediately.
	buyer := newBuyer(pending)
	if err := s.identities.CreateBuyer(ctx, buyer); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperror.Conflict("email already registered")
		}
		return nil, fmt.Errorf("failed to create buyer: %w", err)
	}

	sessionToken, err := s.issueSession(buyer.Email, domain.VariantBuyer)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	return &BeginRegistrationResult{
		Completed:    true,
		SessionToken: sessionToken,
		Buyer:        buyer,
	}, nil
}

// CompleteArtisan merges the step-2 fields into the pending registration,
// creates the durable artisan record and invalidates the pending state.
func (s *registrationService) CompleteArtisan(ctx context.Context, signupToken string, input CompleteArtisanInput) (*domain.Artisan, string, error) {
	if signupToken == "" {
		return nil, "", apperror.State("start registration at step 1")
	}

	pending, err := s.pending.Get(ctx, signupToken)
	if err != nil {
		if errors.Is(err, session.ErrNoPending) {
			return nil, "", apperror.State("start registration at step 1")
		}
		return nil, "", fmt.Errorf("failed to load pending registration: %w", err)
	}

	if strings.TrimSpace(input.Skills) == "" {
		return nil, "", apperror.Validation("skills", "skills are required")
	}

	artisan := newArtisan(pending, input)
	if err := s.identities.CreateArtisan(ctx, artisan); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, "", apperror.Conflict("email already registered")
		}
		return nil, "", fmt.Errorf("failed to create artisan: %w", err)
	}

	// The pending registration must not survive completion.
	if err := s.pending.Delete(ctx, signupToken); err != nil {
		return nil, "", fmt.Errorf("failed to discard pending registration: %w", err)
	}

	sessionToken, err := s.issueSession(artisan.Email, domain.VariantArtisan)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session: %w", err)
	}

	return artisan, sessionToken, nil
}

// Authenticate verifies the credential against the stored bcrypt hash and
// issues a session. The error is identical for unknown emails and wrong
// passwords so accounts cannot be enumerated.
func (s *registrationService) Authenticate(ctx context.Context, email, password string) (*domain.Identity, domain.Variant, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	identity, variant, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return nil, "", "", apperror.Auth()
		}
		return nil, "", "", fmt.Errorf("failed to find identity: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, "", "", apperror.Auth()
	}

	sessionToken, err := s.issueSession(identity.Email, variant)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to issue session: %w", err)
	}

	return identity, variant, sessionToken, nil
}

// ArtisanProfile loads a full artisan record for the dashboard.
func (s *registrationService) ArtisanProfile(ctx context.Context, email string) (*domain.Artisan, error) {
	artisan, err := s.identities.FindArtisanByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return nil, apperror.NotFound("artisan")
		}
		return nil, fmt.Errorf("failed to load artisan profile: %w", err)
	}
	return artisan, nil
}

// BuyerProfile loads a full buyer record for the dashboard.
func (s *registrationService) BuyerProfile(ctx context.Context, email string) (*domain.Buyer, error) {
	buyer, err := s.identities.FindBuyerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return nil, apperror.NotFound("buyer")
		}
		return nil, fmt.Errorf("failed to load buyer profile: %w", err)
	}
	return buyer, nil
}

func validateBegin(input BeginRegistrationInput) error {
	required := []struct {
		field, value, message string
	}{
		{"firstName", input.FirstName, "first name is required"},
		{"lastName", input.LastName, "last name is required"},
		{"email", input.Email, "email is required"},
		{"password", input.Password, "password is required"},
		{"userType", input.Role, "account type is required"},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return apperror.Validation(f.field, f.message)
		}
	}

	switch domain.Variant(input.Role) {
	case domain.VariantArtisan:
		if strings.TrimSpace(input.CraftType) == "" {
			return apperror.Validation("craftType", "please select your craft specialty")
		}
	case domain.VariantBuyer:
		// No extra step-1 fields.
	default:
		return apperror.Validation("userType", "unknown account type")
	}

	return nil
}

func newBuyer(pending *domain.PendingRegistration) *domain.Buyer {
	now := time.Now()
	return &domain.Buyer{
		Identity: domain.Identity{
			ID:           uuid.New(),
			Email:        pending.Email,
			PasswordHash: pending.PasswordHash,
			FirstName:    pending.FirstName,
			LastName:     pending.LastName,
			Address:      pending.Address,
			Newsletter:   pending.Newsletter,
			Active:       true,
			ProfilePic:   pending.ProfilePic,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Wishlist:          []string{},
		OrderHistory:      []string{},
		ShippingAddresses: []string{},
		PaymentMethods:    []string{},
	}
}

func newArtisan(pending *domain.PendingRegistration, input CompleteArtisanInput) *domain.Artisan {
	now := time.Now()

	address := pending.Address
	if strings.TrimSpace(input.Address) != "" {
		address = input.Address
	}

	return &domain.Artisan{
		Identity: domain.Identity{
			ID:           uuid.New(),
			Email:        pending.Email,
			PasswordHash: pending.PasswordHash,
			FirstName:    pending.FirstName,
			LastName:     pending.LastName,
			Address:      address,
			Newsletter:   pending.Newsletter,
			Active:       true,
			ProfilePic:   pending.ProfilePic,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		CraftType: pending.CraftType,
		Skills:    input.Skills,
		BankInfo:  input.BankInfo,
	}
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *registrationService) issueSession(email string, variant domain.Variant) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		Email: email,
		Role:  string(variant),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
