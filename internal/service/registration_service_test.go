package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"artisan-market/internal/apperror"
	"artisan-market/internal/domain"
	"artisan-market/internal/repository"
	"artisan-market/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Mock repositories for testing
type mockIdentityRepository struct {
	artisans map[string]*domain.Artisan
	buyers   map[string]*domain.Buyer
}

func newMockIdentityRepository() *mockIdentityRepository {
	return &mockIdentityRepository{
		artisans: make(map[string]*domain.Artisan),
		buyers:   make(map[string]*domain.Buyer),
	}
}

// emailTaken mirrors the store's shared claims table: one namespace
// across both variants.
func (m *mockIdentityRepository) emailTaken(email string) bool {
	_, isArtisan := m.artisans[email]
	_, isBuyer := m.buyers[email]
	return isArtisan || isBuyer
}

func (m *mockIdentityRepository) CreateArtisan(ctx context.Context, artisan *domain.Artisan) error {
	if m.emailTaken(artisan.Email) {
		return repository.ErrEmailTaken
	}
	m.artisans[artisan.Email] = artisan
	return nil
}

func (m *mockIdentityRepository) CreateBuyer(ctx context.Context, buyer *domain.Buyer) error {
	if m.emailTaken(buyer.Email) {
		return repository.ErrEmailTaken
	}
	m.buyers[buyer.Email] = buyer
	return nil
}

func (m *mockIdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, domain.Variant, error) {
	if artisan, exists := m.artisans[email]; exists {
		return &artisan.Identity, domain.VariantArtisan, nil
	}
	if buyer, exists := m.buyers[email]; exists {
		return &buyer.Identity, domain.VariantBuyer, nil
	}
	return nil, "", repository.ErrIdentityNotFound
}

func (m *mockIdentityRepository) FindArtisanByEmail(ctx context.Context, email string) (*domain.Artisan, error) {
	artisan, exists := m.artisans[email]
	if !exists {
		return nil, repository.ErrIdentityNotFound
	}
	return artisan, nil
}

func (m *mockIdentityRepository) FindBuyerByEmail(ctx context.Context, email string) (*domain.Buyer, error) {
	buyer, exists := m.buyers[email]
	if !exists {
		return nil, repository.ErrIdentityNotFound
	}
	return buyer, nil
}

func (m *mockIdentityRepository) UpdateArtisan(ctx context.Context, email string, patch repository.ArtisanPatch) error {
	artisan, exists := m.artisans[email]
	if !exists {
		return repository.ErrIdentityNotFound
	}
	if patch.Skills != nil {
		artisan.Skills = *patch.Skills
	}
	if patch.BankInfo != nil {
		artisan.BankInfo = *patch.BankInfo
	}
	if patch.ShopName != nil {
		artisan.ShopName = *patch.ShopName
	}
	if patch.ShopDescription != nil {
		artisan.ShopDescription = *patch.ShopDescription
	}
	return nil
}

func (m *mockIdentityRepository) IncrementProductCount(ctx context.Context, email string) error {
	artisan, exists := m.artisans[email]
	if !exists {
		return repository.ErrIdentityNotFound
	}
	artisan.ProductsCount++
	return nil
}

type fakeBlobSaver struct {
	saves []string
}

func (f *fakeBlobSaver) Save(ctx context.Context, filename string, content io.Reader) (domain.BlobRef, error) {
	if _, err := io.Copy(io.Discard, content); err != nil {
		return domain.BlobRef{}, err
	}
	f.saves = append(f.saves, filename)
	return domain.BlobRef{Key: "uploads/test/" + filename, Filename: filename}, nil
}

func newTestRegistrationService(t *testing.T) (RegistrationService, *mockIdentityRepository, *session.PendingStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	identities := newMockIdentityRepository()
	pending := session.NewPendingStore(redisClient, 30*time.Minute)
	svc := NewRegistrationService(identities, pending, &fakeBlobSaver{}, "test-secret", 24*time.Hour)

	return svc, identities, pending, mr
}

func buyerInput(email string) BeginRegistrationInput {
	return BeginRegistrationInput{
		FirstName:  "Jane",
		LastName:   "Doe",
		Email:      email,
		Password:   "Sturdy-Pass1",
		Role:       "buyer",
		Address:    "12 Market Lane",
		Newsletter: true,
		ProfilePic: &Upload{Filename: "me.png", Content: strings.NewReader("fake image bytes")},
	}
}

func artisanInput(email string) BeginRegistrationInput {
	input := buyerInput(email)
	input.Role = "artisan"
	input.CraftType = "pottery"
	return input
}

func TestBegin_BuyerCompletesImmediately(t *testing.T) {
	svc, identities, _, mr := newTestRegistrationService(t)
	ctx := context.Background()

	result, err := svc.Begin(ctx, buyerInput("Jane@Example.com"))
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if !result.Completed {
		t.Fatal("buyer registration should complete in one step")
	}
	if result.SessionToken == "" {
		t.Error("expected a session token")
	}
	if result.SignupToken != "" {
		t.Error("buyer path must not hand out a signup token")
	}

	buyer, exists := identities.buyers["jane@example.com"]
	if !exists {
		t.Fatal("buyer record not created under lowercased email")
	}
	if buyer.PasswordHash == "Sturdy-Pass1" {
		t.Error("password stored as plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(buyer.PasswordHash), []byte("Sturdy-Pass1")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
	if !buyer.Active {
		t.Error("new buyer should be active")
	}
	if buyer.Wishlist == nil || buyer.OrderHistory == nil || buyer.ShippingAddresses == nil || buyer.PaymentMethods == nil {
		t.Error("buyer list fields must be empty, not nil")
	}
	if buyer.ProfilePic.Key == "" {
		t.Error("profile picture reference missing")
	}

	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("buyer path must leave no pending state, found keys: %v", keys)
	}
}

func TestBegin_ArtisanParksPendingRegistration(t *testing.T) {
	svc, identities, pending, _ := newTestRegistrationService(t)
	ctx := context.Background()

	result, err := svc.Begin(ctx, artisanInput("potter@example.com"))
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if result.Completed {
		t.Fatal("artisan registration must not complete at step 1")
	}
	if result.SignupToken == "" {
		t.Fatal("expected a signup token for step 2")
	}
	if result.SessionToken != "" {
		t.Error("no session before step 2 completes")
	}
	if len(identities.artisans) != 0 || len(identities.buyers) != 0 {
		t.Error("no durable record before step 2 completes")
	}

	parked, err := pending.Get(ctx, result.SignupToken)
	if err != nil {
		t.Fatalf("pending registration not retrievable: %v", err)
	}
	if parked.Email != "potter@example.com" || parked.CraftType != "pottery" {
		t.Errorf("pending registration lost step-1 fields: %+v", parked)
	}
	if parked.PasswordHash == "Sturdy-Pass1" {
		t.Error("pending registration holds a plaintext password")
	}
}

func TestBegin_DuplicateEmailRejected(t *testing.T) {
	svc, _, _, _ := newTestRegistrationService(t)
	ctx := context.Background()

	if _, err := svc.Begin(ctx, buyerInput("taken@example.com")); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	// Same email, other variant: the namespace is shared.
	_, err := svc.Begin(ctx, artisanInput("taken@example.com"))
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("expected conflict for duplicate email, got: %v", err)
	}
}

func TestBegin_ProfilePictureRequired(t *testing.T) {
	svc, _, _, _ := newTestRegistrationService(t)

	input := buyerInput("nopic@example.com")
	input.ProfilePic = nil

	_, err := svc.Begin(context.Background(), input)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error, got: %v", err)
	}

	var appErr *apperror.Error
	if !errors.As(err, &appErr) || appErr.Field != "profile_pic" {
		t.Errorf("expected error on profile_pic field, got: %v", err)
	}
}

func TestBegin_ArtisanRequiresCraftType(t *testing.T) {
	svc, _, _, _ := newTestRegistrationService(t)

	input := artisanInput("potter@example.com")
	input.CraftType = "  "

	_, err := svc.Begin(context.Background(), input)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected validation error for missing craft type, got: %v", err)
	}
}

func TestBegin_UnknownRoleRejected(t *testing.T) {
	svc, _, _, _ := newTestRegistrationService(t)

	input := buyerInput("odd@example.com")
	input.Role = "admin"

	_, err := svc.Begin(context.Background(), input)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected validation error for unknown role, got: %v", err)
	}
}

func TestCompleteArtisan_MergesStepsAndConsumesPending(t *testing.T) {
	svc, identities, pending, _ := newTestRegistrationService(t)
	ctx := context.Background()

	input := artisanInput("a@x.com")
	input.CraftType = "pottery"
	result, err := svc.Begin(ctx, input)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	artisan, sessionToken, err := svc.CompleteArtisan(ctx, result.SignupToken, CompleteArtisanInput{
		Address:  "7 Kiln Street",
		Skills:   "wheel-throwing",
		BankInfo: "DE00 1234",
	})
	if err != nil {
		t.Fatalf("CompleteArtisan failed: %v", err)
	}

	if sessionToken == "" {
		t.Error("expected a session token after step 2")
	}
	if artisan.Email != "a@x.com" || artisan.CraftType != "pottery" {
		t.Errorf("step-1 fields lost: %+v", artisan)
	}
	if artisan.Skills != "wheel-throwing" || artisan.BankInfo != "DE00 1234" {
		t.Errorf("step-2 fields lost: %+v", artisan)
	}
	if artisan.Address != "7 Kiln Street" {
		t.Errorf("step-2 address should override step 1, got %q", artisan.Address)
	}
	if artisan.ProductsCount != 0 || artisan.TotalSales != 0 || artisan.Rating != 0 {
		t.Errorf("catalog counters must start at zero: %+v", artisan)
	}
	if _, exists := identities.artisans["a@x.com"]; !exists {
		t.Error("artisan record not created")
	}

	if _, err := pending.Get(ctx, result.SignupToken); !errors.Is(err, session.ErrNoPending) {
		t.Errorf("pending registration must not survive completion, got: %v", err)
	}
}

func TestCompleteArtisan_KeepsStepOneAddressWhenOmitted(t *testing.T) {
	svc, _, _, _ := newTestRegistrationService(t)
	ctx := context.Background()

	result, err := svc.Begin(ctx, artisanInput("potter@example.com"))
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	artisan, _, err := svc.CompleteArtisan(ctx, result.SignupToken, CompleteArtisanInput{
		Skills: "glazing",
	})
	if err != nil {
		t.Fatalf("CompleteArtisan failed: %v", err)
	}
	if artisan.Address != "12 Market Lane" {
		t.Errorf("expected step-1 address to be kept, got %q", artisan.Address)
	}
}

func TestCompleteArtisan_WithoutPendingRegistration(t *testing.T) {
	svc, _, _, _ := newTestRegistrationService(t)
	ctx := context.Background()

	for _, token := range []string{"", "no-such-token"} {
		_, _, err := svc.CompleteArtisan(ctx, token, CompleteArtisanInput{Skills: "weaving"})
		if !errors.Is(err, apperror.ErrState) {
			t.Errorf("token %q: expected out-of-order error, got: %v", token, err)
		}
	}
}

func TestCompleteArtisan_EmailClaimedDuringHandshake(t *testing.T) {
	svc, _, _, _ := newTestRegistrationService(t)
	ctx := context.Background()

	result, err := svc.Begin(ctx, artisanInput("contested@example.com"))
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	// A buyer grabs the email while the artisan handshake is parked. The
	// step-2 insert must surface the store's rejection as a conflict.
	if _, err := svc.Begin(ctx, buyerInput("contested@example.com")); err != nil {
		t.Fatalf("buyer registration failed: %v", err)
	}

	_, _, err = svc.CompleteArtisan(ctx, result.SignupToken, CompleteArtisanInput{Skills: "weaving"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("expected conflict when the email was claimed mid-handshake, got: %v", err)
	}
}

func TestCompleteArtisan_SkillsRequired(t *testing.T) {
	svc, _, pending, _ := newTestRegistrationService(t)
	ctx := context.Background()

	result, err := svc.Begin(ctx, artisanInput("potter@example.com"))
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	_, _, err = svc.CompleteArtisan(ctx, result.SignupToken, CompleteArtisanInput{})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("expected validation error for missing skills, got: %v", err)
	}

	// A failed step 2 must not consume the handshake.
	if _, err := pending.Get(ctx, result.SignupToken); err != nil {
		t.Errorf("pending registration should survive a rejected step 2: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, _, _ := newTestRegistrationService(t)
	ctx := context.Background()

	if _, err := svc.Begin(ctx, buyerInput("jane@example.com")); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	identity, variant, sessionToken, err := svc.Authenticate(ctx, "Jane@Example.com", "Sturdy-Pass1")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if variant != domain.VariantBuyer {
		t.Errorf("expected buyer variant, got %q", variant)
	}
	if identity.Email != "jane@example.com" {
		t.Errorf("unexpected identity email %q", identity.Email)
	}

	// The session token carries email and role claims.
	token, err := jwt.Parse(sessionToken, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("session token does not validate: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["email"] != "jane@example.com" || claims["role"] != "buyer" {
		t.Errorf("unexpected session claims: %v", claims)
	}
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	svc, _, _, _ := newTestRegistrationService(t)
	ctx := context.Background()

	if _, err := svc.Begin(ctx, buyerInput("jane@example.com")); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	_, _, _, wrongPassword := svc.Authenticate(ctx, "jane@example.com", "wrong")
	_, _, _, unknownEmail := svc.Authenticate(ctx, "ghost@example.com", "Sturdy-Pass1")

	if !errors.Is(wrongPassword, apperror.ErrAuth) {
		t.Errorf("wrong password: expected auth error, got: %v", wrongPassword)
	}
	if !errors.Is(unknownEmail, apperror.ErrAuth) {
		t.Errorf("unknown email: expected auth error, got: %v", unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Errorf("auth failures must not reveal which part was wrong: %q vs %q",
			wrongPassword.Error(), unknownEmail.Error())
	}
}

// Property: registration never stores plaintext passwords, in either the
// durable record or the parked pending registration.
func TestProperty_RegistrationNeverStoresPlaintextPasswords(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("stored credentials are bcrypt hashes", prop.ForAll(
		func(local string, password string, asArtisan bool) bool {
			svc, identities, pending, _ := newTestRegistrationService(t)
			ctx := context.Background()

			email := fmt.Sprintf("%s@example.com", local)
			input := buyerInput(email)
			input.Password = password
			if asArtisan {
				input.Role = "artisan"
				input.CraftType = "weaving"
			}

			result, err := svc.Begin(ctx, input)
			if err != nil {
				return true // Skip invalid generated inputs
			}

			var storedHash string
			if asArtisan {
				parked, err := pending.Get(ctx, result.SignupToken)
				if err != nil {
					t.Logf("FAIL: pending registration missing: %v", err)
					return false
				}
				storedHash = parked.PasswordHash
			} else {
				buyer, exists := identities.buyers[email]
				if !exists {
					t.Logf("FAIL: buyer record missing for %s", email)
					return false
				}
				storedHash = buyer.PasswordHash
			}

			if storedHash == password {
				t.Logf("FAIL: plaintext password stored for %s", email)
				return false
			}
			if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)); err != nil {
				t.Logf("FAIL: stored hash is not a valid bcrypt hash: %v", err)
				return false
			}
			return true
		},
		gen.RegexMatch(`[a-z]{3,10}`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
