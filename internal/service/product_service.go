package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"artisan-market/internal/apperror"
	"artisan-market/internal/domain"
	"artisan-market/internal/narrative"
	"artisan-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize bounds catalog listings when no limit is given.
	DefaultPageSize = 20
	// MaxPageSize caps catalog listings.
	MaxPageSize = 100
)

var (
	allowedImageExts = []string{"png", "jpg", "jpeg", "gif"}
	allowedModelExts = []string{"glb", "gltf", "obj", "stl"}
)

// CreateProductInput carries the product upload form fields. Image and 3D
// model are both mandatory.
type CreateProductInput struct {
	Name         string
	Price        float64
	ArtisanEmail string
	Image        *Upload
	Model        *Upload
	Color        string
	Material     string
	Design       string
}

// ProductPage is one catalog listing page. Limit and Offset are the
// effective values after clamping, so callers echo them as applied.
type ProductPage struct {
	Products []*domain.Product
	Total    int
	Limit    int
	Offset   int
}

// ProductService defines the catalog business logic.
type ProductService interface {
	Create(ctx context.Context, input CreateProductInput) (*domain.Product, error)
	List(ctx context.Context, limit, offset int) (*ProductPage, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetByOrdinal(ctx context.Context, n int) (*domain.Product, error)
}

type productService struct {
	products   repository.ProductRepository
	identities repository.IdentityRepository
	blobs      BlobSaver
	stories    narrative.Generator
	logger     *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	products repository.ProductRepository,
	identities repository.IdentityRepository,
	blobs BlobSaver,
	stories narrative.Generator,
	logger *zap.Logger,
) ProductService {
	return &productService{
		products:   products,
		identities: identities,
		blobs:      blobs,
		stories:    stories,
		logger:     logger,
	}
}

// Create validates the uploads, stores both blobs, attaches a generated
// story and inserts the product. Story generation is best-effort: on
// failure the product is created with an empty story and a warning is
// logged.
func (s *productService) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperror.Validation("product_name", "product name is required")
	}
	if input.Price <= 0 {
		return nil, apperror.Validation("price", "price must be positive")
	}
	if input.Image == nil {
		return nil, apperror.Validation("product_img", "missing file")
	}
	if input.Model == nil {
		return nil, apperror.Validation("product_3dfile", "missing file")
	}
	if !extensionAllowed(input.Image.Filename, allowedImageExts) {
		return nil, apperror.Validation("product_img",
			fmt.Sprintf("invalid image type. allowed: %s", strings.Join(allowedImageExts, ", ")))
	}
	if !extensionAllowed(input.Model.Filename, allowedModelExts) {
		return nil, apperror.Validation("product_3dfile",
			fmt.Sprintf("invalid 3D model type. allowed: %s", strings.Join(allowedModelExts, ", ")))
	}

	imageRef, err := s.blobs.Save(ctx, input.Image.Filename, input.Image.Content)
	if err != nil {
		return nil, err
	}
	modelRef, err := s.blobs.Save(ctx, input.Model.Filename, input.Model.Content)
	if err != nil {
		return nil, err
	}

	// Story generation is a non-fatal dependency of product creation.
	story, err := s.stories.Generate(ctx, input.Name)
	if err != nil {
		s.logger.Warn("Story generation failed, creating product without story",
			zap.String("product_name", input.Name),
			zap.Error(err),
		)
		story = ""
	}

	product := &domain.Product{
		ID:           uuid.New(),
		Name:         input.Name,
		Price:        input.Price,
		ArtisanEmail: input.ArtisanEmail,
		Image:        imageRef,
		Model:        modelRef,
		Story:        story,
		Customization: domain.Customization{
			Color:    input.Color,
			Material: input.Material,
			Design:   input.Design,
		},
		CreatedAt: time.Now(),
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	// Counter drift is tolerable; the product itself is already durable.
	if err := s.identities.IncrementProductCount(ctx, input.ArtisanEmail); err != nil {
		s.logger.Warn("Failed to increment artisan product count",
			zap.String("artisan_email", input.ArtisanEmail),
			zap.Error(err),
		)
	}

	return product, nil
}

// List returns a catalog page in insertion order plus the total count.
func (s *productService) List(ctx context.Context, limit, offset int) (*ProductPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	products, total, err := s.products.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return &ProductPage{Products: products, Total: total, Limit: limit, Offset: offset}, nil
}

// Get retrieves a product by its stable identifier.
func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, apperror.NotFound("product")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// GetByOrdinal retrieves the product at insertion position n.
func (s *productService) GetByOrdinal(ctx context.Context, n int) (*domain.Product, error) {
	product, err := s.products.ByOrdinal(ctx, n)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, apperror.NotFound("product")
		}
		return nil, fmt.Errorf("failed to get product by position: %w", err)
	}
	return product, nil
}

// extensionAllowed checks the substring after the final '.'
// case-insensitively against an allow-list.
func extensionAllowed(filename string, allowed []string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return false
	}
	ext := strings.ToLower(filename[idx+1:])
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
