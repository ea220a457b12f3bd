package transport

import (
	"errors"
	"net/http"
	"strconv"

	"artisan-market/internal/middleware"
	"artisan-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductListResponse is a catalog page
type ProductListResponse struct {
	Products interface{} `json:"products"`
	Total    int         `json:"total"`
	Limit    int         `json:"limit"`
	Offset   int         `json:"offset"`
}

// ProductHandler handles catalog listing, detail and upload requests
type ProductHandler struct {
	products service.ProductService
	logger   *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

// RegisterRoutes registers all catalog routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, sessionMiddleware, artisanOnly func(http.Handler) http.Handler) {
	r.Get("/products", h.List)
	r.Get("/product/{productID}", h.Detail)
	r.Post("/product/{productID}", h.Order)

	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware)
		r.Use(artisanOnly)
		r.Get("/upload_product", h.UploadForm)
		r.Post("/upload_product", h.Upload)
	})
}

// List returns a page of the catalog in insertion order
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	page, err := h.products.List(r.Context(), limit, offset)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products: page.Products,
		Total:    page.Total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
}

// Detail returns a single product by its stable identifier
func (h *ProductHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Order is the order placement stub; payment is not implemented
func (h *ProductHandler) Order(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	// Confirm the product exists before acknowledging the order.
	if _, err := h.products.Get(r.Context(), id); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Order placed! Payment flow to be implemented.",
	})
}

// UploadForm describes the upload form for API clients
func (h *ProductHandler) UploadForm(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"fields": []string{
			"product_name", "price", "product_img", "product_3dfile",
			"color_options", "material_options", "design_options",
		},
	})
}

// Upload creates a product from a multipart form submission
func (h *ProductHandler) Upload(w http.ResponseWriter, r *http.Request) {
	artisanEmail, ok := middleware.GetUserEmail(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.logger.Debug("Upload form parse failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	price, err := strconv.ParseFloat(r.FormValue("price"), 64)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid price")
		return
	}

	input := service.CreateProductInput{
		Name:         r.FormValue("product_name"),
		Price:        price,
		ArtisanEmail: artisanEmail,
		Color:        r.FormValue("color_options"),
		Material:     r.FormValue("material_options"),
		Design:       r.FormValue("design_options"),
	}

	imgFile, imgHeader, err := r.FormFile("product_img")
	if err == nil {
		defer imgFile.Close()
		input.Image = &service.Upload{Filename: imgHeader.Filename, Content: imgFile}
	} else if !errors.Is(err, http.ErrMissingFile) {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid file upload")
		return
	}

	modelFile, modelHeader, err := r.FormFile("product_3dfile")
	if err == nil {
		defer modelFile.Close()
		input.Model = &service.Upload{Filename: modelHeader.Filename, Content: modelFile}
	} else if !errors.Is(err, http.ErrMissingFile) {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid file upload")
		return
	}

	product, err := h.products.Create(r.Context(), input)
	if err != nil {
		h.logger.Debug("Product creation failed", zap.Error(err))
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("artisan_email", artisanEmail),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}
