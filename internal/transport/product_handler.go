package transport

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"spyshop-admin/internal/domain"
	"spyshop-admin/internal/middleware"
	"spyshop-admin/internal/repository"
	"spyshop-admin/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxUploadSize bounds in-memory buffering of multipart uploads (10 MiB).
const maxUploadSize = 10 << 20

const productsListPath = "/api/admin/products"

// ProductForm carries the submitted create/edit form fields. Price travels as
// a string so the submitted text survives re-rendering even when malformed.
type ProductForm struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Price       string `json:"price" validate:"required"`
	SortNumber  int    `json:"sort_number"`
	CategoryID  int64  `json:"category_id" validate:"required"`
	PhotoURL    string `json:"photo_url"`
}

// CategoryChoice is one selectable category in a form response
type CategoryChoice struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProductFormResponse re-renders a form: the submitted values, any field
// errors, and a freshly queried list of selectable categories.
type ProductFormResponse struct {
	Form                ProductForm                  `json:"form"`
	Errors              []middleware.ValidationError `json:"errors,omitempty"`
	AvailableCategories []CategoryChoice             `json:"available_categories"`
}

// ProductSummary is one row of the list view
type ProductSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PhotoURL   string `json:"photo_url"`
	Price      string `json:"price"`
	SortNumber int    `json:"sort_number"`
	CategoryID int64  `json:"category_id"`
}

// ProductDetails is the read-only single-entity view including the category name
type ProductDetails struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	PhotoURL     string `json:"photo_url"`
	Price        string `json:"price"`
	SortNumber   int    `json:"sort_number"`
	CategoryName string `json:"category_name"`
}

// ProductHandler handles HTTP requests for the admin product workflow
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers the admin catalog routes. All routes require an
// authenticated admin; mutating routes are additionally rate limited.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware, rateLimitMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(adminMiddleware)

		r.Get("/categories", h.ListCategories)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.List)
			r.Get("/new", h.CreateForm)
			r.Get("/{id}", h.Details)
			r.Get("/{id}/edit", h.EditForm)
			r.Get("/{id}/delete", h.DeleteConfirm)

			r.Group(func(r chi.Router) {
				r.Use(rateLimitMiddleware)
				r.Post("/", h.Create)
				r.Post("/{id}", h.Edit)
				r.Post("/{id}/delete", h.Delete)
			})
		})
	})
}

// List returns all products ordered by sort number, then name
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	summaries := make([]ProductSummary, 0, len(products))
	for _, p := range products {
		summaries = append(summaries, ProductSummary{
			ID:         p.ID,
			Name:       p.Name,
			PhotoURL:   p.PhotoURL,
			Price:      p.Price.StringFixed(2),
			SortNumber: p.SortNumber,
			CategoryID: p.CategoryID,
		})
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"products": summaries})
}

// Details returns a single product projected for display
func (h *ProductHandler) Details(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		h.respondProductError(w, err, "failed to load product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, toDetails(product))
}

// ListCategories returns the selectable categories ordered by name
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	choices, err := h.categoryChoices(r)
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"categories": choices})
}

// CreateForm returns an empty form with a zero price and the category choices
func (h *ProductHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	choices, err := h.categoryChoices(r)
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load form")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductFormResponse{
		Form:                ProductForm{Price: "0"},
		AvailableCategories: choices,
	})
}

// Create handles a create form submission
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, upload, fieldErrors, err := h.decodeForm(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(fieldErrors) > 0 {
		h.renderForm(w, r, form, fieldErrors)
		return
	}

	input := form.toInput(upload)
	if _, err := h.productService.Create(r.Context(), input); err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			h.renderForm(w, r, form, []middleware.ValidationError{categoryFieldError()})
			return
		}
		h.logger.Error("Failed to create product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	http.Redirect(w, r, productsListPath, http.StatusSeeOther)
}

// EditForm returns the form pre-populated from an existing product
func (h *ProductHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		h.respondProductError(w, err, "failed to load product")
		return
	}

	choices, err := h.categoryChoices(r)
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load form")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductFormResponse{
		Form: ProductForm{
			ID:          product.ID,
			Name:        product.Name,
			Description: product.Description,
			Price:       product.Price.StringFixed(2),
			SortNumber:  product.SortNumber,
			CategoryID:  product.CategoryID,
			PhotoURL:    product.PhotoURL,
		},
		AvailableCategories: choices,
	})
}

// Edit handles an edit form submission. A path/body id mismatch is treated
// as not-found, never as a different update target.
func (h *ProductHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	form, upload, fieldErrors, err := h.decodeForm(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if form.ID != id {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}

	if len(fieldErrors) > 0 {
		h.renderForm(w, r, form, fieldErrors)
		return
	}

	input := form.toInput(upload)
	if _, err := h.productService.Update(r.Context(), id, input); err != nil {
		switch {
		case errors.Is(err, service.ErrCategoryNotFound):
			h.renderForm(w, r, form, []middleware.ValidationError{categoryFieldError()})
		case errors.Is(err, repository.ErrProductNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		case errors.Is(err, repository.ErrProductConflict):
			// Unrecoverable: the row changed under us and still exists.
			h.logger.Error("Concurrency conflict updating product", zap.Int64("product_id", id))
			middleware.RespondWithError(w, http.StatusInternalServerError, "product was modified concurrently")
		default:
			h.logger.Error("Failed to update product", zap.Int64("product_id", id), zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to update product")
		}
		return
	}

	http.Redirect(w, r, productsListPath, http.StatusSeeOther)
}

// DeleteConfirm renders the same projection as Details for confirmation
func (h *ProductHandler) DeleteConfirm(w http.ResponseWriter, r *http.Request) {
	h.Details(w, r)
}

// Delete removes the product and its stored photo, then redirects to the list
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		h.respondProductError(w, err, "failed to delete product")
		return
	}

	http.Redirect(w, r, productsListPath, http.StatusSeeOther)
}

func (h *ProductHandler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return 0, false
	}
	return id, true
}

func (h *ProductHandler) respondProductError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, repository.ErrProductNotFound) {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return
	}
	h.logger.Error(message, zap.Error(err))
	middleware.RespondWithError(w, http.StatusInternalServerError, message)
}

// decodeForm reads a product form from a multipart or urlencoded body.
// Returned field errors are recoverable (the form re-renders with them); the
// error return means the body itself could not be read.
func (h *ProductHandler) decodeForm(r *http.Request) (ProductForm, *service.ImageUpload, []middleware.ValidationError, error) {
	var form ProductForm
	var upload *service.ImageUpload
	var fieldErrors []middleware.ValidationError

	contentType := r.Header.Get("Content-Type")
	isMultipart := strings.HasPrefix(contentType, "multipart/form-data")

	if isMultipart {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return form, nil, nil, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return form, nil, nil, err
		}
	}

	form.Name = r.FormValue("name")
	form.Description = r.FormValue("description")
	form.Price = r.FormValue("price")
	form.PhotoURL = r.FormValue("photo_url")

	if v := r.FormValue("id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fieldErrors = append(fieldErrors, middleware.ValidationError{Field: "id", Message: "Invalid value"})
		} else {
			form.ID = id
		}
	}
	if v := r.FormValue("sort_number"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fieldErrors = append(fieldErrors, middleware.ValidationError{Field: "sort_number", Message: "Invalid value"})
		} else {
			form.SortNumber = n
		}
	}
	if v := r.FormValue("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fieldErrors = append(fieldErrors, middleware.ValidationError{Field: "category_id", Message: "Invalid value"})
		} else {
			form.CategoryID = id
		}
	}

	if err := middleware.ValidateRequest(form); err != nil {
		fieldErrors = append(fieldErrors, middleware.FormatValidationErrors(err)...)
	}

	if form.Price != "" {
		if _, err := decimal.NewFromString(form.Price); err != nil {
			fieldErrors = append(fieldErrors, middleware.ValidationError{Field: "price", Message: "Invalid value"})
		}
	}

	if isMultipart {
		file, header, err := r.FormFile("image")
		switch {
		case err == nil:
			upload = &service.ImageUpload{Content: file, Filename: header.Filename}
		case errors.Is(err, http.ErrMissingFile):
			// No upload; the photo stays as submitted.
		default:
			return form, nil, nil, err
		}
	}

	return form, upload, fieldErrors, nil
}

// renderForm re-renders the submitted form with field errors. Category
// choices are re-queried on every render so a newly added category is never
// missing from the list. This is an HTTP-level success, not a failure.
func (h *ProductHandler) renderForm(w http.ResponseWriter, r *http.Request, form ProductForm, fieldErrors []middleware.ValidationError) {
	choices, err := h.categoryChoices(r)
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to load form")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductFormResponse{
		Form:                form,
		Errors:              fieldErrors,
		AvailableCategories: choices,
	})
}

func (h *ProductHandler) categoryChoices(r *http.Request) ([]CategoryChoice, error) {
	categories, err := h.productService.Categories(r.Context())
	if err != nil {
		return nil, err
	}

	choices := make([]CategoryChoice, 0, len(categories))
	for _, c := range categories {
		choices = append(choices, CategoryChoice{ID: c.ID, Name: c.Name})
	}
	return choices, nil
}

func (f ProductForm) toInput(upload *service.ImageUpload) service.ProductInput {
	price, _ := decimal.NewFromString(f.Price)
	return service.ProductInput{
		Name:        f.Name,
		Description: f.Description,
		Price:       price,
		SortNumber:  f.SortNumber,
		CategoryID:  f.CategoryID,
		PhotoURL:    f.PhotoURL,
		Image:       upload,
	}
}

func categoryFieldError() middleware.ValidationError {
	return middleware.ValidationError{Field: "category_id", Message: "This category doesn't exist"}
}

func toDetails(product *domain.Product) ProductDetails {
	details := ProductDetails{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		PhotoURL:    product.PhotoURL,
		Price:       product.Price.StringFixed(2),
		SortNumber:  product.SortNumber,
	}
	if product.Category != nil {
		details.CategoryName = product.Category.Name
	}
	return details
}
