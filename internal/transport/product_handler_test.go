package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"spyshop-admin/internal/domain"
	"spyshop-admin/internal/repository"
	"spyshop-admin/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubProductService lets each test script the service layer directly
type stubProductService struct {
	products   []*domain.Product
	product    *domain.Product
	categories []*domain.Category

	getErr    error
	createErr error
	updateErr error
	deleteErr error

	createdInput *service.ProductInput
	updatedID    int64
	updatedInput *service.ProductInput
	deletedID    int64
}

func (s *stubProductService) List(ctx context.Context) ([]*domain.Product, error) {
	return s.products, nil
}

func (s *stubProductService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.product, nil
}

func (s *stubProductService) Categories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories, nil
}

func (s *stubProductService) Create(ctx context.Context, input service.ProductInput) (*domain.Product, error) {
	s.createdInput = &input
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.product, nil
}

func (s *stubProductService) Update(ctx context.Context, id int64, input service.ProductInput) (*domain.Product, error) {
	s.updatedID = id
	s.updatedInput = &input
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return s.product, nil
}

func (s *stubProductService) Delete(ctx context.Context, id int64) error {
	s.deletedID = id
	return s.deleteErr
}

func passthrough(next http.Handler) http.Handler { return next }

func newTestRouter(svc service.ProductService) chi.Router {
	logger, _ := zap.NewDevelopment()
	handler := NewProductHandler(svc, logger)

	r := chi.NewRouter()
	handler.RegisterRoutes(r, passthrough, passthrough, passthrough)
	return r
}

func testCategories() []*domain.Category {
	return []*domain.Category{
		{ID: 1, Name: "Audio", CreatedAt: time.Now()},
		{ID: 2, Name: "Cameras", CreatedAt: time.Now()},
	}
}

func testProduct() *domain.Product {
	return &domain.Product{
		ID:          7,
		Name:        "Pen Camera",
		Description: "writes and records",
		PhotoURL:    "abc123pen.png",
		Price:       decimal.NewFromFloat(49.90),
		SortNumber:  2,
		CategoryID:  2,
		Category:    &domain.Category{ID: 2, Name: "Cameras"},
		Version:     1,
	}
}

func postForm(router chi.Router, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func validFormValues() url.Values {
	return url.Values{
		"name":        {"Pen Camera"},
		"description": {"writes and records"},
		"price":       {"49.90"},
		"sort_number": {"2"},
		"category_id": {"2"},
	}
}

func decodeFormResponse(t *testing.T, body io.Reader) ProductFormResponse {
	t.Helper()
	var resp ProductFormResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func TestListProducts(t *testing.T) {
	svc := &stubProductService{products: []*domain.Product{testProduct()}}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/products/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Products []ProductSummary `json:"products"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Products, 1)
	require.Equal(t, "Pen Camera", resp.Products[0].Name)
	require.Equal(t, "49.90", resp.Products[0].Price)
}

func TestProductDetails(t *testing.T) {
	svc := &stubProductService{product: testProduct()}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/products/7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var details ProductDetails
	require.NoError(t, json.NewDecoder(w.Body).Decode(&details))
	require.Equal(t, "Pen Camera", details.Name)
	require.Equal(t, "Cameras", details.CategoryName)
	require.Equal(t, "49.90", details.Price)
}

func TestProductDetailsNotFound(t *testing.T) {
	svc := &stubProductService{getErr: repository.ErrProductNotFound}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/products/999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductDetailsMalformedID(t *testing.T) {
	svc := &stubProductService{product: testProduct()}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/products/not-a-number", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateFormListsCategories(t *testing.T) {
	svc := &stubProductService{categories: testCategories()}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/products/new", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeFormResponse(t, w.Body)
	require.Equal(t, "0", resp.Form.Price)
	require.Empty(t, resp.Errors)
	require.Len(t, resp.AvailableCategories, 2)
	require.Equal(t, "Audio", resp.AvailableCategories[0].Name)
}

func TestCreateProductRedirects(t *testing.T) {
	svc := &stubProductService{product: testProduct(), categories: testCategories()}
	router := newTestRouter(svc)

	w := postForm(router, "/api/admin/products/", validFormValues())

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/api/admin/products", w.Header().Get("Location"))

	require.NotNil(t, svc.createdInput)
	require.Equal(t, "Pen Camera", svc.createdInput.Name)
	require.True(t, svc.createdInput.Price.Equal(decimal.NewFromFloat(49.90)))
	require.Equal(t, int64(2), svc.createdInput.CategoryID)
}

func TestCreateProductValidationErrorsRerenderForm(t *testing.T) {
	svc := &stubProductService{categories: testCategories()}
	router := newTestRouter(svc)

	values := validFormValues()
	values.Set("name", "")

	w := postForm(router, "/api/admin/products/", values)

	// Recoverable: the form comes back with errors, not a failure status
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeFormResponse(t, w.Body)
	require.Empty(t, resp.Form.Name)
	require.Equal(t, "49.90", resp.Form.Price)
	require.Len(t, resp.AvailableCategories, 2)

	var fields []string
	for _, e := range resp.Errors {
		fields = append(fields, e.Field)
	}
	require.Contains(t, fields, "name")

	// Nothing reached the service
	require.Nil(t, svc.createdInput)
}

func TestCreateProductUnknownCategoryRerenderForm(t *testing.T) {
	svc := &stubProductService{categories: testCategories(), createErr: service.ErrCategoryNotFound}
	router := newTestRouter(svc)

	values := validFormValues()
	values.Set("category_id", "99")

	w := postForm(router, "/api/admin/products/", values)

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeFormResponse(t, w.Body)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, "category_id", resp.Errors[0].Field)
	require.Equal(t, "This category doesn't exist", resp.Errors[0].Message)
}

func TestCreateProductInvalidPriceRerenderForm(t *testing.T) {
	svc := &stubProductService{categories: testCategories()}
	router := newTestRouter(svc)

	values := validFormValues()
	values.Set("price", "cheap")

	w := postForm(router, "/api/admin/products/", values)

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeFormResponse(t, w.Body)
	require.Equal(t, "cheap", resp.Form.Price)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, "price", resp.Errors[0].Field)
	require.Nil(t, svc.createdInput)
}

func TestCreateProductMultipartUpload(t *testing.T) {
	svc := &stubProductService{product: testProduct(), categories: testCategories()}
	router := newTestRouter(svc)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for field, value := range map[string]string{
		"name":        "Pen Camera",
		"price":       "49.90",
		"sort_number": "2",
		"category_id": "2",
	} {
		require.NoError(t, writer.WriteField(field, value))
	}
	part, err := writer.CreateFormFile("image", "camera.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("image-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/products/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusSeeOther, w.Code)

	require.NotNil(t, svc.createdInput)
	require.NotNil(t, svc.createdInput.Image)
	require.Equal(t, "camera.png", svc.createdInput.Image.Filename)

	content, err := io.ReadAll(svc.createdInput.Image.Content)
	require.NoError(t, err)
	require.Equal(t, "image-bytes", string(content))
}

func TestEditFormPrefillsProduct(t *testing.T) {
	svc := &stubProductService{product: testProduct(), categories: testCategories()}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/products/7/edit", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeFormResponse(t, w.Body)
	require.Equal(t, int64(7), resp.Form.ID)
	require.Equal(t, "Pen Camera", resp.Form.Name)
	require.Equal(t, "49.90", resp.Form.Price)
	require.Equal(t, "abc123pen.png", resp.Form.PhotoURL)
	require.Len(t, resp.AvailableCategories, 2)
}

func TestEditProductRedirects(t *testing.T) {
	svc := &stubProductService{product: testProduct(), categories: testCategories()}
	router := newTestRouter(svc)

	values := validFormValues()
	values.Set("id", "7")

	w := postForm(router, "/api/admin/products/7", values)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/api/admin/products", w.Header().Get("Location"))
	require.Equal(t, int64(7), svc.updatedID)
}

func TestEditProductIDMismatch(t *testing.T) {
	svc := &stubProductService{product: testProduct(), categories: testCategories()}
	router := newTestRouter(svc)

	values := validFormValues()
	values.Set("id", "8")

	w := postForm(router, "/api/admin/products/7", values)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Nil(t, svc.updatedInput)
}

func TestEditProductVanishedTarget(t *testing.T) {
	svc := &stubProductService{categories: testCategories(), updateErr: repository.ErrProductNotFound}
	router := newTestRouter(svc)

	values := validFormValues()
	values.Set("id", "7")

	w := postForm(router, "/api/admin/products/7", values)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestEditProductConcurrentModification(t *testing.T) {
	svc := &stubProductService{categories: testCategories(), updateErr: repository.ErrProductConflict}
	router := newTestRouter(svc)

	values := validFormValues()
	values.Set("id", "7")

	w := postForm(router, "/api/admin/products/7", values)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "modified concurrently")
}

func TestDeleteConfirmShowsDetails(t *testing.T) {
	svc := &stubProductService{product: testProduct()}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/products/7/delete", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var details ProductDetails
	require.NoError(t, json.NewDecoder(w.Body).Decode(&details))
	require.Equal(t, int64(7), details.ID)
	require.Equal(t, "Cameras", details.CategoryName)
}

func TestDeleteProductRedirects(t *testing.T) {
	svc := &stubProductService{product: testProduct()}
	router := newTestRouter(svc)

	w := postForm(router, "/api/admin/products/7/delete", url.Values{})

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/api/admin/products", w.Header().Get("Location"))
	require.Equal(t, int64(7), svc.deletedID)
}

func TestDeleteProductNotFound(t *testing.T) {
	svc := &stubProductService{deleteErr: repository.ErrProductNotFound}
	router := newTestRouter(svc)

	w := postForm(router, "/api/admin/products/999/delete", url.Values{})

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListCategories(t *testing.T) {
	svc := &stubProductService{categories: testCategories()}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/categories", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Categories []CategoryChoice `json:"categories"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Categories, 2)
	require.Equal(t, "Audio", resp.Categories[0].Name)
}
