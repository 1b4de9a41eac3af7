package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"spyshop-admin/internal/domain"
	"spyshop-admin/internal/repository"
	"spyshop-admin/internal/storage"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrCategoryNotFound indicates the submitted category reference does not
	// exist. Handlers report it as a field-level form error, not a failure.
	ErrCategoryNotFound = errors.New("this category doesn't exist")
)

// ImageUpload carries an uploaded product photo through the workflow.
type ImageUpload struct {
	Content  io.Reader
	Filename string
}

// ProductInput holds the submitted form fields for create and edit.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	SortNumber  int
	CategoryID  int64
	PhotoURL    string
	Image       *ImageUpload
}

// ProductService orchestrates the admin product workflow: it resolves the
// category reference, performs image store side effects in the required
// order, and commits changes through the product repository.
type ProductService interface {
	List(ctx context.Context) ([]*domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	Categories(ctx context.Context) ([]*domain.Category, error)
	Create(ctx context.Context, input ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id int64, input ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	images       storage.ImageStore
	logger       *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	images storage.ImageStore,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		images:       images,
		logger:       logger,
	}
}

// List returns all products ordered by sort number, then name.
func (s *productService) List(ctx context.Context) ([]*domain.Product, error) {
	return s.productRepo.List(ctx)
}

// Get returns a single product with its category loaded.
func (s *productService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// Categories returns the selectable categories ordered by name.
func (s *productService) Categories(ctx context.Context) ([]*domain.Category, error) {
	return s.categoryRepo.List(ctx)
}

// Create builds a new product from the submitted fields. The image is saved
// before the product is persisted so a failed write never leaves a product
// referencing a missing file.
func (s *productService) Create(ctx context.Context, input ProductInput) (*domain.Product, error) {
	category, err := s.resolveCategory(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	product := &domain.Product{
		Name:        input.Name,
		Description: input.Description,
		PhotoURL:    input.PhotoURL,
		Price:       input.Price,
		SortNumber:  input.SortNumber,
		CategoryID:  category.ID,
		Category:    category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if input.Image != nil {
		storedName, err := s.images.Save(input.Image.Content, input.Image.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to save product image: %w", err)
		}
		product.PhotoURL = storedName
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name),
	)
	return product, nil
}

// Update overwrites all mutable fields of an existing product. When a new
// image is uploaded the old file is removed first (best effort) and the new
// stored name wins over any submitted photo URL. A version conflict on a row
// that no longer exists is demoted to not-found; a conflict on a surviving
// row is unrecoverable and propagated.
func (s *productService) Update(ctx context.Context, id int64, input ProductInput) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	category, err := s.resolveCategory(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}

	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.SortNumber = input.SortNumber
	product.CategoryID = category.ID
	product.Category = category
	product.UpdatedAt = time.Now()

	if input.Image != nil {
		s.removeImage(product.PhotoURL)

		storedName, err := s.images.Save(input.Image.Content, input.Image.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to save product image: %w", err)
		}
		product.PhotoURL = storedName
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrProductConflict) {
			exists, existsErr := s.productRepo.Exists(ctx, id)
			if existsErr != nil {
				return nil, existsErr
			}
			if !exists {
				return nil, repository.ErrProductNotFound
			}
		}
		return nil, err
	}

	s.logger.Info("Product updated",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name),
	)
	return product, nil
}

// Delete removes the product row and its stored photo, if any.
func (s *productService) Delete(ctx context.Context, id int64) error {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	s.removeImage(product.PhotoURL)

	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

func (s *productService) resolveCategory(ctx context.Context, categoryID int64) (*domain.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

// removeImage deletes a stored image best-effort: an orphaned file is an
// accepted tradeoff, losing the whole mutation over it is not.
func (s *productService) removeImage(storedName string) {
	if err := s.images.Remove(storedName); err != nil {
		s.logger.Warn("Failed to remove product image",
			zap.String("photo_url", storedName),
			zap.Error(err),
		)
	}
}
