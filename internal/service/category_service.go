package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

// CategoryService manages the globally shared category list.
type CategoryService struct {
	categories repository.CategoryRepository
}

// NewCategoryService builds the service.
func NewCategoryService(categories repository.CategoryRepository) *CategoryService {
	return &CategoryService{categories: categories}
}

// List returns all categories ordered by name ascending.
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	return s.categories.List(ctx)
}

// Create adds a category. The name pre-check is a fast path; the unique
// constraint on categories.name is the authoritative guard.
func (s *CategoryService) Create(ctx context.Context, name string) (*domain.Category, error) {
	if _, err := s.categories.GetByName(ctx, name); err == nil {
		return nil, apperrors.NewConflict("Category with this name already exists")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	category := &domain.Category{ID: uuid.NewString(), Name: name}
	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, apperrors.NewConflict("Category with this name already exists")
		}
		return nil, err
	}
	return category, nil
}
