package catalog

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrInvalidName        = errors.New("name must be between 3 and 100 characters")
	ErrInvalidWeight      = errors.New("weight must be greater than zero")
	ErrInvalidDescription = errors.New("description must be at most 500 characters")
	ErrNameTaken          = errors.New("a definition with this name already exists")
	ErrNotFound           = errors.New("definition not found")
)

// Definition is a chaos event definition: a named disruption with a
// selection weight. Definitions with weight <= 0 are stored but never
// selected.
type Definition struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// Update carries a partial definition change; nil fields are left as-is.
type Update struct {
	Name        *string  `json:"name"`
	Weight      *float64 `json:"weight"`
	Description *string  `json:"description"`
}

type Repository interface {
	List(ctx context.Context) ([]Definition, error)
	Get(ctx context.Context, id int64) (Definition, error)
	Insert(ctx context.Context, def Definition) (Definition, error)
	Update(ctx context.Context, def Definition) error
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	Repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{Repo: repo}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) < 3 || len(name) > 100 {
		return "", ErrInvalidName
	}
	return name, nil
}

func validateDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if len(description) > 500 {
		return "", ErrInvalidDescription
	}
	return description, nil
}

func (s *Service) List(ctx context.Context) ([]Definition, error) {
	return s.Repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Definition, error) {
	return s.Repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, name string, weight float64, description string) (Definition, error) {
	name, err := validateName(name)
	if err != nil {
		return Definition{}, err
	}
	if weight <= 0 {
		return Definition{}, ErrInvalidWeight
	}
	description, err = validateDescription(description)
	if err != nil {
		return Definition{}, err
	}

	return s.Repo.Insert(ctx, Definition{
		Name:        name,
		Weight:      weight,
		Description: description,
	})
}

// ApplyUpdate changes only the fields supplied in the update. A supplied
// weight <= 0 is rejected rather than stored.
func (s *Service) ApplyUpdate(ctx context.Context, id int64, update Update) (Definition, error) {
	def, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Definition{}, err
	}

	if update.Name != nil {
		name, err := validateName(*update.Name)
		if err != nil {
			return Definition{}, err
		}
		def.Name = name
	}
	if update.Weight != nil {
		if *update.Weight <= 0 {
			return Definition{}, ErrInvalidWeight
		}
		def.Weight = *update.Weight
	}
	if update.Description != nil {
		description, err := validateDescription(*update.Description)
		if err != nil {
			return Definition{}, err
		}
		def.Description = description
	}

	if err := s.Repo.Update(ctx, def); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.Repo.Delete(ctx, id)
}
