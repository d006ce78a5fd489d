package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository is the durable, keyed, insertion-ordered customer collection.
// Every method returns only after the change is durable.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	Exists(ctx context.Context, db *gorm.DB, id string) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Customer, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]*Customer, error)
	ListIDs(ctx context.Context, db *gorm.DB) ([]string, error)
	Iterate(ctx context.Context, db *gorm.DB, fn func(*Customer) error) error
	Mutate(ctx context.Context, db *gorm.DB, id string, fn func(*Customer) error) (*Customer, error)
}
