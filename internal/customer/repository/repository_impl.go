package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/customerdir/internal/customer/domain"
	"github.com/smallbiznis/customerdir/internal/taxnumber"
	"github.com/smallbiznis/customerdir/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// customerRow is the stored shape of a customer. Seq keeps insertion order.
type customerRow struct {
	Seq             int64                       `gorm:"column:seq;primaryKey;autoIncrement"`
	CustomerID      string                      `gorm:"column:customer_id;size:64;not null;uniqueIndex"`
	Name            string                      `gorm:"column:name;not null"`
	Email           string                      `gorm:"column:email;not null;default:''"`
	Phone           string                      `gorm:"column:phone;not null;default:''"`
	TaxNumber       string                      `gorm:"column:tax_number;size:13;not null;default:''"`
	AddressZip      string                      `gorm:"column:address_zip;not null;default:''"`
	AddressLocation string                      `gorm:"column:address_location;not null;default:''"`
	AddressStreet   string                      `gorm:"column:address_street;not null;default:''"`
	DateCreated     time.Time                   `gorm:"column:date_created;not null"`
	CreatedBy       string                      `gorm:"column:created_by;not null;default:''"`
	Users           datatypes.JSONSlice[string] `gorm:"column:users"`
}

func (customerRow) TableName() string {
	return "customers"
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Migrate creates or upgrades the customers table.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(&customerRow{})
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, customer *domain.Customer) error {
	row := toRow(customer)
	if err := conn.WithContext(ctx).Create(&row).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrDuplicateKey
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *repo) Exists(ctx context.Context, conn *gorm.DB, id string) (bool, error) {
	var count int64
	err := conn.WithContext(ctx).
		Model(&customerRow{}).
		Where("customer_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check customer id: %w", err)
	}
	return count > 0, nil
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id string) (*domain.Customer, error) {
	var row customerRow
	err := conn.WithContext(ctx).
		Where("customer_id = ?", id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return fromRow(row)
}

func (r *repo) FindByIDs(ctx context.Context, conn *gorm.DB, ids []string) ([]*domain.Customer, error) {
	if len(ids) == 0 {
		return []*domain.Customer{}, nil
	}
	var rows []customerRow
	err := conn.WithContext(ctx).
		Where("customer_id IN ?", ids).
		Order("seq asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find customers: %w", err)
	}
	out := make([]*domain.Customer, 0, len(rows))
	for _, row := range rows {
		c, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *repo) ListIDs(ctx context.Context, conn *gorm.DB) ([]string, error) {
	ids := []string{}
	err := conn.WithContext(ctx).
		Model(&customerRow{}).
		Order("seq asc").
		Pluck("customer_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list customer ids: %w", err)
	}
	return ids, nil
}

// Iterate calls fn for every customer in insertion order. A non-nil error from
// fn stops the iteration and is returned as is.
func (r *repo) Iterate(ctx context.Context, conn *gorm.DB, fn func(*domain.Customer) error) error {
	rows, err := conn.WithContext(ctx).
		Model(&customerRow{}).
		Order("seq asc").
		Rows()
	if err != nil {
		return fmt.Errorf("iterate customers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row customerRow
		if err := conn.ScanRows(rows, &row); err != nil {
			return fmt.Errorf("scan customer: %w", err)
		}
		c, err := fromRow(row)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Mutate loads the customer, applies fn and stores the result in one
// transaction. If fn fails nothing is written.
func (r *repo) Mutate(ctx context.Context, conn *gorm.DB, id string, fn func(*domain.Customer) error) (*domain.Customer, error) {
	var out *domain.Customer
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row customerRow
		err := tx.Where("customer_id = ?", id).
			Take(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("load customer: %w", err)
		}

		c, err := fromRow(row)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}

		updated := toRow(c)
		// customer_id, date_created and created_by are never written here
		err = tx.Model(&row).
			Select("name", "email", "phone", "tax_number", "address_zip", "address_location", "address_street", "users").
			Updates(updated).Error
		if err != nil {
			return fmt.Errorf("save customer: %w", err)
		}

		c.ID = row.CustomerID
		c.DateCreated = row.DateCreated.UTC()
		c.CreatedBy = row.CreatedBy
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func toRow(c *domain.Customer) customerRow {
	users := datatypes.JSONSlice[string]{}
	if len(c.Users) > 0 {
		users = append(users, c.Users...)
	}
	return customerRow{
		CustomerID:      c.ID,
		Name:            c.Name,
		Email:           c.Email,
		Phone:           c.Phone,
		TaxNumber:       c.TaxNumber.String(),
		AddressZip:      c.Address.Zip,
		AddressLocation: c.Address.Location,
		AddressStreet:   c.Address.Street,
		DateCreated:     c.DateCreated.UTC(),
		CreatedBy:       c.CreatedBy,
		Users:           users,
	}
}

func fromRow(row customerRow) (*domain.Customer, error) {
	var tn taxnumber.TaxNumber
	if row.TaxNumber != "" {
		parsed, err := taxnumber.Validate(row.TaxNumber)
		if err != nil {
			return nil, fmt.Errorf("customer %s: stored tax number: %w", row.CustomerID, err)
		}
		tn = parsed
	}
	var users []string
	if len(row.Users) > 0 {
		users = append([]string(nil), row.Users...)
	}
	return &domain.Customer{
		ID:        row.CustomerID,
		Name:      row.Name,
		Email:     row.Email,
		Phone:     row.Phone,
		TaxNumber: tn,
		Address: domain.Address{
			Zip:      row.AddressZip,
			Location: row.AddressLocation,
			Street:   row.AddressStreet,
		},
		DateCreated: row.DateCreated.UTC(),
		CreatedBy:   row.CreatedBy,
		Users:       users,
	}, nil
}
