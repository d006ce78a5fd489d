package domain

import "context"

type CreateCustomerRequest struct {
	Name      string
	Email     string
	Phone     string
	TaxNumber string
	Address   Address
	CreatedBy string
}

type GetCustomerRequest struct {
	ID string
}

type GetBulkRequest struct {
	IDs []string
}

type FindCustomerRequest struct {
	Query string
}

type UpdateCustomerRequest struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	TaxNumber string
	Address   Address
}

type CustomerUserRequest struct {
	CustomerID string
	UserID     string
}

// Service is the customer directory. Customers are never deleted.
type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	GetAllIDs(context.Context) ([]string, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
	GetBulk(context.Context, GetBulkRequest) ([]Customer, error)
	FindByName(context.Context, FindCustomerRequest) ([]string, error)
	Update(context.Context, UpdateCustomerRequest) (Customer, error)
	AddUser(context.Context, CustomerUserRequest) error
	RemoveUser(context.Context, CustomerUserRequest) error
}
