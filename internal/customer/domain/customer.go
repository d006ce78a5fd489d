package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/smallbiznis/customerdir/internal/taxnumber"
)

const (
	NameMinLength  = 2
	NameMaxLength  = 200
	EmailMinLength = 6
)

// NewCustomerInput carries the raw, unvalidated fields of a new customer.
type NewCustomerInput struct {
	Name      string
	Email     string
	Phone     string
	TaxNumber string
	Address   Address
	CreatedBy string
}

// NewCustomer validates in and returns a customer without an ID. The directory
// assigns the ID when the record is stored.
func NewCustomer(in NewCustomerInput, now time.Time) (*Customer, error) {
	if err := ValidateName(in.Name); err != nil {
		return nil, err
	}
	if err := ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	tn, err := ParseTaxNumber(in.TaxNumber)
	if err != nil {
		return nil, err
	}

	return &Customer{
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		TaxNumber:   tn,
		Address:     in.Address,
		DateCreated: now.UTC(),
		CreatedBy:   in.CreatedBy,
	}, nil
}

// Update replaces every mutable field. When validation fails nothing is changed.
func (c *Customer) Update(name, email, phone string, tn taxnumber.TaxNumber, address Address) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}

	c.Name = name
	c.Email = email
	c.Phone = phone
	c.TaxNumber = tn
	c.Address = address
	return nil
}

func (c *Customer) SetEmail(email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	c.Email = email
	return nil
}

func (c *Customer) SetName(name string) {
	c.Name = name
}

func (c *Customer) SetPhone(phone string) {
	c.Phone = phone
}

func (c *Customer) SetAddress(address Address) {
	c.Address = address
}

func (c *Customer) SetTaxNumber(tn taxnumber.TaxNumber) {
	c.TaxNumber = tn
}

// ValidateName checks the name length in characters.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < NameMinLength || n > NameMaxLength {
		return newValidationError("name", ErrInvalidName,
			fmt.Sprintf("name length must be between %d and %d characters", NameMinLength, NameMaxLength))
	}
	return nil
}

// ValidateEmail accepts the empty string. Anything else must contain '@' and
// '.' and be longer than five characters.
func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") || len(email) < EmailMinLength {
		return newValidationError("email", ErrInvalidEmail,
			"invalid email address: must be longer than 5 characters and contain '@' and '.'")
	}
	return nil
}

// ParseTaxNumber resolves raw user input. Empty input means the tax number is
// not yet known and yields the zero TaxNumber.
func ParseTaxNumber(raw string) (taxnumber.TaxNumber, error) {
	if strings.TrimSpace(raw) == "" {
		return taxnumber.TaxNumber{}, nil
	}
	tn, err := taxnumber.Validate(raw)
	if err != nil {
		return taxnumber.TaxNumber{}, newValidationError("tax_number", ErrInvalidTaxNumber, err.Error())
	}
	return tn, nil
}
