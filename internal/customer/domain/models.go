package domain

import (
	"time"

	"github.com/smallbiznis/customerdir/internal/taxnumber"
)

// Address is the invoice address of a customer.
type Address struct {
	Zip      string `json:"zip"`
	Location string `json:"location"`
	Street   string `json:"street"`
}

// Customer is a customer master-data record. ID, DateCreated and CreatedBy are
// set once and never change afterwards.
type Customer struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	TaxNumber   taxnumber.TaxNumber
	Address     Address
	DateCreated time.Time
	CreatedBy   string
	Users       []string
}

func (c *Customer) HasUser() bool {
	return len(c.Users) > 0
}

// Clone returns a copy that shares no mutable state with c.
func (c *Customer) Clone() Customer {
	out := *c
	if c.Users != nil {
		out.Users = append([]string(nil), c.Users...)
	}
	return out
}
