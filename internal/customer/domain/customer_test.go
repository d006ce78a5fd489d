package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/customerdir/internal/taxnumber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func validInput() NewCustomerInput {
	return NewCustomerInput{
		Name:      "Jane Doe",
		Email:     "jane@example.com",
		Phone:     "+36 30 123 4567",
		TaxNumber: "12345676-2-41",
		Address:   Address{Zip: "1000", Location: "City", Street: "Main 1"},
		CreatedBy: "u1",
	}
}

func TestNewCustomer(t *testing.T) {
	t.Run("keeps inputs as given", func(t *testing.T) {
		in := validInput()
		c, err := NewCustomer(in, testNow)

		require.NoError(t, err)
		assert.Equal(t, "", c.ID)
		assert.Equal(t, in.Name, c.Name)
		assert.Equal(t, in.Email, c.Email)
		assert.Equal(t, in.Phone, c.Phone)
		assert.Equal(t, in.TaxNumber, c.TaxNumber.String())
		assert.Equal(t, in.Address, c.Address)
		assert.Equal(t, in.CreatedBy, c.CreatedBy)
		assert.Equal(t, testNow, c.DateCreated)
		assert.False(t, c.HasUser())
	})

	t.Run("empty email and tax number are allowed", func(t *testing.T) {
		in := validInput()
		in.Email = ""
		in.TaxNumber = ""
		c, err := NewCustomer(in, testNow)

		require.NoError(t, err)
		assert.True(t, c.TaxNumber.IsZero())
		assert.Equal(t, "", c.Email)
	})

	t.Run("name bounds are inclusive", func(t *testing.T) {
		in := validInput()
		in.Name = "Jo"
		_, err := NewCustomer(in, testNow)
		require.NoError(t, err)

		in.Name = strings.Repeat("a", NameMaxLength)
		_, err = NewCustomer(in, testNow)
		require.NoError(t, err)
	})

	t.Run("name length counts characters, not bytes", func(t *testing.T) {
		in := validInput()
		in.Name = strings.Repeat("é", NameMaxLength)
		_, err := NewCustomer(in, testNow)
		require.NoError(t, err)
	})

	t.Run("rejects short and long names", func(t *testing.T) {
		for _, name := range []string{"", "A", strings.Repeat("a", NameMaxLength+1)} {
			in := validInput()
			in.Name = name
			c, err := NewCustomer(in, testNow)

			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, errors.Is(err, ErrInvalidName))
			assert.Contains(t, err.Error(), "between 2 and 200")
		}
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		for _, email := range []string{"not-an-email", "jane.example.com", "jane@example", "a@b.c"} {
			in := validInput()
			in.Email = email
			_, err := NewCustomer(in, testNow)

			assert.ErrorIs(t, err, ErrInvalidEmail, email)
		}
	})

	t.Run("rejects malformed tax number", func(t *testing.T) {
		in := validInput()
		in.TaxNumber = "12345677-2-41"
		_, err := NewCustomer(in, testNow)

		require.ErrorIs(t, err, ErrInvalidTaxNumber)
		assert.True(t, IsValidation(err))
	})
}

func TestCustomerUpdate(t *testing.T) {
	newCustomer := func(t *testing.T) *Customer {
		c, err := NewCustomer(validInput(), testNow)
		require.NoError(t, err)
		c.ID = "abc123"
		return c
	}

	t.Run("replaces all mutable fields", func(t *testing.T) {
		c := newCustomer(t)
		addr := Address{Zip: "2000", Location: "Town", Street: "Side 2"}

		err := c.Update("Jane Smith", "", "555", taxnumber.TaxNumber{}, addr)

		require.NoError(t, err)
		assert.Equal(t, "Jane Smith", c.Name)
		assert.Equal(t, "", c.Email)
		assert.Equal(t, "555", c.Phone)
		assert.True(t, c.TaxNumber.IsZero())
		assert.Equal(t, addr, c.Address)
		assert.Equal(t, "abc123", c.ID)
		assert.Equal(t, testNow, c.DateCreated)
		assert.Equal(t, "u1", c.CreatedBy)
	})

	t.Run("invalid email changes nothing", func(t *testing.T) {
		c := newCustomer(t)
		before := c.Clone()

		err := c.Update("Other Name", "not-an-email", "555", taxnumber.TaxNumber{}, Address{})

		assert.ErrorIs(t, err, ErrInvalidEmail)
		assert.Equal(t, before, *c)
	})

	t.Run("invalid name changes nothing", func(t *testing.T) {
		c := newCustomer(t)
		before := c.Clone()

		err := c.Update("A", "new@example.com", "555", taxnumber.TaxNumber{}, Address{})

		assert.ErrorIs(t, err, ErrInvalidName)
		assert.Equal(t, before, *c)
	})
}

func TestSetters(t *testing.T) {
	c, err := NewCustomer(validInput(), testNow)
	require.NoError(t, err)

	require.NoError(t, c.SetEmail("new@example.com"))
	assert.Equal(t, "new@example.com", c.Email)

	assert.ErrorIs(t, c.SetEmail("bad"), ErrInvalidEmail)
	assert.Equal(t, "new@example.com", c.Email)

	require.NoError(t, c.SetEmail(""))
	assert.Equal(t, "", c.Email)

	c.SetName("Renamed")
	c.SetPhone("123")
	c.SetAddress(Address{Zip: "9"})
	c.SetTaxNumber(taxnumber.MustValidate("11111111-1-42"))
	assert.Equal(t, "Renamed", c.Name)
	assert.Equal(t, "123", c.Phone)
	assert.Equal(t, "9", c.Address.Zip)
	assert.Equal(t, "11111111-1-42", c.TaxNumber.String())
}

func TestClone(t *testing.T) {
	c := Customer{ID: "x", Users: []string{"u1"}}
	cp := c.Clone()
	cp.Users[0] = "u2"

	assert.Equal(t, "u1", c.Users[0])
	assert.True(t, c.HasUser())
}

func TestValidationErrorCode(t *testing.T) {
	err := ValidateName("A")
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "name", vErr.Field)
	assert.Equal(t, "invalid_name", vErr.Code())
	assert.False(t, IsValidation(ErrNotFound))
}
