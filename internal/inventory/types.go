package inventory

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors returned by the inventory repositories.
var (
	ErrPersonNotFound      = errors.New("person not found")
	ErrProductTypeNotFound = errors.New("product type not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrProductTypeInUse    = errors.New("product type is referenced by existing products")
	ErrPersonInUse         = errors.New("person is referenced by existing products")
	ErrValidation          = errors.New("validation failed")
)

// Person is someone responsible for stock: the recipient or registrar of
// product deliveries.
type Person struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the person's required fields.
func (p *Person) Validate() error {
	if strings.TrimSpace(p.FirstName) == "" {
		return errors.Join(ErrValidation, errors.New("first_name is required"))
	}
	if strings.TrimSpace(p.LastName) == "" {
		return errors.Join(ErrValidation, errors.New("last_name is required"))
	}
	return nil
}

// ProductType categorises products (e.g. "cleaning", "food").
type ProductType struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the product type's required fields.
func (t *ProductType) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.Join(ErrValidation, errors.New("name is required"))
	}
	return nil
}

// Product is a stocked item: a brand in a package size, delivered on a date,
// categorised by a type and registered to a person.
type Product struct {
	ID              string    `json:"id"`
	Brand           string    `json:"brand"`
	PackageQuantity int       `json:"package_quantity"`
	PackageSize     float64   `json:"package_size"`
	DeliveredAt     time.Time `json:"delivered_at"`
	ProductTypeID   string    `json:"product_type_id"`
	PersonID        string    `json:"person_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks the product's required fields and value ranges.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Brand) == "" {
		return errors.Join(ErrValidation, errors.New("brand is required"))
	}
	if p.PackageQuantity < 0 {
		return errors.Join(ErrValidation, errors.New("package_quantity must not be negative"))
	}
	if p.PackageSize < 0 {
		return errors.Join(ErrValidation, errors.New("package_size must not be negative"))
	}
	if strings.TrimSpace(p.ProductTypeID) == "" {
		return errors.Join(ErrValidation, errors.New("product_type_id is required"))
	}
	if strings.TrimSpace(p.PersonID) == "" {
		return errors.Join(ErrValidation, errors.New("person_id is required"))
	}
	return nil
}
