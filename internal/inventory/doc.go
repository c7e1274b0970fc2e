// Package inventory holds the stock domain: persons responsible for stock,
// product types, and products with package quantities and delivery dates.
//
// Each entity has a SQLite-backed repository. Products reference a product
// type and a person; both references are enforced with foreign keys, and
// deleting a referenced type or person is rejected rather than cascaded so
// stock records never silently lose their provenance.
package inventory
