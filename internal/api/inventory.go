package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockwise/stockwise-core/internal/audit"
	"github.com/stockwise/stockwise-core/internal/inventory"
)

type personRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type productTypeRequest struct {
	Name string `json:"name"`
}

type productRequest struct {
	Brand           string    `json:"brand"`
	PackageQuantity int       `json:"package_quantity"`
	PackageSize     float64   `json:"package_size"`
	DeliveredAt     time.Time `json:"delivered_at"`
	ProductTypeID   string    `json:"product_type_id"`
	PersonID        string    `json:"person_id"`
}

// ─── Persons ───────────────────────────────────────────────────────

func (s *Server) handleListPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := s.personRepo.List(r.Context())
	if err != nil {
		s.logger.Error("list persons failed", "error", err)
		writeInternalError(w, "failed to list persons")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"persons": persons,
		"count":   len(persons),
	})
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var req personRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	person := &inventory.Person{FirstName: req.FirstName, LastName: req.LastName}
	if err := s.personRepo.Create(r.Context(), person); err != nil {
		if errors.Is(err, inventory.ErrValidation) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("create person failed", "error", err)
		writeInternalError(w, "failed to create person")
		return
	}

	identity := identityFromContext(r.Context())
	s.auditLog(audit.ActionCreate, "person", person.ID, identity.Subject, nil)

	writeJSON(w, http.StatusCreated, person)
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	person, err := s.personRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, inventory.ErrPersonNotFound) {
			writeNotFound(w, "person not found")
			return
		}
		s.logger.Error("get person failed", "error", err)
		writeInternalError(w, "failed to get person")
		return
	}

	writeJSON(w, http.StatusOK, person)
}

func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req personRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	person := &inventory.Person{ID: id, FirstName: req.FirstName, LastName: req.LastName}
	if err := s.personRepo.Update(r.Context(), person); err != nil {
		switch {
		case errors.Is(err, inventory.ErrValidation):
			writeBadRequest(w, err.Error())
		case errors.Is(err, inventory.ErrPersonNotFound):
			writeNotFound(w, "person not found")
		default:
			s.logger.Error("update person failed", "error", err)
			writeInternalError(w, "failed to update person")
		}
		return
	}

	identity := identityFromContext(r.Context())
	s.auditLog(audit.ActionUpdate, "person", id, identity.Subject, nil)

	writeJSON(w, http.StatusOK, person)
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.personRepo.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, inventory.ErrPersonNotFound):
			writeNotFound(w, "person not found")
		case errors.Is(err, inventory.ErrPersonInUse):
			writeConflict(w, "person is referenced by existing products")
		default:
			s.logger.Error("delete person failed", "error", err)
			writeInternalError(w, "failed to delete person")
		}
		return
	}

	identity := identityFromContext(r.Context())
	s.auditLog(audit.ActionDelete, "person", id, identity.Subject, nil)

	w.WriteHeader(http.StatusNoContent)
}

// ─── Product Types ─────────────────────────────────────────────────

func (s *Server) handleListProductTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.productTypeRepo.List(r.Context())
	if err != nil {
		s.logger.Error("list product types failed", "error", err)
		writeInternalError(w, "failed to list product types")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"product_types": types,
		"count":         len(types),
	})
}

func (s *Server) handleCreateProductType(w http.ResponseWriter, r *http.Request) {
	var req productTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	productType := &inventory.ProductType{Name: req.Name}
	if err := s.productTypeRepo.Create(r.Context(), productType); err != nil {
		if errors.Is(err, inventory.ErrValidation) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("create product type failed", "error", err)
		writeInternalError(w, "failed to create product type")
		return
	}

	identity := identityFromContext(r.Context())
	s.auditLog(audit.ActionCreate, "product_type", productType.ID, identity.Subject, nil)

	writeJSON(w, http.StatusCreated, productType)
}

func (s *Server) handleGetProductType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	productType, err := s.productTypeRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, inventory.ErrProductTypeNotFound) {
			writeNotFound(w, "product type not found")
			return
		}
		s.logger.Error("get product type failed", "error", err)
		writeInternalError(w, "failed to get product type")
		return
	}

	writeJSON(w, http.StatusOK, productType)
}

func (s *Server) handleUpdateProductType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req productTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	productType := &inventory.ProductType{ID: id, Name: req.Name}
	if err := s.productTypeRepo.Update(r.Context(), productType); err != nil {
		switch {
		case errors.Is(err, inventory.ErrValidation):
			writeBadRequest(w, err.Error())
		case errors.Is(err, inventory.ErrProductTypeNotFound):
			writeNotFound(w, "product type not found")
		default:
			s.logger.Error("update product type failed", "error", err)
			writeInternalError(w, "failed to update product type")
		}
		return
	}

	identity := identityFromContext(r.Context())
	s.auditLog(audit.ActionUpdate, "product_type", id, identity.Subject, nil)

	writeJSON(w, http.StatusOK, productType)
}

func (s *Server) handleDeleteProductType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.productTypeRepo.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, inventory.ErrProductTypeNotFound):
			writeNotFound(w, "product type not found")
		case errors.Is(err, inventory.ErrProductTypeInUse):
			writeConflict(w, "product type is referenced by existing products")
		default:
			s.logger.Error("delete product type failed", "error", err)
			writeInternalError(w, "failed to delete product type")
		}
		return
	}

	identity := identityFromContext(r.Context())
	s.auditLog(audit.ActionDelete, "product_type", id, identity.Subject, nil)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListProductsByType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.productTypeRepo.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, inventory.ErrProductTypeNotFound) {
			writeNotFound(w, "product type not found")
			return
		}
		s.logger.Error("get product type failed", "error", err)
		writeInternalError(w, "failed to list products")
		return
	}

	products, err := s.productRepo.ListByType(r.Context(), id)
	if err != nil {
		s.logger.Error("list products by type failed", "error", err)
		writeInternalError(w, "failed to list products")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

// ─── Products ──────────────────────────────────────────────────────

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.productRepo.List(r.Context())
	if err != nil {
		s.logger.Error("list products failed", "error", err)
		writeInternalError(w, "failed to list products")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	product := &inventory.Product{
		Brand:           req.Brand,
		PackageQuantity: req.PackageQuantity,
		PackageSize:     req.PackageSize,
		DeliveredAt:     req.DeliveredAt,
		ProductTypeID:   req.ProductTypeID,
		PersonID:        req.PersonID,
	}

	if err := s.productRepo.Create(r.Context(), product); err != nil {
		switch {
		case errors.Is(err, inventory.ErrValidation):
			writeBadRequest(w, err.Error())
		case errors.Is(err, inventory.ErrProductTypeNotFound):
			writeBadRequest(w, "product type does not exist")
		case errors.Is(err, inventory.ErrPersonNotFound):
			writeBadRequest(w, "person does not exist")
		default:
			s.logger.Error("create product failed", "error", err)
			writeInternalError(w, "failed to create product")
		}
		return
	}

	identity := identityFromContext(r.Context())
	s.auditLog(audit.ActionCreate, "product", product.ID, identity.Subject, map[string]any{
		"brand": product.Brand,
	})
	s.recordStockLevel(r, product)

	writeJSON(w, http.StatusCreated, product)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := s.productRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, inventory.ErrProductNotFound) {
			writeNotFound(w, "product not found")
			return
		}
		s.logger.Error("get product failed", "error", err)
		writeInternalError(w, "failed to get product")
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	product := &inventory.Product{
		ID:              id,
		Brand:           req.Brand,
		PackageQuantity: req.PackageQuantity,
		PackageSize:     req.PackageSize,
		DeliveredAt:     req.DeliveredAt,
		ProductTypeID:   req.ProductTypeID,
		PersonID:        req.PersonID,
	}

	if err := s.productRepo.Update(r.Context(), product); err != nil {
		switch {
		case errors.Is(err, inventory.ErrValidation):
			writeBadRequest(w, err.Error())
		case errors.Is(err, inventory.ErrProductNotFound):
			writeNotFound(w, "product not found")
		case errors.Is(err, inventory.ErrProductTypeNotFound):
			writeBadRequest(w, "product type does not exist")
		case errors.Is(err, inventory.ErrPersonNotFound):
			writeBadRequest(w, "person does not exist")
		default:
			s.logger.Error("update product failed", "error", err)
			writeInternalError(w, "failed to update product")
		}
		return
	}

	identity := identityFromContext(r.Context())
	s.auditLog(audit.ActionUpdate, "product", id, identity.Subject, nil)
	s.recordStockLevel(r, product)

	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.productRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, inventory.ErrProductNotFound) {
			writeNotFound(w, "product not found")
			return
		}
		s.logger.Error("delete product failed", "error", err)
		writeInternalError(w, "failed to delete product")
		return
	}

	identity := identityFromContext(r.Context())
	s.auditLog(audit.ActionDelete, "product", id, identity.Subject, nil)

	w.WriteHeader(http.StatusNoContent)
}

// recordStockLevel writes the product's stock position to the time-series
// store (best-effort, non-blocking).
func (s *Server) recordStockLevel(r *http.Request, product *inventory.Product) {
	if s.influx == nil {
		return
	}

	typeName := ""
	if productType, err := s.productTypeRepo.GetByID(r.Context(), product.ProductTypeID); err == nil {
		typeName = productType.Name
	}

	s.influx.WriteStockLevel(product.ID, typeName, product.PackageQuantity, product.PackageSize)
}
