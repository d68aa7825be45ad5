package controllers

import (
	"net/http"
	"strings"

	"github.com/loggas/loggas-backend/api/responses"
	"github.com/loggas/loggas-backend/api/validators"
	"github.com/loggas/loggas-backend/internal/catalog"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/pagination"
)

type createProductRequest struct {
	Name           string `json:"name" validate:"required,max=120"`
	Category       string `json:"category" validate:"required"`
	SKU            string `json:"sku,omitempty" validate:"omitempty,max=64"`
	Stock          int    `json:"stock" validate:"min=0"`
	MinStock       int    `json:"min_stock" validate:"min=0"`
	CostPriceCents int64  `json:"cost_price_cents" validate:"min=0,max=10000000000000"`
	SellPriceCents int64  `json:"sell_price_cents" validate:"min=0,max=10000000000000"`
	Unit           string `json:"unit,omitempty" validate:"omitempty,max=16"`
	Active         *bool  `json:"active,omitempty"`
	ShowOnline     bool   `json:"show_online"`
}

func (r createProductRequest) toInput() (catalog.CreateProductInput, error) {
	category, err := enums.ParseProductCategory(strings.TrimSpace(r.Category))
	if err != nil {
		return catalog.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
	}
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return catalog.CreateProductInput{
		Name:           validators.SanitizeString(r.Name, 120),
		Category:       category,
		SKU:            strings.TrimSpace(r.SKU),
		Stock:          r.Stock,
		MinStock:       r.MinStock,
		CostPriceCents: r.CostPriceCents,
		SellPriceCents: r.SellPriceCents,
		Unit:           strings.TrimSpace(r.Unit),
		Active:         active,
		ShowOnline:     r.ShowOnline,
	}, nil
}

type updateProductRequest struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Category       *string `json:"category,omitempty"`
	SKU            *string `json:"sku,omitempty" validate:"omitempty,max=64"`
	Stock          *int    `json:"stock,omitempty" validate:"omitempty,min=0"`
	MinStock       *int    `json:"min_stock,omitempty" validate:"omitempty,min=0"`
	CostPriceCents *int64  `json:"cost_price_cents,omitempty" validate:"omitempty,min=0,max=10000000000000"`
	SellPriceCents *int64  `json:"sell_price_cents,omitempty" validate:"omitempty,min=0,max=10000000000000"`
	Unit           *string `json:"unit,omitempty" validate:"omitempty,max=16"`
	Active         *bool   `json:"active,omitempty"`
	ShowOnline     *bool   `json:"show_online,omitempty"`
}

func (r updateProductRequest) toInput() (catalog.UpdateProductInput, error) {
	input := catalog.UpdateProductInput{
		SKU:            r.SKU,
		Stock:          r.Stock,
		MinStock:       r.MinStock,
		CostPriceCents: r.CostPriceCents,
		SellPriceCents: r.SellPriceCents,
		Unit:           r.Unit,
		Active:         r.Active,
		ShowOnline:     r.ShowOnline,
	}
	if r.Name != nil {
		name := validators.SanitizeString(*r.Name, 120)
		input.Name = &name
	}
	if r.Category != nil {
		category, err := enums.ParseProductCategory(strings.TrimSpace(*r.Category))
		if err != nil {
			return catalog.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		input.Category = &category
	}
	return input, nil
}

type restockRequest struct {
	Quantity      int   `json:"quantity" validate:"required,min=1,max=100000"`
	UnitCostCents int64 `json:"unit_cost_cents" validate:"min=0,max=10000000000000"`
}

// ProductsList returns one page of the tenant catalog.
func ProductsList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := productListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListProducts(r.Context(), tid, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func productListParams(r *http.Request) (catalog.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return catalog.ListParams{}, err
	}
	active, err := validators.ParseQueryBool(r, "active")
	if err != nil {
		return catalog.ListParams{}, err
	}
	online, err := validators.ParseQueryBool(r, "online")
	if err != nil {
		return catalog.ListParams{}, err
	}
	lowStock, err := validators.ParseQueryBool(r, "low_stock")
	if err != nil {
		return catalog.ListParams{}, err
	}

	params := catalog.ListParams{
		Active:       active,
		OnlineOnly:   online != nil && *online,
		LowStockOnly: lowStock != nil && *lowStock,
		Search:       validators.SanitizeString(r.URL.Query().Get("q"), 80),
		Limit:        limit,
		Cursor:       strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category, err := enums.ParseProductCategory(raw)
		if err != nil {
			return catalog.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		params.Category = &category
	}
	return params, nil
}

// ProductsCritical lists products at or below their minimum stock.
func ProductsCritical(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		products, err := svc.ListCriticalStock(r.Context(), tid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": products})
	}
}

func ProductsGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pid, err := pathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), tid, pid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductsCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), tid, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func ProductsUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pid, err := pathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), tid, pid, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductsDelete deactivates a product; sold products keep their history.
func ProductsDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pid, err := pathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeactivateProduct(r.Context(), tid, pid); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

func ProductsRestock(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pid, err := pathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Restock(r.Context(), tid, pid, catalog.RestockInput{
			Quantity:      payload.Quantity,
			UnitCostCents: payload.UnitCostCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductsToggleOnline(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("catalog"))
			return
		}
		tid, err := tenantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pid, err := pathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.ToggleOnline(r.Context(), tid, pid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
