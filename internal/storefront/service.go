package storefront

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/loggas/loggas-backend/internal/catalog"
	"github.com/loggas/loggas-backend/internal/customers"
	"github.com/loggas/loggas-backend/internal/sales"
	"github.com/loggas/loggas-backend/internal/tenants"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
)

// Service is the public face of a distributor: its profile, online catalog
// and checkout.
type Service interface {
	GetStore(ctx context.Context, slug string) (*StoreView, error)
	ListProducts(ctx context.Context, slug string) ([]ProductView, error)
	Checkout(ctx context.Context, slug string, input CheckoutInput) (*models.Sale, error)
}

// StoreView is what shoppers see about a distributor.
type StoreView struct {
	ID          uuid.UUID `json:"id"`
	CompanyName string    `json:"company_name"`
	Slug        string    `json:"slug"`
	Phone       *string   `json:"phone,omitempty"`
	Address     *string   `json:"address,omitempty"`
	Open        bool      `json:"open"`
}

// ProductView hides cost and stock thresholds from the public catalog.
type ProductView struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name"`
	Category       enums.ProductCategory `json:"category"`
	Unit           string                `json:"unit"`
	SellPriceCents int64                 `json:"sell_price_cents"`
	Available      int                   `json:"available"`
}

// CheckoutLine is one cart line submitted by a shopper.
type CheckoutLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// CheckoutInput is an online order. BuyerUserID is set for signed-in
// customers; guests must supply name and phone.
type CheckoutInput struct {
	BuyerUserID    *uuid.UUID
	Name           string
	Phone          string
	Address        string
	PaymentMethod  enums.PaymentMethod
	Lines          []CheckoutLine
	IdempotencyKey string
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ServiceParams wires the storefront.
type ServiceParams struct {
	Tenants tenants.Service
	Catalog catalog.Service
	Sales   sales.Service
	Users   userLookup
}

type service struct {
	tenants tenants.Service
	catalog catalog.Service
	sales   sales.Service
	users   userLookup
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tenants == nil:
		return nil, fmt.Errorf("tenant service required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog service required")
	case params.Sales == nil:
		return nil, fmt.Errorf("sales service required")
	case params.Users == nil:
		return nil, fmt.Errorf("user repository required")
	}
	return &service{
		tenants: params.Tenants,
		catalog: params.Catalog,
		sales:   params.Sales,
		users:   params.Users,
	}, nil
}

func (s *service) GetStore(ctx context.Context, slug string) (*StoreView, error) {
	tenant, err := s.tenants.ResolveBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &StoreView{
		ID:          tenant.ID,
		CompanyName: tenant.CompanyName,
		Slug:        tenant.Slug,
		Phone:       tenant.Phone,
		Address:     tenant.Address,
		Open:        tenant.StorefrontOpen,
	}, nil
}

func (s *service) ListProducts(ctx context.Context, slug string) ([]ProductView, error) {
	tenant, err := s.tenants.ResolveBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	products, err := s.catalog.ListStorefrontProducts(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{
			ID:             p.ID,
			Name:           p.Name,
			Category:       p.Category,
			Unit:           p.Unit,
			SellPriceCents: p.SellPriceCents,
			Available:      p.Stock,
		})
	}
	return views, nil
}

// Checkout commits an online order at current catalog prices. Lines never
// carry client prices: the public cart is not trusted with a price snapshot.
func (s *service) Checkout(ctx context.Context, slug string, input CheckoutInput) (*models.Sale, error) {
	tenant, err := s.tenants.ResolveBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !tenant.StorefrontOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "store is not accepting online orders")
	}

	buyer, err := s.buyer(ctx, input)
	if err != nil {
		return nil, err
	}

	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodOnline
	}

	lines := make([]sales.LineInput, 0, len(input.Lines))
	for _, line := range input.Lines {
		lines = append(lines, sales.LineInput{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	return s.sales.ProcessSale(ctx, sales.SaleInput{
		TenantID:       tenant.ID,
		Lines:          lines,
		Customer:       buyer,
		BuyerUserID:    input.BuyerUserID,
		PaymentMethod:  method,
		Origin:         enums.SaleOriginOnline,
		IdempotencyKey: input.IdempotencyKey,
	})
}

func (s *service) buyer(ctx context.Context, input CheckoutInput) (sales.CustomerInfo, error) {
	info := sales.CustomerInfo{
		Ref:     customers.AnonymousRef,
		Name:    strings.TrimSpace(input.Name),
		Phone:   strings.TrimSpace(input.Phone),
		Address: strings.TrimSpace(input.Address),
	}

	if input.BuyerUserID == nil {
		if info.Name == "" || info.Phone == "" {
			return info, pkgerrors.New(pkgerrors.CodeValidation, "guest checkout requires name and phone")
		}
		return info, nil
	}

	user, err := s.users.FindByID(ctx, *input.BuyerUserID)
	if err != nil {
		return info, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "unknown customer account")
	}
	if user.Role != enums.UserRoleCustomer || !user.IsActive {
		return info, pkgerrors.New(pkgerrors.CodeForbidden, "only customer accounts can place online orders")
	}
	info.Ref = user.ID.String()
	if info.Name == "" {
		info.Name = user.Name
	}
	if info.Phone == "" && user.Phone != nil {
		info.Phone = *user.Phone
	}
	if info.Address == "" && user.Address != nil {
		info.Address = *user.Address
	}
	return info, nil
}
