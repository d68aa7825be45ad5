package deliveries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/internal/sales"
	"github.com/loggas/loggas-backend/pkg/db"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox"
)

// Service manages the delivery fleet and the routes that move online orders
// through fulfillment.
type Service interface {
	CreateDriver(ctx context.Context, tenantID uuid.UUID, input DriverInput) (*models.DeliveryDriver, error)
	UpdateDriver(ctx context.Context, tenantID, driverID uuid.UUID, input DriverUpdate) (*models.DeliveryDriver, error)
	DeleteDriver(ctx context.Context, tenantID, driverID uuid.UUID) error
	ListDrivers(ctx context.Context, tenantID uuid.UUID) ([]models.DeliveryDriver, error)

	CreateRoute(ctx context.Context, tenantID uuid.UUID, input RouteInput) (*models.DeliveryRoute, error)
	StartRoute(ctx context.Context, tenantID, routeID uuid.UUID) (*models.DeliveryRoute, error)
	CompleteRoute(ctx context.Context, tenantID, routeID uuid.UUID) (*models.DeliveryRoute, error)
	GetRoute(ctx context.Context, tenantID, routeID uuid.UUID) (*models.DeliveryRoute, error)
	ListRoutes(ctx context.Context, tenantID uuid.UUID, status *enums.RouteStatus) ([]models.DeliveryRoute, error)
}

type DriverInput struct {
	Name    string
	Vehicle string
	Plate   string
}

// DriverUpdate edits a driver. Nil fields are left unchanged.
type DriverUpdate struct {
	Name    *string
	Vehicle *string
	Plate   *string
	Status  *enums.DriverStatus
}

// RouteInput hands a set of online sales to a driver, in stop order.
type RouteInput struct {
	DriverID  uuid.UUID
	SaleIDs   []uuid.UUID
	RouteDate *time.Time
}

type ServiceParams struct {
	Repo      *Repository
	SalesRepo *sales.Repository
	DB        *db.Client
	Outbox    outbox.Emitter
	Logger    *logger.Logger
}

type service struct {
	repo      *Repository
	salesRepo *sales.Repository
	db        *db.Client
	outbox    outbox.Emitter
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("delivery repository required")
	case params.SalesRepo == nil:
		return nil, fmt.Errorf("sales repository required")
	case params.DB == nil:
		return nil, fmt.Errorf("db client required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repo,
		salesRepo: params.SalesRepo,
		db:        params.DB,
		outbox:    params.Outbox,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) CreateDriver(ctx context.Context, tenantID uuid.UUID, input DriverInput) (*models.DeliveryDriver, error) {
	driver := &models.DeliveryDriver{
		TenantID: tenantID,
		Name:     strings.TrimSpace(input.Name),
		Vehicle:  strings.TrimSpace(input.Vehicle),
		Plate:    strings.ToUpper(strings.TrimSpace(input.Plate)),
		Status:   enums.DriverStatusAvailable,
	}
	if err := validateDriver(driver); err != nil {
		return nil, err
	}
	if err := s.repo.CreateDriver(ctx, driver); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create driver")
	}
	return driver, nil
}

func (s *service) UpdateDriver(ctx context.Context, tenantID, driverID uuid.UUID, input DriverUpdate) (*models.DeliveryDriver, error) {
	driver, err := s.loadDriver(ctx, s.repo, tenantID, driverID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		driver.Name = strings.TrimSpace(*input.Name)
	}
	if input.Vehicle != nil {
		driver.Vehicle = strings.TrimSpace(*input.Vehicle)
	}
	if input.Plate != nil {
		driver.Plate = strings.ToUpper(strings.TrimSpace(*input.Plate))
	}
	var from *enums.DriverStatus
	if input.Status != nil {
		prev := driver.Status
		from = &prev
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid driver status")
		}
		// delivering is owned by routes
		if *input.Status == enums.DriverStatusDelivering || driver.Status == enums.DriverStatusDelivering {
			if *input.Status != driver.Status {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "driver status is managed by its active route")
			}
		}
		driver.Status = *input.Status
	}
	if err := validateDriver(driver); err != nil {
		return nil, err
	}
	ok, err := s.repo.UpdateDriver(ctx, driver, from)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update driver")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "driver changed while editing, retry")
	}
	return s.loadDriver(ctx, s.repo, tenantID, driverID)
}

func (s *service) DeleteDriver(ctx context.Context, tenantID, driverID uuid.UUID) error {
	if _, err := s.loadDriver(ctx, s.repo, tenantID, driverID); err != nil {
		return err
	}
	open, err := s.repo.HasOpenRoute(ctx, tenantID, driverID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check driver routes")
	}
	if open {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "driver has an open route")
	}
	if err := s.repo.DeleteDriver(ctx, tenantID, driverID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete driver")
	}
	return nil
}

func (s *service) ListDrivers(ctx context.Context, tenantID uuid.UUID) ([]models.DeliveryDriver, error) {
	drivers, err := s.repo.ListDrivers(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list drivers")
	}
	return drivers, nil
}

// CreateRoute assigns online sales that are being prepared or already shipped
// to an available driver, who becomes delivering.
func (s *service) CreateRoute(ctx context.Context, tenantID uuid.UUID, input RouteInput) (*models.DeliveryRoute, error) {
	saleIDs, err := uniqueIDs(input.SaleIDs)
	if err != nil {
		return nil, err
	}
	routeDate := s.now().UTC()
	if input.RouteDate != nil {
		routeDate = input.RouteDate.UTC()
	}

	var route *models.DeliveryRoute
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		driver, err := s.loadDriver(ctx, repo, tenantID, input.DriverID)
		if err != nil {
			return err
		}
		if driver.Status != enums.DriverStatusAvailable {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("driver is %s", driver.Status))
		}

		found, err := s.salesRepo.WithTx(tx).FindByIDs(ctx, tenantID, saleIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sales")
		}
		if len(found) != len(saleIDs) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		for _, sale := range found {
			if sale.Origin != enums.SaleOriginOnline {
				return pkgerrors.New(pkgerrors.CodeValidation, "only online orders can be routed")
			}
			if sale.Status != enums.SaleStatusPreparing && sale.Status != enums.SaleStatusShipped {
				return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("sale %s is %s", sale.ID, sale.Status))
			}
		}

		busy, err := repo.SalesOnOpenRoutes(ctx, tenantID, saleIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open routes")
		}
		if len(busy) > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("sale %s is already on an open route", busy[0]))
		}

		route = &models.DeliveryRoute{
			TenantID:  tenantID,
			DriverID:  driver.ID,
			Status:    enums.RouteStatusPending,
			RouteDate: routeDate,
		}
		for i, id := range saleIDs {
			route.Stops = append(route.Stops, models.DeliveryRouteStop{SaleID: id, Position: i})
		}
		if err := repo.CreateRoute(ctx, route); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create route")
		}
		if err := repo.SetDriverStatus(ctx, tenantID, driver.ID, enums.DriverStatusDelivering); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update driver status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id": tenantID.String(),
		"route_id":  route.ID.String(),
		"driver_id": route.DriverID.String(),
		"stops":     len(route.Stops),
	})
	s.logg.Info(logCtx, "delivery route created")
	return route, nil
}

// StartRoute puts the route on the road; sales still being prepared ship.
func (s *service) StartRoute(ctx context.Context, tenantID, routeID uuid.UUID) (*models.DeliveryRoute, error) {
	return s.moveRoute(ctx, tenantID, routeID, enums.RouteStatusPending, enums.RouteStatusInProgress, func(status enums.SaleStatus) (enums.SaleStatus, bool) {
		return enums.SaleStatusShipped, status == enums.SaleStatusPreparing
	})
}

// CompleteRoute closes the route, completes its shipped sales and frees the driver.
func (s *service) CompleteRoute(ctx context.Context, tenantID, routeID uuid.UUID) (*models.DeliveryRoute, error) {
	return s.moveRoute(ctx, tenantID, routeID, enums.RouteStatusInProgress, enums.RouteStatusCompleted, func(status enums.SaleStatus) (enums.SaleStatus, bool) {
		return enums.SaleStatusCompleted, status == enums.SaleStatusShipped
	})
}

// moveRoute advances the route from one status to the next and applies
// saleStep to every stop. Cancelled stops are skipped.
func (s *service) moveRoute(
	ctx context.Context,
	tenantID, routeID uuid.UUID,
	from, to enums.RouteStatus,
	saleStep func(enums.SaleStatus) (enums.SaleStatus, bool),
) (*models.DeliveryRoute, error) {
	var route *models.DeliveryRoute
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		route, err = s.loadRoute(ctx, repo, tenantID, routeID)
		if err != nil {
			return err
		}
		if route.Status != from {
			return pkgerrors.InvalidTransition(string(route.Status), string(to))
		}

		at := s.now().UTC()
		stops, err := s.salesRepo.WithTx(tx).FindByIDs(ctx, tenantID, route.SaleIDs())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load route sales")
		}
		for _, sale := range stops {
			next, apply := saleStep(sale.Status)
			if !apply {
				continue
			}
			if _, err := sales.AdvanceInTx(ctx, tx, s.salesRepo, s.outbox, tenantID, sale.ID, next, at); err != nil {
				return err
			}
		}

		route.Status = to
		switch to {
		case enums.RouteStatusInProgress:
			route.StartedAt = &at
		case enums.RouteStatusCompleted:
			route.CompletedAt = &at
			if err := repo.SetDriverStatus(ctx, tenantID, route.DriverID, enums.DriverStatusAvailable); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release driver")
			}
		}
		moved, err := repo.MoveRoute(ctx, route, from)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update route")
		}
		if !moved {
			return pkgerrors.InvalidTransition(string(from), string(to))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id": tenantID.String(),
		"route_id":  routeID.String(),
		"status":    string(to),
	})
	s.logg.Info(logCtx, "delivery route advanced")
	return route, nil
}

func (s *service) GetRoute(ctx context.Context, tenantID, routeID uuid.UUID) (*models.DeliveryRoute, error) {
	return s.loadRoute(ctx, s.repo, tenantID, routeID)
}

func (s *service) ListRoutes(ctx context.Context, tenantID uuid.UUID, status *enums.RouteStatus) ([]models.DeliveryRoute, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid route status")
	}
	routes, err := s.repo.ListRoutes(ctx, tenantID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list routes")
	}
	return routes, nil
}

func (s *service) loadDriver(ctx context.Context, repo *Repository, tenantID, driverID uuid.UUID) (*models.DeliveryDriver, error) {
	driver, err := repo.FindDriver(ctx, tenantID, driverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
	}
	return driver, nil
}

func (s *service) loadRoute(ctx context.Context, repo *Repository, tenantID, routeID uuid.UUID) (*models.DeliveryRoute, error) {
	route, err := repo.FindRoute(ctx, tenantID, routeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "route not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load route")
	}
	return route, nil
}

func validateDriver(driver *models.DeliveryDriver) error {
	switch {
	case driver.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "driver name is required")
	case driver.Vehicle == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "vehicle is required")
	case driver.Plate == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "plate is required")
	}
	return nil
}

func uniqueIDs(ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "route needs at least one sale")
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
