package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/luisromero-dev/storefront-backend/api/middleware"
	internalorders "github.com/luisromero-dev/storefront-backend/internal/orders"
	"github.com/luisromero-dev/storefront-backend/pkg/db/models"
	"github.com/luisromero-dev/storefront-backend/pkg/enums"
	pkgerrors "github.com/luisromero-dev/storefront-backend/pkg/errors"
	"github.com/luisromero-dev/storefront-backend/pkg/pagination"
)

type stubControllerOrdersRepo struct {
	getByID       func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	listByUser    func(ctx context.Context, userID uuid.UUID, params pagination.Params, filters internalorders.ListFilters) ([]models.Order, string, error)
	advanceStatus func(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
}

func (s *stubControllerOrdersRepo) WithTx(tx *gorm.DB) internalorders.Repository {
	return s
}

func (s *stubControllerOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	panic("not implemented")
}

func (s *stubControllerOrdersRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.getByID != nil {
		return s.getByID(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubControllerOrdersRepo) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params, filters internalorders.ListFilters) ([]models.Order, string, error) {
	if s.listByUser != nil {
		return s.listByUser(ctx, userID, params, filters)
	}
	return nil, "", nil
}

func (s *stubControllerOrdersRepo) ListByCourier(ctx context.Context, courierID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	panic("not implemented")
}

func (s *stubControllerOrdersRepo) ListUnassigned(ctx context.Context, params pagination.Params) ([]models.Order, string, error) {
	panic("not implemented")
}

func (s *stubControllerOrdersRepo) AdvanceStatus(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	if s.advanceStatus != nil {
		return s.advanceStatus(ctx, orderID, from, updates)
	}
	return true, nil
}

func (s *stubControllerOrdersRepo) MarkPaid(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	panic("not implemented")
}

type stubUserLoader struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUserLoader) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}

func newControllerService(t *testing.T, repo internalorders.Repository, users *stubUserLoader) *internalorders.Service {
	t.Helper()

	if users == nil {
		users = &stubUserLoader{users: map[uuid.UUID]*models.User{}}
	}
	svc, err := internalorders.NewService(repo, users)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

func actorRequest(method, target, body string, actorID uuid.UUID, role enums.UserRole) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.ContentLength = int64(len(body))
	}
	ctx := middleware.WithUserID(req.Context(), actorID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func routeWithOrderID(handler http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/orders/{orderID}/action", handler)
	r.Get("/orders/{orderID}", handler)
	return r
}

func decodePayload(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return payload
}

func TestListReturnsOwnOrders(t *testing.T) {
	t.Parallel()

	actorID := uuid.New()
	repo := &stubControllerOrdersRepo{
		listByUser: func(_ context.Context, userID uuid.UUID, params pagination.Params, filters internalorders.ListFilters) ([]models.Order, string, error) {
			if userID != actorID {
				t.Fatalf("expected list scoped to actor, got %s", userID)
			}
			if params.Limit != 5 {
				t.Fatalf("expected limit 5, got %d", params.Limit)
			}
			if filters.Status != nil {
				t.Fatalf("expected no status filter, got %s", *filters.Status)
			}
			return []models.Order{{ID: uuid.New(), UserID: userID, Status: enums.OrderStatusCreated}}, "next-token", nil
		},
	}
	svc := newControllerService(t, repo, nil)

	rec := httptest.NewRecorder()
	List(svc, nil)(rec, actorRequest(http.MethodGet, "/api/v1/orders?limit=5", "", actorID, enums.UserRoleCustomer))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodePayload(t, rec)
	data, _ := payload["data"].(map[string]any)
	if data == nil || data["next_cursor"] != "next-token" {
		t.Fatalf("expected paginated envelope, got %s", rec.Body.String())
	}
}

func TestListRequiresCredentials(t *testing.T) {
	t.Parallel()

	svc := newControllerService(t, &stubControllerOrdersRepo{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	List(svc, nil)(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListAppliesStatusFilter(t *testing.T) {
	t.Parallel()

	actorID := uuid.New()
	repo := &stubControllerOrdersRepo{
		listByUser: func(_ context.Context, _ uuid.UUID, _ pagination.Params, filters internalorders.ListFilters) ([]models.Order, string, error) {
			if filters.Status == nil || *filters.Status != enums.OrderStatusDelivered {
				t.Fatalf("expected delivered filter, got %+v", filters.Status)
			}
			return nil, "", nil
		},
	}
	svc := newControllerService(t, repo, nil)

	rec := httptest.NewRecorder()
	List(svc, nil)(rec, actorRequest(http.MethodGet, "/api/v1/orders?status=delivered", "", actorID, enums.UserRoleCustomer))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListRejectsUnknownStatusFilter(t *testing.T) {
	t.Parallel()

	svc := newControllerService(t, &stubControllerOrdersRepo{}, nil)

	rec := httptest.NewRecorder()
	List(svc, nil)(rec, actorRequest(http.MethodGet, "/api/v1/orders?status=misplaced", "", uuid.New(), enums.UserRoleCustomer))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodePayload(t, rec)
	errObj, _ := payload["error"].(map[string]any)
	if errObj == nil || errObj["code"] != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %s", rec.Body.String())
	}
}

func TestGetForbiddenForStranger(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	repo := &stubControllerOrdersRepo{
		getByID: func(_ context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: id, UserID: uuid.New(), Status: enums.OrderStatusCreated}, nil
		},
	}
	svc := newControllerService(t, repo, nil)

	rec := httptest.NewRecorder()
	req := actorRequest(http.MethodGet, "/orders/"+orderID.String(), "", uuid.New(), enums.UserRoleCustomer)
	routeWithOrderID(Get(svc, nil)).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAssignBindsCourier(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	courierID := uuid.New()
	current := &models.Order{ID: orderID, UserID: uuid.New(), Status: enums.OrderStatusCreated}

	repo := &stubControllerOrdersRepo{
		getByID: func(_ context.Context, id uuid.UUID) (*models.Order, error) {
			return current, nil
		},
		advanceStatus: func(_ context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
			if from != enums.OrderStatusCreated {
				t.Fatalf("expected created precondition, got %s", from)
			}
			current.Status = enums.OrderStatusAssigned
			current.CourierID = &courierID
			return true, nil
		},
	}
	users := &stubUserLoader{users: map[uuid.UUID]*models.User{
		courierID: {ID: courierID, Role: enums.UserRoleCourier, IsActive: true},
	}}
	svc := newControllerService(t, repo, users)

	body := `{"courier_id":"` + courierID.String() + `"}`
	rec := httptest.NewRecorder()
	req := actorRequest(http.MethodPost, "/orders/"+orderID.String()+"/action", body, uuid.New(), enums.UserRoleSeller)
	routeWithOrderID(Assign(svc, nil)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodePayload(t, rec)
	data, _ := payload["data"].(map[string]any)
	if data == nil || data["status"] != string(enums.OrderStatusAssigned) {
		t.Fatalf("expected assigned order in payload, got %s", rec.Body.String())
	}
}

func TestAssignRejectsMalformedCourierID(t *testing.T) {
	t.Parallel()

	svc := newControllerService(t, &stubControllerOrdersRepo{}, nil)

	rec := httptest.NewRecorder()
	req := actorRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/action", `{"courier_id":"nope"}`, uuid.New(), enums.UserRoleSeller)
	routeWithOrderID(Assign(svc, nil)).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodePayload(t, rec)
	errObj, _ := payload["error"].(map[string]any)
	if errObj == nil || errObj["code"] != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %s", rec.Body.String())
	}
}

func TestTransitionDeliverCollectsPayment(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	courierID := uuid.New()
	current := &models.Order{
		ID:        orderID,
		UserID:    uuid.New(),
		CourierID: &courierID,
		Status:    enums.OrderStatusInTransit,
	}

	repo := &stubControllerOrdersRepo{
		getByID: func(_ context.Context, id uuid.UUID) (*models.Order, error) {
			return current, nil
		},
		advanceStatus: func(_ context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
			if from != enums.OrderStatusInTransit {
				t.Fatalf("expected in_transit precondition, got %s", from)
			}
			if updates["paid"] != true {
				t.Fatalf("expected cash collection in updates, got %v", updates)
			}
			current.Status = enums.OrderStatusDelivered
			current.Delivered = true
			current.Paid = true
			return true, nil
		},
	}
	svc := newControllerService(t, repo, nil)

	rec := httptest.NewRecorder()
	req := actorRequest(http.MethodPost, "/orders/"+orderID.String()+"/action", `{"collect_payment":true}`, courierID, enums.UserRoleCourier)
	routeWithOrderID(Transition(svc, enums.OrderStatusDelivered, nil)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodePayload(t, rec)
	data, _ := payload["data"].(map[string]any)
	if data == nil || data["paid"] != true {
		t.Fatalf("expected paid order in payload, got %s", rec.Body.String())
	}
}

func TestTransitionConflictSurfacesCurrentStatus(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	courierID := uuid.New()
	current := &models.Order{
		ID:        orderID,
		UserID:    uuid.New(),
		CourierID: &courierID,
		Status:    enums.OrderStatusAssigned,
	}

	repo := &stubControllerOrdersRepo{
		getByID: func(_ context.Context, id uuid.UUID) (*models.Order, error) {
			return current, nil
		},
		advanceStatus: func(_ context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
			return false, nil
		},
	}
	svc := newControllerService(t, repo, nil)

	rec := httptest.NewRecorder()
	req := actorRequest(http.MethodPost, "/orders/"+orderID.String()+"/action", "", courierID, enums.UserRoleCourier)
	routeWithOrderID(Transition(svc, enums.OrderStatusInTransit, nil)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodePayload(t, rec)
	errObj, _ := payload["error"].(map[string]any)
	if errObj == nil || errObj["code"] != string(pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %s", rec.Body.String())
	}
	details, _ := errObj["details"].(map[string]any)
	if details == nil || details["current"] != string(enums.OrderStatusAssigned) {
		t.Fatalf("expected current status in details, got %s", rec.Body.String())
	}
}
