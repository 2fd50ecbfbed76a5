package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/foodcart/foodcart-system/internal/matcher"
	"github.com/foodcart/foodcart-system/internal/model"
	"github.com/foodcart/foodcart-system/internal/repository"
	"github.com/foodcart/foodcart-system/internal/service"
	"github.com/foodcart/foodcart-system/internal/validation"
)

type stubService struct {
	createOrderID  int64
	createOrderErr error

	products    []model.Product
	productsErr error

	managerOrders    []service.ManagerOrder
	managerOrdersErr error

	assignErr error

	updateStatusErr error

	restaurants    []model.Restaurant
	restaurantsErr error

	availabilityErr error

	deleteProductErr error
}

func (s *stubService) CreateOrder(ctx context.Context, in service.CreateOrderInput) (int64, error) {
	return s.createOrderID, s.createOrderErr
}

func (s *stubService) ListAvailableProducts(ctx context.Context) ([]model.Product, error) {
	return s.products, s.productsErr
}

func (s *stubService) ListManagerOrders(ctx context.Context) ([]service.ManagerOrder, error) {
	return s.managerOrders, s.managerOrdersErr
}

func (s *stubService) AssignRestaurant(ctx context.Context, orderID, restaurantID int64) error {
	return s.assignErr
}

func (s *stubService) UpdateOrderStatus(ctx context.Context, orderID int64, to model.OrderStatus) error {
	return s.updateStatusErr
}

func (s *stubService) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	return s.restaurants, s.restaurantsErr
}

func (s *stubService) SetMenuAvailability(ctx context.Context, restaurantID, productID int64, availability bool) error {
	return s.availabilityErr
}

func (s *stubService) DeleteProduct(ctx context.Context, productID int64) error {
	return s.deleteProductErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger)
}

func TestCreateOrder_Created(t *testing.T) {
	svc := &stubService{createOrderID: 42}
	h := newTestHandler(t, svc)

	body := `{
		"firstname": "Иван",
		"lastname": "Петров",
		"phonenumber": "+79161234567",
		"address": "Москва, Тверская 1",
		"products": [{"product": 1, "quantity": 2}]
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/order", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp map[string]int64
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["order_id"] != 42 {
		t.Fatalf("order_id = %d, want 42", resp["order_id"])
	}
}

func TestCreateOrder_ValidationErrorsAsFieldMap(t *testing.T) {
	errs := validation.Errors{}
	errs.Add("phonenumber", "invalid phone number")
	errs.Add("products", "this list must not be empty")

	svc := &stubService{createOrderErr: &service.ValidationError{Fields: errs}}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/order", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	var resp map[string][]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp["phonenumber"]) != 1 || len(resp["products"]) != 1 {
		t.Fatalf("unexpected error body: %v", resp)
	}
}

func TestCreateOrder_MalformedJSON(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/order", strings.NewReader(`{"firstname":`))
	rec := httptest.NewRecorder()

	h.CreateOrder(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetProducts(t *testing.T) {
	svc := &stubService{products: []model.Product{
		{
			ID:           1,
			Name:         "Бургер",
			PriceKopecks: 25050,
			Description:  "Фирменный бургер",
			Category:     &model.ProductCategory{ID: 3, Name: "Бургеры"},
			ImageURL:     "/media/burger.jpg",
		},
		{ID: 2, Name: "Кола", PriceKopecks: 9900},
	}}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()

	h.GetProducts(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp []productResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("products = %d, want 2", len(resp))
	}
	if resp[0].Price != 250.5 {
		t.Fatalf("price = %v, want 250.5", resp[0].Price)
	}
	if resp[0].Category == nil || resp[0].Category.Name != "Бургеры" {
		t.Fatalf("category = %+v", resp[0].Category)
	}
	if resp[1].Category != nil {
		t.Fatalf("expected null category, got %+v", resp[1].Category)
	}
}

func TestGetManagerOrders_RoundsDistanceForDisplay(t *testing.T) {
	svc := &stubService{managerOrders: []service.ManagerOrder{
		{
			Order: model.Order{
				ID:              1,
				ClientName:      "Иван",
				Surname:         "Петров",
				Phone:           "+79161234567",
				DeliveryAddress: "Москва, Тверская 1",
				Status:          model.OrderStatusNew,
				PaymentMethod:   model.PaymentMethodCash,
				CreatedAt:       time.Now(),
				Items: []model.OrderItem{
					{ProductID: 1, ProductName: "Бургер", Quantity: 2, PriceAtPurchaseKopecks: 25050},
				},
			},
			TotalCostKopecks: 50100,
			SuitableRestaurants: []matcher.Match{
				{Restaurant: model.Restaurant{ID: 7, Name: "Бургерная"}, DistanceKm: 5.1437},
			},
		},
	}}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/manager/orders", nil)
	rec := httptest.NewRecorder()

	h.GetManagerOrders(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	var resp []managerOrderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("orders = %d, want 1", len(resp))
	}
	if resp[0].TotalCost != 501 {
		t.Fatalf("total_cost = %v, want 501", resp[0].TotalCost)
	}
	if len(resp[0].SuitableRestaurants) != 1 {
		t.Fatalf("suitable = %v", resp[0].SuitableRestaurants)
	}
	if resp[0].SuitableRestaurants[0].DistanceKm != 5.1 {
		t.Fatalf("distance_km = %v, want 5.1", resp[0].SuitableRestaurants[0].DistanceKm)
	}
}

func TestGetManagerOrders_CalledAtOnlyWhenAssigned(t *testing.T) {
	restaurantID := int64(7)
	calledAt := time.Date(2026, 8, 29, 12, 30, 0, 0, time.UTC)
	svc := &stubService{managerOrders: []service.ManagerOrder{
		{
			Order: model.Order{
				ID:              1,
				ClientName:      "Иван",
				Surname:         "Петров",
				Phone:           "+79161234567",
				DeliveryAddress: "Москва, Тверская 1",
				Status:          model.OrderStatusPreparing,
				PaymentMethod:   model.PaymentMethodCash,
				RestaurantID:    &restaurantID,
				CreatedAt:       time.Now(),
				CalledAt:        &calledAt,
			},
		},
		{
			Order: model.Order{
				ID:              2,
				ClientName:      "Анна",
				Surname:         "Сидорова",
				Phone:           "+79167654321",
				DeliveryAddress: "Москва, Арбат 10",
				Status:          model.OrderStatusNew,
				PaymentMethod:   model.PaymentMethodCard,
				CreatedAt:       time.Now(),
			},
		},
	}}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/manager/orders", nil)
	rec := httptest.NewRecorder()

	h.GetManagerOrders(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	var resp []managerOrderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("orders = %d, want 2", len(resp))
	}
	if resp[0].CalledAt == nil {
		t.Fatal("called_at missing for assigned order")
	}
	if *resp[0].CalledAt != "2026-08-29T12:30:00Z" {
		t.Fatalf("called_at = %q, want 2026-08-29T12:30:00Z", *resp[0].CalledAt)
	}
	if resp[1].CalledAt != nil {
		t.Fatalf("called_at = %q for unassigned order, want omitted", *resp[1].CalledAt)
	}
}

func TestAssignRestaurant_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "ok", err: nil, wantCode: http.StatusOK},
		{name: "order not found", err: repository.ErrOrderNotFound, wantCode: http.StatusNotFound},
		{name: "restaurant not found", err: repository.ErrRestaurantNotFound, wantCode: http.StatusNotFound},
		{name: "not assignable", err: repository.ErrOrderNotAssignable, wantCode: http.StatusConflict},
		{name: "not suitable", err: service.ErrRestaurantNotSuitable, wantCode: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{assignErr: tt.err})
			router := h.SetupRouter()

			body, _ := json.Marshal(assignRequest{RestaurantID: 5})
			req := httptest.NewRequest(http.MethodPost, "/api/manager/orders/1/assign", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestUpdateOrderStatus_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "ok", err: nil, wantCode: http.StatusOK},
		{name: "unknown status", err: service.ErrUnknownStatus, wantCode: http.StatusBadRequest},
		{name: "invalid transition", err: repository.ErrInvalidTransition, wantCode: http.StatusConflict},
		{name: "order not found", err: repository.ErrOrderNotFound, wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{updateStatusErr: tt.err})
			router := h.SetupRouter()

			body, _ := json.Marshal(statusRequest{Status: "DELIVERING"})
			req := httptest.NewRequest(http.MethodPost, "/api/manager/orders/1/status", bytes.NewReader(body))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestSetMenuAvailability_NotFound(t *testing.T) {
	h := newTestHandler(t, &stubService{availabilityErr: repository.ErrProductNotFound})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPut, "/api/manager/menu/1/99",
		strings.NewReader(`{"availability": true}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteProduct_ConflictWhenReferenced(t *testing.T) {
	h := newTestHandler(t, &stubService{deleteProductErr: repository.ErrProductInUse})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/manager/products/1", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}
