// Package handler содержит HTTP-обработчики API сервиса фудкарт.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/foodcart/foodcart-system/internal/model"
	"github.com/foodcart/foodcart-system/internal/repository"
	"github.com/foodcart/foodcart-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (int64, error)
	ListAvailableProducts(ctx context.Context) ([]model.Product, error)
	ListManagerOrders(ctx context.Context) ([]service.ManagerOrder, error)
	AssignRestaurant(ctx context.Context, orderID, restaurantID int64) error
	UpdateOrderStatus(ctx context.Context, orderID int64, to model.OrderStatus) error
	ListRestaurants(ctx context.Context) ([]model.Restaurant, error)
	SetMenuAvailability(ctx context.Context, restaurantID, productID int64, availability bool) error
	DeleteProduct(ctx context.Context, productID int64) error
}

// Handler реализует HTTP-обработчики API сервиса фудкарт.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type orderItemRequest struct {
	Product  int64 `json:"product"`
	Quantity int32 `json:"quantity"`
}

type createOrderRequest struct {
	Firstname   string             `json:"firstname"`
	Lastname    string             `json:"lastname"`
	Phonenumber string             `json:"phonenumber"`
	Address     string             `json:"address"`
	Products    []orderItemRequest `json:"products"`
}

// CreateOrder принимает новый заказ клиента.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	in := service.CreateOrderInput{
		Firstname:   req.Firstname,
		Lastname:    req.Lastname,
		Phonenumber: req.Phonenumber,
		Address:     req.Address,
	}
	for _, p := range req.Products {
		in.Products = append(in.Products, service.OrderItemInput{
			ProductID: p.Product,
			Quantity:  p.Quantity,
		})
	}

	orderID, err := h.service.CreateOrder(r.Context(), in)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, verr.Fields)
			return
		}
		h.logger.Error("create order error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"order_id": orderID})
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type productResponse struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Price         float64           `json:"price"`
	Description   string            `json:"description"`
	Category      *categoryResponse `json:"category"`
	Image         string            `json:"image"`
	SpecialStatus bool              `json:"special_status"`
}

// GetProducts возвращает товары, доступные хотя бы в одном ресторане.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListAvailableProducts(r.Context())
	if err != nil {
		h.logger.Error("list products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		pr := productResponse{
			ID:            p.ID,
			Name:          p.Name,
			Price:         float64(p.PriceKopecks) / 100,
			Description:   p.Description,
			Image:         p.ImageURL,
			SpecialStatus: p.SpecialStatus,
		}
		if p.Category != nil {
			pr.Category = &categoryResponse{ID: p.Category.ID, Name: p.Category.Name}
		}
		resp = append(resp, pr)
	}

	writeJSON(w, http.StatusOK, resp)
}

type orderItemResponse struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int32   `json:"quantity"`
	Price     float64 `json:"price"`
}

type suitableRestaurantResponse struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	DistanceKm float64 `json:"distance_km"`
}

type managerOrderResponse struct {
	ID                  int64                        `json:"id"`
	Firstname           string                       `json:"firstname"`
	Lastname            string                       `json:"lastname"`
	Phonenumber         string                       `json:"phonenumber"`
	Address             string                       `json:"address"`
	Status              string                       `json:"status"`
	PaymentMethod       string                       `json:"payment_method"`
	Comment             string                       `json:"comment,omitempty"`
	RestaurantID        *int64                       `json:"restaurant_id"`
	TotalCost           float64                      `json:"total_cost"`
	CreatedAt           string                       `json:"created_at"`
	CalledAt            *string                      `json:"called_at,omitempty"`
	Items               []orderItemResponse          `json:"items"`
	SuitableRestaurants []suitableRestaurantResponse `json:"suitable_restaurants,omitempty"`
}

// GetManagerOrders возвращает заказы в работе с подходящими ресторанами.
func (h *Handler) GetManagerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListManagerOrders(r.Context())
	if err != nil {
		h.logger.Error("list manager orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]managerOrderResponse, 0, len(orders))
	for _, mo := range orders {
		o := mo.Order
		or := managerOrderResponse{
			ID:            o.ID,
			Firstname:     o.ClientName,
			Lastname:      o.Surname,
			Phonenumber:   o.Phone,
			Address:       o.DeliveryAddress,
			Status:        string(o.Status),
			PaymentMethod: string(o.PaymentMethod),
			Comment:       o.CustomerComment,
			RestaurantID:  o.RestaurantID,
			TotalCost:     float64(mo.TotalCostKopecks) / 100,
			CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		}
		if o.CalledAt != nil {
			calledAt := o.CalledAt.Format(time.RFC3339)
			or.CalledAt = &calledAt
		}
		for _, it := range o.Items {
			or.Items = append(or.Items, orderItemResponse{
				ProductID: it.ProductID,
				Name:      it.ProductName,
				Quantity:  it.Quantity,
				Price:     float64(it.PriceAtPurchaseKopecks) / 100,
			})
		}
		for _, m := range mo.SuitableRestaurants {
			or.SuitableRestaurants = append(or.SuitableRestaurants, suitableRestaurantResponse{
				ID:   m.Restaurant.ID,
				Name: m.Restaurant.Name,
				// Для отображения расстояние округляется до десятых.
				DistanceKm: math.Round(m.DistanceKm*10) / 10,
			})
		}
		resp = append(resp, or)
	}

	writeJSON(w, http.StatusOK, resp)
}

type assignRequest struct {
	RestaurantID int64 `json:"restaurant_id"`
}

// AssignRestaurant назначает заказу ресторан.
func (h *Handler) AssignRestaurant(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err = h.service.AssignRestaurant(r.Context(), orderID, req.RestaurantID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound),
			errors.Is(err, repository.ErrRestaurantNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrOrderNotAssignable):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		case errors.Is(err, service.ErrRestaurantNotSuitable):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		default:
			h.logger.Error("assign restaurant error", zap.Error(err),
				zap.Int64("orderID", orderID), zap.Int64("restaurantID", req.RestaurantID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus переводит заказ в новый статус.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err = h.service.UpdateOrderStatus(r.Context(), orderID, model.OrderStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownStatus):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrInvalidTransition):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("update order status error", zap.Error(err), zap.Int64("orderID", orderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

type restaurantResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	ContactPhone string `json:"contact_phone"`
}

// GetRestaurants возвращает все рестораны сети.
func (h *Handler) GetRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.service.ListRestaurants(r.Context())
	if err != nil {
		h.logger.Error("list restaurants error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]restaurantResponse, 0, len(restaurants))
	for _, rest := range restaurants {
		resp = append(resp, restaurantResponse{
			ID:           rest.ID,
			Name:         rest.Name,
			Address:      rest.Address,
			ContactPhone: rest.ContactPhone,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type availabilityRequest struct {
	Availability bool `json:"availability"`
}

// SetMenuAvailability включает или выключает товар в меню ресторана.
func (h *Handler) SetMenuAvailability(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := strconv.ParseInt(chi.URLParam(r, "restaurantID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err = h.service.SetMenuAvailability(r.Context(), restaurantID, productID, req.Availability)
	if err != nil {
		if errors.Is(err, repository.ErrRestaurantNotFound) || errors.Is(err, repository.ErrProductNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("set menu availability error", zap.Error(err),
			zap.Int64("restaurantID", restaurantID), zap.Int64("productID", productID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteProduct удаляет товар из каталога.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err = h.service.DeleteProduct(r.Context(), productID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrProductInUse):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("delete product error", zap.Error(err), zap.Int64("productID", productID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
