// Package service реализует бизнес-логику сервиса фудкарт.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/foodcart/foodcart-system/internal/matcher"
	"github.com/foodcart/foodcart-system/internal/model"
	"github.com/foodcart/foodcart-system/internal/repository"
	"github.com/foodcart/foodcart-system/internal/validation"
)

const (
	maxNameLength    = 50
	maxAddressLength = 200
)

// ErrRestaurantNotSuitable возвращается при попытке назначить заказу ресторан,
// который не готовит все его позиции.
var (
	ErrRestaurantNotSuitable = errors.New("restaurant cannot fulfill the order")
	// ErrUnknownStatus возвращается для неизвестного статуса заказа.
	ErrUnknownStatus = errors.New("unknown order status")
)

// ValidationError содержит ошибки валидации входных данных по полям.
type ValidationError struct {
	Fields validation.Errors
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d field(s)", len(e.Fields))
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	ListAvailableProducts(ctx context.Context) ([]model.Product, error)
	RestaurantsOfferingProducts(ctx context.Context, productIDs []int64) (map[int64][]model.Restaurant, error)
	CreateOrder(ctx context.Context, order *model.Order) (int64, error)
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	ListActiveOrders(ctx context.Context) ([]model.Order, error)
	AssignRestaurant(ctx context.Context, orderID, restaurantID int64) error
	UpdateOrderStatus(ctx context.Context, orderID int64, to model.OrderStatus) error
	ListRestaurants(ctx context.Context) ([]model.Restaurant, error)
	SetMenuAvailability(ctx context.Context, restaurantID, productID int64, availability bool) error
	DeleteProduct(ctx context.Context, productID int64) error
}

// Matcher описывает контракт подбора ресторанов для заказа.
type Matcher interface {
	MatchingRestaurants(ctx context.Context, order *model.Order) ([]matcher.Match, error)
}

// Resolver описывает резолвер адресов в координаты.
type Resolver interface {
	Resolve(ctx context.Context, address string) (*model.Coordinate, error)
}

// Service содержит бизнес-логику сервиса фудкарт.
type Service struct {
	repo     Repository
	matcher  Matcher
	resolver Resolver
	logger   *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием,
// подборщиком ресторанов и резолвером адресов.
func NewService(repo Repository, m Matcher, resolver Resolver, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		matcher:  m,
		resolver: resolver,
		logger:   logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// OrderItemInput — позиция создаваемого заказа.
type OrderItemInput struct {
	ProductID int64
	Quantity  int32
}

// CreateOrderInput — данные для создания заказа.
type CreateOrderInput struct {
	Firstname   string
	Lastname    string
	Phonenumber string
	Address     string
	Products    []OrderItemInput
}

func validateOrderInput(in CreateOrderInput) (string, validation.Errors) {
	errs := validation.Errors{}

	if in.Firstname == "" {
		errs.Add("firstname", "this field is required")
	} else if len([]rune(in.Firstname)) > maxNameLength {
		errs.Add("firstname", fmt.Sprintf("must be at most %d characters", maxNameLength))
	}

	if in.Lastname == "" {
		errs.Add("lastname", "this field is required")
	} else if len([]rune(in.Lastname)) > maxNameLength {
		errs.Add("lastname", fmt.Sprintf("must be at most %d characters", maxNameLength))
	}

	var phone string
	if in.Phonenumber == "" {
		errs.Add("phonenumber", "this field is required")
	} else {
		normalized, err := validation.NormalizePhone(in.Phonenumber)
		if err != nil {
			errs.Add("phonenumber", "invalid phone number")
		} else {
			phone = normalized
		}
	}

	if in.Address == "" {
		errs.Add("address", "this field is required")
	} else if len([]rune(in.Address)) > maxAddressLength {
		errs.Add("address", fmt.Sprintf("must be at most %d characters", maxAddressLength))
	}

	if len(in.Products) == 0 {
		errs.Add("products", "this list must not be empty")
	}
	seen := make(map[int64]bool, len(in.Products))
	for _, p := range in.Products {
		if p.ProductID < 1 {
			errs.Add("products", fmt.Sprintf("invalid product id %d", p.ProductID))
		}
		if p.Quantity < 1 {
			errs.Add("products", fmt.Sprintf("quantity must be at least 1, got %d", p.Quantity))
		}
		if seen[p.ProductID] {
			errs.Add("products", fmt.Sprintf("duplicate product id %d", p.ProductID))
		}
		seen[p.ProductID] = true
	}

	return phone, errs
}

// CreateOrder валидирует и сохраняет заказ. Позиции и заказ записываются
// в одной транзакции, цена фиксируется на момент создания. Ошибки
// валидации возвращаются как *ValidationError со списком сообщений по полям.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (int64, error) {
	phone, errs := validateOrderInput(in)
	if !errs.Empty() {
		return 0, &ValidationError{Fields: errs}
	}

	order := &model.Order{
		ClientName:      in.Firstname,
		Surname:         in.Lastname,
		Phone:           phone,
		DeliveryAddress: in.Address,
		Status:          model.OrderStatusNew,
		PaymentMethod:   model.PaymentMethodCash,
	}
	for _, p := range in.Products {
		order.Items = append(order.Items, model.OrderItem{
			ProductID: p.ProductID,
			Quantity:  p.Quantity,
		})
	}

	orderID, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			fieldErrs := validation.Errors{}
			fieldErrs.Add("products", err.Error())
			return 0, &ValidationError{Fields: fieldErrs}
		}
		return 0, err
	}

	// Геокодируем адрес доставки сразу, чтобы прогреть кеш к моменту
	// подбора ресторана. Неудача не мешает созданию заказа.
	if _, err := s.resolver.Resolve(ctx, in.Address); err != nil {
		s.logger.Warn("geocode delivery address failed",
			zap.Int64("orderID", orderID), zap.Error(err))
	}

	return orderID, nil
}

// ListAvailableProducts возвращает товары, доступные хотя бы в одном ресторане.
func (s *Service) ListAvailableProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListAvailableProducts(ctx)
}

// ManagerOrder — заказ в представлении менеджера: с суммой по зафиксированным
// ценам и, для неназначенных заказов, со списком подходящих ресторанов.
type ManagerOrder struct {
	Order               model.Order
	TotalCostKopecks    int64
	SuitableRestaurants []matcher.Match
}

// ListManagerOrders возвращает заказы в работе. Для каждого заказа в статусе
// NEW без назначенного ресторана выполняется подбор ресторанов.
func (s *Service) ListManagerOrders(ctx context.Context) ([]ManagerOrder, error) {
	orders, err := s.repo.ListActiveOrders(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]ManagerOrder, 0, len(orders))
	for _, o := range orders {
		mo := ManagerOrder{
			Order:            o,
			TotalCostKopecks: o.TotalCostKopecks(),
		}

		if o.Status == model.OrderStatusNew && o.RestaurantID == nil {
			matches, err := s.matcher.MatchingRestaurants(ctx, &o)
			if err != nil {
				return nil, err
			}
			mo.SuitableRestaurants = matches
		}

		res = append(res, mo)
	}

	return res, nil
}

// AssignRestaurant назначает заказу ресторан из числа подходящих
// и переводит заказ в статус PREPARING.
func (s *Service) AssignRestaurant(ctx context.Context, orderID, restaurantID int64) error {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status != model.OrderStatusNew || order.RestaurantID != nil {
		return repository.ErrOrderNotAssignable
	}

	matches, err := s.matcher.MatchingRestaurants(ctx, order)
	if err != nil {
		return err
	}

	suitable := false
	for _, m := range matches {
		if m.Restaurant.ID == restaurantID {
			suitable = true
			break
		}
	}
	if !suitable {
		return fmt.Errorf("%w: %d", ErrRestaurantNotSuitable, restaurantID)
	}

	return s.repo.AssignRestaurant(ctx, orderID, restaurantID)
}

// UpdateOrderStatus переводит заказ в указанный статус.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, to model.OrderStatus) error {
	if !model.ValidStatus(to) {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, to)
	}
	return s.repo.UpdateOrderStatus(ctx, orderID, to)
}

// ListRestaurants возвращает все рестораны сети.
func (s *Service) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	return s.repo.ListRestaurants(ctx)
}

// SetMenuAvailability включает или выключает товар в меню ресторана.
func (s *Service) SetMenuAvailability(ctx context.Context, restaurantID, productID int64, availability bool) error {
	return s.repo.SetMenuAvailability(ctx, restaurantID, productID, availability)
}

// DeleteProduct удаляет товар из каталога.
func (s *Service) DeleteProduct(ctx context.Context, productID int64) error {
	return s.repo.DeleteProduct(ctx, productID)
}
