// Package model содержит доменные сущности сервиса фудкарт.
package model

import "time"

// GeocodedAddress представляет закешированный результат геокодирования адреса.
// Nil-координаты означают, что последняя попытка геокодирования ничего не нашла.
type GeocodedAddress struct {
	Address   string
	Latitude  *float64
	Longitude *float64
	QueriedAt time.Time
}

// Resolved сообщает, что у записи есть обе координаты.
func (g *GeocodedAddress) Resolved() bool {
	return g != nil && g.Latitude != nil && g.Longitude != nil
}

// Coordinate — пара координат широта/долгота.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Restaurant описывает ресторан сети.
type Restaurant struct {
	ID           int64
	Name         string
	Address      string
	ContactPhone string
}

// ProductCategory описывает категорию товара.
type ProductCategory struct {
	ID   int64
	Name string
}

// Product описывает товар меню. Цена хранится в копейках.
type Product struct {
	ID            int64
	Name          string
	Category      *ProductCategory
	PriceKopecks  int64
	Description   string
	ImageURL      string
	SpecialStatus bool
}

// MenuEntry — позиция меню ресторана: связывает ресторан и товар
// с признаком доступности. Единственный источник истины о том,
// какие рестораны сейчас готовят товар.
type MenuEntry struct {
	RestaurantID int64
	ProductID    int64
	Availability bool
}

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "NEW"
	OrderStatusPreparing  OrderStatus = "PREPARING"
	OrderStatusDelivering OrderStatus = "DELIVERING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCanceled   OrderStatus = "CANCELED"
)

// ValidStatus сообщает, что строка является известным статусом заказа.
func ValidStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusNew, OrderStatusPreparing, OrderStatusDelivering,
		OrderStatusCompleted, OrderStatusCanceled:
		return true
	}
	return false
}

// CanTransition проверяет допустимость перехода статуса заказа при
// обновлении статуса. Перехода NEW -> PREPARING здесь нет: в PREPARING
// заказ попадает только через назначение ресторана.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderStatusNew:
		return to == OrderStatusCanceled
	case OrderStatusPreparing:
		return to == OrderStatusDelivering || to == OrderStatusCanceled
	case OrderStatusDelivering:
		return to == OrderStatusCompleted
	}
	return false
}

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
)

// Order описывает заказ клиента.
type Order struct {
	ID              int64
	ClientName      string
	Surname         string
	Phone           string
	DeliveryAddress string
	Status          OrderStatus
	PaymentMethod   PaymentMethod
	CustomerComment string
	RestaurantID    *int64
	CreatedAt       time.Time
	// CalledAt фиксируется при назначении ресторана, DeliveredAt —
	// при переходе заказа в COMPLETED.
	CalledAt    *time.Time
	DeliveredAt *time.Time
	Items           []OrderItem
}

// OrderItem — позиция заказа. Цена фиксируется в момент создания заказа
// и далее не меняется при изменении цены товара.
type OrderItem struct {
	ProductID              int64
	ProductName            string
	Quantity               int32
	PriceAtPurchaseKopecks int64
}

// TotalCostKopecks возвращает стоимость заказа по зафиксированным ценам.
func (o *Order) TotalCostKopecks() int64 {
	var total int64
	for _, it := range o.Items {
		total += int64(it.Quantity) * it.PriceAtPurchaseKopecks
	}
	return total
}
