// Package matcher подбирает рестораны, способные приготовить заказ целиком,
// и ранжирует их по расстоянию до адреса доставки.
package matcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/foodcart/foodcart-system/internal/distance"
	"github.com/foodcart/foodcart-system/internal/model"
)

// AvailabilityIndex описывает источник доступности товаров по ресторанам.
type AvailabilityIndex interface {
	RestaurantsOfferingProducts(ctx context.Context, productIDs []int64) (map[int64][]model.Restaurant, error)
}

// Resolver описывает резолвер адресов в координаты.
type Resolver interface {
	Resolve(ctx context.Context, address string) (*model.Coordinate, error)
}

// Match — ресторан-кандидат с расстоянием до адреса доставки.
// Расстояние не округлено; округление выполняется при отображении.
type Match struct {
	Restaurant model.Restaurant
	DistanceKm float64
}

// Matcher реализует подбор ресторанов для заказа.
type Matcher struct {
	index    AvailabilityIndex
	resolver Resolver
}

// New создаёт Matcher поверх индекса доступности и резолвера координат.
func New(index AvailabilityIndex, resolver Resolver) *Matcher {
	return &Matcher{index: index, resolver: resolver}
}

// MatchingRestaurants возвращает рестораны, у которых доступна каждая позиция
// заказа, отсортированные по возрастанию расстояния до адреса доставки.
// Пустой результат — нормальный ответ: заказ без позиций или адреса, позиция,
// которую не готовит никто, либо нерезолвящийся адрес доставки. Ошибка
// возврата относится только к хранилищу. Подбор ничего не меняет в заказе.
func (m *Matcher) MatchingRestaurants(ctx context.Context, order *model.Order) ([]Match, error) {
	if order == nil || len(order.Items) == 0 || order.DeliveryAddress == "" {
		return nil, nil
	}

	productIDs := make([]int64, 0, len(order.Items))
	seen := make(map[int64]bool, len(order.Items))
	for _, it := range order.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			productIDs = append(productIDs, it.ProductID)
		}
	}

	offering, err := m.index.RestaurantsOfferingProducts(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("availability index: %w", err)
	}

	// Заказ выполним только целиком: если какой-то товар не готовит никто,
	// кандидатов нет.
	candidates := make(map[int64]model.Restaurant)
	for i, id := range productIDs {
		restaurants := offering[id]
		if len(restaurants) == 0 {
			return nil, nil
		}

		if i == 0 {
			for _, rest := range restaurants {
				candidates[rest.ID] = rest
			}
			continue
		}

		offers := make(map[int64]bool, len(restaurants))
		for _, rest := range restaurants {
			offers[rest.ID] = true
		}
		for restID := range candidates {
			if !offers[restID] {
				delete(candidates, restID)
			}
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	deliveryCoord, err := m.resolver.Resolve(ctx, order.DeliveryAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve delivery address: %w", err)
	}
	if deliveryCoord == nil {
		return nil, nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, rest := range candidates {
		coord, err := m.resolver.Resolve(ctx, rest.Address)
		if err != nil {
			return nil, fmt.Errorf("resolve restaurant address: %w", err)
		}
		if coord == nil {
			// Ресторан без координат нельзя ранжировать, молча пропускаем.
			continue
		}

		matches = append(matches, Match{
			Restaurant: rest,
			DistanceKm: distance.Km(*deliveryCoord, *coord),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceKm != matches[j].DistanceKm {
			return matches[i].DistanceKm < matches[j].DistanceKm
		}
		return matches[i].Restaurant.ID < matches[j].Restaurant.ID
	})

	return matches, nil
}
