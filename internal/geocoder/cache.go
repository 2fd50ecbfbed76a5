package geocoder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/foodcart/foodcart-system/internal/model"
)

// defaultNegativeTTL определяет, как долго доверять записи «адрес не найден»,
// прежде чем переспросить геокодер.
const defaultNegativeTTL = 24 * time.Hour

// Storage описывает контракт хранения геокодированных адресов.
type Storage interface {
	GetGeocodedAddress(ctx context.Context, address string) (*model.GeocodedAddress, error)
	SaveGeocodedAddress(ctx context.Context, rec *model.GeocodedAddress) error
}

// Provider описывает контракт внешнего геокодера.
type Provider interface {
	FetchCoordinates(ctx context.Context, address string) (*model.Coordinate, error)
}

// Cache резолвит адрес в координаты с мемоизацией в хранилище.
// Нерезолвящийся адрес — нормальный результат (nil-координаты), не ошибка;
// ошибка возврата относится только к хранилищу.
type Cache struct {
	storage     Storage
	provider    Provider
	logger      *zap.Logger
	negativeTTL time.Duration
	now         func() time.Time
}

// NewCache создаёт кеш геокодирования поверх хранилища и внешнего провайдера.
func NewCache(storage Storage, provider Provider, logger *zap.Logger) *Cache {
	return &Cache{
		storage:     storage,
		provider:    provider,
		logger:      logger,
		negativeTTL: defaultNegativeTTL,
		now:         time.Now,
	}
}

// Resolve возвращает координаты адреса. Попадание в кеш с координатами не
// требует сетевого вызова. Отрицательная запись моложе TTL тоже считается
// ответом кеша; иначе выполняется запрос к провайдеру, и результат
// (включая «не найдено») сохраняется со свежим queried_at.
func (c *Cache) Resolve(ctx context.Context, address string) (*model.Coordinate, error) {
	if address == "" {
		return nil, nil
	}

	cached, err := c.storage.GetGeocodedAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	if cached != nil {
		if cached.Resolved() {
			return &model.Coordinate{
				Latitude:  *cached.Latitude,
				Longitude: *cached.Longitude,
			}, nil
		}
		if c.now().Sub(cached.QueriedAt) < c.negativeTTL {
			return nil, nil
		}
	}

	coord, provErr := c.provider.FetchCoordinates(ctx, address)
	if provErr != nil {
		// Сбой провайдера понижается до «адрес не найден» и кешируется,
		// запрос вызывающей стороны не падает.
		c.logger.Warn("geocoder provider failed",
			zap.String("address", address), zap.Error(provErr))
		coord = nil
	}

	rec := &model.GeocodedAddress{
		Address:   address,
		QueriedAt: c.now(),
	}
	if coord != nil {
		rec.Latitude = &coord.Latitude
		rec.Longitude = &coord.Longitude
	}

	if err := c.storage.SaveGeocodedAddress(ctx, rec); err != nil {
		return nil, err
	}

	return coord, nil
}
