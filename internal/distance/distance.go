// Package distance считает расстояние по дуге большого круга.
package distance

import (
	"math"

	"github.com/foodcart/foodcart-system/internal/model"
)

// earthRadiusKm — средний радиус Земли.
const earthRadiusKm = 6371.0

// Km возвращает расстояние между двумя точками в километрах по формуле
// гаверсинусов. Результат не округляется: округление для отображения
// выполняет вызывающая сторона, сортировка идёт по точному значению.
func Km(a, b model.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
