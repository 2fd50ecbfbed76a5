package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/foodcart/foodcart-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса фудкарт.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/order", h.CreateOrder)
		r.Get("/products", h.GetProducts)

		r.Route("/manager", func(r chi.Router) {
			r.Get("/orders", h.GetManagerOrders)
			r.Post("/orders/{orderID}/assign", h.AssignRestaurant)
			r.Post("/orders/{orderID}/status", h.UpdateOrderStatus)

			r.Get("/restaurants", h.GetRestaurants)
			r.Put("/menu/{restaurantID}/{productID}", h.SetMenuAvailability)
			r.Delete("/products/{productID}", h.DeleteProduct)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
