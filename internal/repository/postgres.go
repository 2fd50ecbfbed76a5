// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/foodcart/foodcart-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrProductNotFound возвращается, если товар с указанным идентификатором не существует.
var (
	ErrProductNotFound = errors.New("product not found")
	// ErrProductInUse возвращается при попытке удалить товар, на который ссылаются позиции заказов.
	ErrProductInUse = errors.New("product referenced by order items")
	// ErrRestaurantNotFound возвращается, если ресторан не найден.
	ErrRestaurantNotFound = errors.New("restaurant not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotAssignable возвращается при попытке назначить ресторан заказу не в статусе NEW.
	ErrOrderNotAssignable = errors.New("order is not assignable")
	// ErrInvalidTransition возвращается при недопустимом переходе статуса заказа.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при сбоях сериализации и дедлоках.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
		}

		return err
	})
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetGeocodedAddress возвращает закешированный результат геокодирования
// или nil, если адрес ещё не запрашивался.
func (r *PostgresRepository) GetGeocodedAddress(ctx context.Context, address string) (*model.GeocodedAddress, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT address, latitude, longitude, queried_at FROM geocoded_addresses WHERE address = $1`,
		address,
	)

	var rec model.GeocodedAddress
	err := row.Scan(&rec.Address, &rec.Latitude, &rec.Longitude, &rec.QueriedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get geocoded address: %w", err)
	}

	return &rec, nil
}

// SaveGeocodedAddress сохраняет результат геокодирования. Повторное
// сохранение того же адреса перезаписывает координаты и queried_at.
func (r *PostgresRepository) SaveGeocodedAddress(ctx context.Context, rec *model.GeocodedAddress) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO geocoded_addresses (address, latitude, longitude, queried_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (address) DO UPDATE
		 SET latitude = EXCLUDED.latitude,
		     longitude = EXCLUDED.longitude,
		     queried_at = EXCLUDED.queried_at`,
		rec.Address, rec.Latitude, rec.Longitude, rec.QueriedAt,
	)
	if err != nil {
		return fmt.Errorf("save geocoded address: %w", err)
	}
	return nil
}

// ListAvailableProducts возвращает товары, которые готовит хотя бы один ресторан.
func (r *PostgresRepository) ListAvailableProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.price_kopecks, p.description, p.image_url, p.special_status,
		        c.id, c.name
		 FROM products p
		 LEFT JOIN product_categories c ON c.id = p.category_id
		 WHERE EXISTS (
		     SELECT 1 FROM menu_entries m
		     WHERE m.product_id = p.id AND m.availability
		 )
		 ORDER BY p.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var (
			p            model.Product
			categoryID   *int64
			categoryName *string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceKopecks, &p.Description,
			&p.ImageURL, &p.SpecialStatus, &categoryID, &categoryName); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if categoryID != nil && categoryName != nil {
			p.Category = &model.ProductCategory{ID: *categoryID, Name: *categoryName}
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// RestaurantsOfferingProducts возвращает для каждого товара список ресторанов,
// у которых он сейчас доступен. Один запрос на весь заказ.
func (r *PostgresRepository) RestaurantsOfferingProducts(ctx context.Context, productIDs []int64) (map[int64][]model.Restaurant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.product_id, rs.id, rs.name, rs.address, rs.contact_phone
		 FROM menu_entries m
		 JOIN restaurants rs ON rs.id = m.restaurant_id
		 WHERE m.product_id = ANY($1) AND m.availability
		 ORDER BY m.product_id, rs.id`,
		productIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select menu entries: %w", err)
	}
	defer rows.Close()

	res := make(map[int64][]model.Restaurant, len(productIDs))
	for rows.Next() {
		var (
			productID int64
			rest      model.Restaurant
		)
		if err := rows.Scan(&productID, &rest.ID, &rest.Name, &rest.Address, &rest.ContactPhone); err != nil {
			return nil, fmt.Errorf("scan menu entry: %w", err)
		}
		res[productID] = append(res[productID], rest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// SetMenuAvailability создаёт или обновляет позицию меню ресторана.
func (r *PostgresRepository) SetMenuAvailability(ctx context.Context, restaurantID, productID int64, availability bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO menu_entries (restaurant_id, product_id, availability)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (restaurant_id, product_id) DO UPDATE
		 SET availability = EXCLUDED.availability`,
		restaurantID, productID, availability,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			switch pgErr.ConstraintName {
			case "menu_entries_restaurant_id_fkey":
				return fmt.Errorf("%w: %d", ErrRestaurantNotFound, restaurantID)
			case "menu_entries_product_id_fkey":
				return fmt.Errorf("%w: %d", ErrProductNotFound, productID)
			}
		}
		return fmt.Errorf("upsert menu entry: %w", err)
	}
	return nil
}

// ListRestaurants возвращает все рестораны сети.
func (r *PostgresRepository) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, address, contact_phone FROM restaurants ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []model.Restaurant
	for rows.Next() {
		var rest model.Restaurant
		if err := rows.Scan(&rest.ID, &rest.Name, &rest.Address, &rest.ContactPhone); err != nil {
			return nil, fmt.Errorf("scan restaurant: %w", err)
		}
		restaurants = append(restaurants, rest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return restaurants, nil
}

// CreateOrder сохраняет заказ вместе с позициями в одной транзакции.
// Цена каждой позиции фиксируется из текущей цены товара. Если какой-то
// товар не существует, ни одна строка не сохраняется.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *model.Order) (int64, error) {
	var orderID int64

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		productIDs := make([]int64, 0, len(order.Items))
		for _, it := range order.Items {
			productIDs = append(productIDs, it.ProductID)
		}

		rows, err := tx.Query(ctx,
			`SELECT id, price_kopecks FROM products WHERE id = ANY($1)`,
			productIDs,
		)
		if err != nil {
			return fmt.Errorf("select product prices: %w", err)
		}

		prices := make(map[int64]int64, len(productIDs))
		for rows.Next() {
			var id, price int64
			if err := rows.Scan(&id, &price); err != nil {
				rows.Close()
				return fmt.Errorf("scan product price: %w", err)
			}
			prices[id] = price
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		for _, it := range order.Items {
			if _, ok := prices[it.ProductID]; !ok {
				return fmt.Errorf("%w: %d", ErrProductNotFound, it.ProductID)
			}
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (client_name, surname, phone, delivery_address, status, payment_method, customer_comment)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			order.ClientName, order.Surname, order.Phone, order.DeliveryAddress,
			string(model.OrderStatusNew), string(order.PaymentMethod), order.CustomerComment,
		).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, it := range order.Items {
			_, err := tx.Exec(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, price_at_purchase_kopecks)
				 VALUES ($1, $2, $3, $4)`,
				orderID, it.ProductID, it.Quantity, prices[it.ProductID],
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return orderID, nil
}

// GetOrderByID возвращает заказ с позициями.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, client_name, surname, phone, delivery_address, status,
		        payment_method, customer_comment, restaurant_id, created_at, called_at, delivered_at
		 FROM orders WHERE id = $1`,
		id,
	)

	var o model.Order
	var status, payment string
	err := row.Scan(&o.ID, &o.ClientName, &o.Surname, &o.Phone, &o.DeliveryAddress,
		&status, &payment, &o.CustomerComment, &o.RestaurantID, &o.CreatedAt, &o.CalledAt, &o.DeliveredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o.Status = model.OrderStatus(status)
	o.PaymentMethod = model.PaymentMethod(payment)

	items, err := r.loadOrderItems(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]

	return &o, nil
}

// ListActiveOrders возвращает заказы в статусах NEW и PREPARING
// в порядке создания, с позициями.
func (r *PostgresRepository) ListActiveOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, client_name, surname, phone, delivery_address, status,
		        payment_method, customer_comment, restaurant_id, created_at, called_at, delivered_at
		 FROM orders
		 WHERE status IN ($1, $2)
		 ORDER BY created_at`,
		string(model.OrderStatusNew), string(model.OrderStatusPreparing),
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	var ids []int64
	for rows.Next() {
		var o model.Order
		var status, payment string
		if err := rows.Scan(&o.ID, &o.ClientName, &o.Surname, &o.Phone, &o.DeliveryAddress,
			&status, &payment, &o.CustomerComment, &o.RestaurantID, &o.CreatedAt, &o.CalledAt, &o.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = model.OrderStatus(status)
		o.PaymentMethod = model.PaymentMethod(payment)
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(orders) == 0 {
		return nil, nil
	}

	items, err := r.loadOrderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func (r *PostgresRepository) loadOrderItems(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT oi.order_id, oi.product_id, p.name, oi.quantity, oi.price_at_purchase_kopecks
		 FROM order_items oi
		 JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = ANY($1)
		 ORDER BY oi.id`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	res := make(map[int64][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID int64
			it      model.OrderItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.PriceAtPurchaseKopecks); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		res[orderID] = append(res[orderID], it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AssignRestaurant назначает заказу ресторан и переводит его в PREPARING,
// фиксируя момент звонка клиенту. Допустимо только для заказов в статусе
// NEW без назначенного ресторана.
func (r *PostgresRepository) AssignRestaurant(ctx context.Context, orderID, restaurantID int64) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var status string
		var assigned *int64
		err = tx.QueryRow(ctx,
			`SELECT status, restaurant_id FROM orders WHERE id = $1 FOR UPDATE`,
			orderID,
		).Scan(&status, &assigned)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if model.OrderStatus(status) != model.OrderStatusNew || assigned != nil {
			return ErrOrderNotAssignable
		}

		var exists bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM restaurants WHERE id = $1)`,
			restaurantID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check restaurant: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %d", ErrRestaurantNotFound, restaurantID)
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders SET restaurant_id = $2, status = $3, called_at = now() WHERE id = $1`,
			orderID, restaurantID, string(model.OrderStatusPreparing),
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// UpdateOrderStatus переводит заказ в новый статус, проверяя допустимость
// перехода под блокировкой строки. Момент доставки фиксируется при
// переходе в COMPLETED.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID int64, to model.OrderStatus) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var status string
		err = tx.QueryRow(ctx,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`,
			orderID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !model.CanTransition(model.OrderStatus(status), to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, status, to)
		}

		if to == model.OrderStatusCompleted {
			_, err = tx.Exec(ctx,
				`UPDATE orders SET status = $2, delivered_at = now() WHERE id = $1`,
				orderID, string(to),
			)
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE orders SET status = $2 WHERE id = $1`,
				orderID, string(to),
			)
		}
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// DeleteProduct удаляет товар из каталога. Товар, на который ссылаются
// позиции заказов, удалить нельзя: исторические цены должны сохраняться.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, productID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM products WHERE id = $1`,
		productID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%w: %d", ErrProductInUse, productID)
		}
		return fmt.Errorf("delete product: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrProductNotFound, productID)
	}

	return nil
}
