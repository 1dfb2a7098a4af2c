package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const settingCardsPerTurn = "cards_per_turn"

// ProductService resolves product packaging configuration, tablet types, machines
// and process-wide settings. It replaces hard-coded packaging constants.
type ProductService interface {
	// ProductConfig returns the packaging configuration for a product. A missing
	// product is a *ConfigError.
	ProductConfig(ctx context.Context, productName string) (*ProductConfig, error)

	TabletTypes(ctx context.Context) ([]TabletType, error)
	Products(ctx context.Context) ([]ProductConfig, error)
	Machines(ctx context.Context) ([]Machine, error)

	// CardsPerTurn returns the machine's cards-per-turn, falling back to the
	// cards_per_turn setting when the machine is unknown or has no value.
	CardsPerTurn(ctx context.Context, machineID *int) (int, error)

	UpsertTabletType(ctx context.Context, tt TabletType) (int, error)
	// UpsertProduct links a product to the tablet type with the given inventory item id.
	UpsertProduct(ctx context.Context, p ProductConfig, inventoryItemID string) error
	UpsertMachine(ctx context.Context, m Machine) (int, error)
	SetSetting(ctx context.Context, key, value string) error
}

type productService struct {
	pool *pgxpool.Pool
}

// NewProductService constructs a ProductService backed by PostgreSQL.
func NewProductService(pool *pgxpool.Pool) ProductService {
	return &productService{pool: pool}
}

func (s *productService) ProductConfig(ctx context.Context, productName string) (*ProductConfig, error) {
	return productConfig(ctx, s.pool, productName)
}

func productConfig(ctx context.Context, q querier, productName string) (*ProductConfig, error) {
	p := &ProductConfig{ProductName: productName}
	err := q.QueryRow(ctx, `
		SELECT pd.tablet_type_id, tt.inventory_item_id,
		       COALESCE(pd.packages_per_display, 0), COALESCE(pd.tablets_per_package, 0),
		       COALESCE(pd.tablets_per_bottle, 0)
		FROM product_details pd
		LEFT JOIN tablet_types tt ON tt.id = pd.tablet_type_id
		WHERE pd.product_name = $1`,
		productName,
	).Scan(&p.TabletTypeID, &p.InventoryItemID, &p.PackagesPerDisplay, &p.TabletsPerPackage, &p.TabletsPerBottle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ConfigError{Product: productName, Field: "product configuration"}
		}
		return nil, fmt.Errorf("get product configuration %q: %w", productName, err)
	}
	return p, nil
}

func (s *productService) CardsPerTurn(ctx context.Context, machineID *int) (int, error) {
	return cardsPerTurn(ctx, s.pool, machineID)
}

func cardsPerTurn(ctx context.Context, q querier, machineID *int) (int, error) {
	if machineID != nil {
		var v *int
		err := q.QueryRow(ctx, "SELECT cards_per_turn FROM machines WHERE id = $1", *machineID).Scan(&v)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("get machine %d: %w", *machineID, err)
		}
		if v != nil && *v > 0 {
			return *v, nil
		}
	}

	var raw string
	err := q.QueryRow(ctx,
		"SELECT setting_value FROM app_settings WHERE setting_key = $1", settingCardsPerTurn,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get setting %s: %w", settingCardsPerTurn, err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("setting %s is not a number: %q", settingCardsPerTurn, raw)
	}
	return n, nil
}

func (s *productService) TabletTypes(ctx context.Context) ([]TabletType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tablet_type_name, inventory_item_id, category
		FROM tablet_types
		ORDER BY tablet_type_name`)
	if err != nil {
		return nil, fmt.Errorf("list tablet types: %w", err)
	}
	defer rows.Close()

	var out []TabletType
	for rows.Next() {
		var tt TabletType
		if err := rows.Scan(&tt.ID, &tt.Name, &tt.InventoryItemID, &tt.Category); err != nil {
			return nil, fmt.Errorf("scan tablet type: %w", err)
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}

func (s *productService) Products(ctx context.Context) ([]ProductConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pd.product_name, pd.tablet_type_id, tt.inventory_item_id,
		       COALESCE(pd.packages_per_display, 0), COALESCE(pd.tablets_per_package, 0),
		       COALESCE(pd.tablets_per_bottle, 0)
		FROM product_details pd
		LEFT JOIN tablet_types tt ON tt.id = pd.tablet_type_id
		ORDER BY pd.product_name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []ProductConfig
	for rows.Next() {
		var p ProductConfig
		if err := rows.Scan(&p.ProductName, &p.TabletTypeID, &p.InventoryItemID,
			&p.PackagesPerDisplay, &p.TabletsPerPackage, &p.TabletsPerBottle); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *productService) Machines(ctx context.Context) ([]Machine, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, machine_name, cards_per_turn, is_active FROM machines ORDER BY machine_name")
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	var out []Machine
	for rows.Next() {
		var m Machine
		if err := rows.Scan(&m.ID, &m.Name, &m.CardsPerTurn, &m.IsActive); err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *productService) UpsertTabletType(ctx context.Context, tt TabletType) (int, error) {
	if tt.Name == "" {
		return 0, fmt.Errorf("tablet type name is required")
	}
	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tablet_types (tablet_type_name, inventory_item_id, category)
		VALUES ($1, $2, $3)
		ON CONFLICT (tablet_type_name)
		DO UPDATE SET inventory_item_id = EXCLUDED.inventory_item_id, category = EXCLUDED.category
		RETURNING id`,
		tt.Name, tt.InventoryItemID, tt.Category,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert tablet type %q: %w", tt.Name, err)
	}
	return id, nil
}

func (s *productService) UpsertProduct(ctx context.Context, p ProductConfig, inventoryItemID string) error {
	if p.ProductName == "" {
		return fmt.Errorf("product name is required")
	}
	var tabletTypeID int
	if err := s.pool.QueryRow(ctx,
		"SELECT id FROM tablet_types WHERE inventory_item_id = $1", inventoryItemID,
	).Scan(&tabletTypeID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %q: tablet type with item %s %w", p.ProductName, inventoryItemID, ErrNotFound)
		}
		return fmt.Errorf("resolve tablet type for product %q: %w", p.ProductName, err)
	}

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO product_details (product_name, tablet_type_id, packages_per_display, tablets_per_package, tablets_per_bottle)
		VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, 0), NULLIF($5, 0))
		ON CONFLICT (product_name)
		DO UPDATE SET tablet_type_id = EXCLUDED.tablet_type_id,
		              packages_per_display = EXCLUDED.packages_per_display,
		              tablets_per_package = EXCLUDED.tablets_per_package,
		              tablets_per_bottle = EXCLUDED.tablets_per_bottle`,
		p.ProductName, tabletTypeID, p.PackagesPerDisplay, p.TabletsPerPackage, p.TabletsPerBottle,
	); err != nil {
		return fmt.Errorf("upsert product %q: %w", p.ProductName, err)
	}
	return nil
}

func (s *productService) UpsertMachine(ctx context.Context, m Machine) (int, error) {
	if m.Name == "" {
		return 0, fmt.Errorf("machine name is required")
	}
	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO machines (machine_name, cards_per_turn, is_active)
		VALUES ($1, $2, $3)
		ON CONFLICT (machine_name)
		DO UPDATE SET cards_per_turn = EXCLUDED.cards_per_turn, is_active = EXCLUDED.is_active
		RETURNING id`,
		m.Name, m.CardsPerTurn, m.IsActive,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert machine %q: %w", m.Name, err)
	}
	return id, nil
}

func (s *productService) SetSetting(ctx context.Context, key, value string) error {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO app_settings (setting_key, setting_value)
		VALUES ($1, $2)
		ON CONFLICT (setting_key) DO UPDATE SET setting_value = EXCLUDED.setting_value`,
		key, value,
	); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
