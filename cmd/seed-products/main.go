// seed-products loads the product catalog from a YAML file: tablet types,
// products with their packaging configuration, machines, app settings and the
// first admin account. Every entry is an upsert, so the tool is safe to re-run
// after editing the file.
//
// Usage: go run ./cmd/seed-products [seed.yaml]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"tablet-tracker/internal/app"
	"tablet-tracker/internal/config"
	"tablet-tracker/internal/core"
	"tablet-tracker/internal/db"
	"tablet-tracker/internal/logging"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const defaultSeedFile = "seed/catalog.yaml"

var operator = core.Actor{Name: "seed", Role: core.RoleAdmin}

type seedFile struct {
	Admin       *adminSeed              `yaml:"admin"`
	TabletTypes []app.TabletTypeRequest `yaml:"tablet_types"`
	Products    []app.ProductRequest    `yaml:"products"`
	Machines    []app.MachineRequest    `yaml:"machines"`
	Settings    map[string]string       `yaml:"settings"`
}

type adminSeed struct {
	Username string `yaml:"username"`
	FullName string `yaml:"full_name"`
	// PasswordEnv names the environment variable holding the initial password.
	PasswordEnv string `yaml:"password_env"`
}

// employees is the subset of core.EmployeeService the seeder needs.
type employees interface {
	GetByUsername(ctx context.Context, username string) (*core.Employee, error)
	Create(ctx context.Context, username, fullName, password string, role core.Role) (*core.Employee, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.LogLevel)

	path := defaultSeedFile
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open seed file: %v", err)
	}
	seed, err := loadSeed(f)
	f.Close()
	if err != nil {
		log.Fatalf("%s: %v", path, err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	services := app.NewServices(pool, cfg.BagCountTolerance, log)
	svc := app.NewAppService(services, app.NewLocalJobLocker(), log)

	if err := apply(ctx, svc, services.Employees, seed, os.Getenv, log); err != nil {
		log.Fatal(err)
	}
	log.WithField("file", path).Info("seed applied")
}

// loadSeed decodes a seed file, rejecting unknown keys so a typo does not
// silently drop a section.
func loadSeed(r io.Reader) (*seedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var seed seedFile
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("seed file is empty")
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &seed, nil
}

// apply writes the seed in dependency order: tablet types before the products
// that reference them.
func apply(ctx context.Context, svc app.ApplicationService, emp employees, seed *seedFile, getenv func(string) string, log logrus.FieldLogger) error {
	if seed.Admin != nil {
		if err := ensureAdmin(ctx, emp, *seed.Admin, getenv, log); err != nil {
			return err
		}
	}

	for _, tt := range seed.TabletTypes {
		id, err := svc.UpsertTabletType(ctx, operator, tt)
		if err != nil {
			return fmt.Errorf("tablet type %q: %w", tt.Name, err)
		}
		log.WithFields(logrus.Fields{"id": id, "item": tt.InventoryItemID}).Debug("tablet type")
	}
	for _, p := range seed.Products {
		if err := svc.UpsertProduct(ctx, operator, p); err != nil {
			return fmt.Errorf("product %q: %w", p.ProductName, err)
		}
	}
	for _, m := range seed.Machines {
		if _, err := svc.UpsertMachine(ctx, operator, m); err != nil {
			return fmt.Errorf("machine %q: %w", m.Name, err)
		}
	}

	keys := make([]string, 0, len(seed.Settings))
	for k := range seed.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := svc.SetSetting(ctx, operator, k, seed.Settings[k]); err != nil {
			return fmt.Errorf("setting %q: %w", k, err)
		}
	}

	log.WithFields(logrus.Fields{
		"tablet_types": len(seed.TabletTypes),
		"products":     len(seed.Products),
		"machines":     len(seed.Machines),
		"settings":     len(seed.Settings),
	}).Info("catalog seeded")
	return nil
}

// ensureAdmin creates the admin account unless the username already exists.
// An existing account keeps its password.
func ensureAdmin(ctx context.Context, emp employees, a adminSeed, getenv func(string) string, log logrus.FieldLogger) error {
	_, err := emp.GetByUsername(ctx, a.Username)
	if err == nil {
		log.WithField("username", a.Username).Info("admin already exists")
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	password := getenv(a.PasswordEnv)
	if a.PasswordEnv == "" || len(password) < 8 {
		return fmt.Errorf("admin %q: set %s to a password of at least 8 characters", a.Username, a.PasswordEnv)
	}
	e, err := emp.Create(ctx, a.Username, a.FullName, password, core.RoleAdmin)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.WithFields(logrus.Fields{"id": e.ID, "username": e.Username}).Info("admin created")
	return nil
}
