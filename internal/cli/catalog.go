package cli

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/EladReuveny/electronics-store-api/internal/domain"
	"github.com/EladReuveny/electronics-store-api/internal/service"
	"github.com/EladReuveny/electronics-store-api/migrations"
	"github.com/EladReuveny/electronics-store-api/pkg/database"
	"github.com/EladReuveny/electronics-store-api/pkg/pagination"
)

// seedNamespace derives stable product IDs so reseeding updates rather than duplicates.
var seedNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://electronics-store-api/seed"))

type seedProduct struct {
	name     string
	desc     string
	price    string
	stock    int
	category domain.Category
}

var seedCatalog = []seedProduct{
	{"Pixel 9", "6.3-inch OLED, 128GB", "799.00", 40, domain.CategorySmartPhone},
	{"Galaxy S24", "6.2-inch AMOLED, 256GB", "859.99", 35, domain.CategorySmartPhone},
	{"iPhone 16", "6.1-inch Super Retina XDR, 128GB", "829.00", 50, domain.CategorySmartPhone},
	{"iPad Air 11", "M2 chip, 128GB, Wi-Fi", "599.00", 25, domain.CategoryTablet},
	{"Galaxy Tab S9", "11-inch AMOLED, 128GB", "719.99", 20, domain.CategoryTablet},
	{"MacBook Air 13", "M3 chip, 16GB RAM, 512GB SSD", "1299.00", 15, domain.CategoryLaptop},
	{"ThinkPad X1 Carbon", "Gen 12, 32GB RAM, 1TB SSD", "1849.00", 10, domain.CategoryLaptop},
	{"XPS 15", "Core Ultra 7, 32GB RAM, OLED", "1999.99", 8, domain.CategoryLaptop},
	{"Bravia 7 55\"", "Mini LED 4K HDR", "1499.00", 12, domain.CategoryTV},
	{"OLED C4 65\"", "4K OLED evo, 144Hz", "2199.99", 6, domain.CategoryTV},
}

func seedInputs() []service.UpsertProductInput {
	inputs := make([]service.UpsertProductInput, len(seedCatalog))
	for i, p := range seedCatalog {
		inputs[i] = service.UpsertProductInput{
			ID:            uuid.NewSHA1(seedNamespace, []byte(p.name)).String(),
			Name:          p.name,
			Description:   p.desc,
			Price:         decimal.RequireFromString(p.price),
			StockQuantity: p.stock,
			Category:      string(p.category),
		}
	}
	return inputs
}

func newMigrateCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if s.store.Pool == nil {
				return fmt.Errorf("migrate needs the postgres store")
			}
			applied, err := database.RunMigrations(cmd.Context(), s.store.Pool, migrations.FS, s.logger)
			if err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			return s.print(map[string]int{"applied": applied})
		},
	}
}

func newSeedCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the sample electronics catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inserted, updated := 0, 0
			for _, in := range seedInputs() {
				_, created, err := s.engine.Catalog.UpsertProduct(cmd.Context(), in)
				if err != nil {
					return fmt.Errorf("seed %s: %w", in.Name, err)
				}
				if created {
					inserted++
				} else {
					updated++
				}
			}
			s.logger.Info("catalog seeded", slog.Int("inserted", inserted), slog.Int("updated", updated))
			return s.print(map[string]int{"inserted": inserted, "updated": updated})
		},
	}
}

func newProductsCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Inspect catalog products",
	}

	var page, perPage int
	list := &cobra.Command{
		Use:   "list",
		Short: "List products by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := pageParams(page, perPage)
			products, total, err := s.engine.Catalog.ListProducts(cmd.Context(), params.Page, params.PerPage)
			if err != nil {
				return err
			}
			return s.print(pagination.NewResult(products, total, params))
		},
	}
	addPageFlags(list, &page, &perPage)

	get := &cobra.Command{
		Use:   "get <productId>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("product", args[0])
			if err != nil {
				return err
			}
			product, err := s.engine.Catalog.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			return s.print(product)
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

func newProvisionCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "provision <userId>",
		Short: "Create a user's shopping cart and wish list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			result, err := s.engine.Provisioning.ProvisionUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return s.print(result)
		},
	}
}

func addPageFlags(cmd *cobra.Command, page, perPage *int) {
	cmd.Flags().IntVar(page, "page", 1, "page number")
	cmd.Flags().IntVar(perPage, "per-page", 20, "items per page (max 100)")
}

func pageParams(page, perPage int) pagination.Params {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	return pagination.Params{Page: page, PerPage: min(perPage, 100)}
}
