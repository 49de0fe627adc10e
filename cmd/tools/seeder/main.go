package main

import (
	"database/sql"
	"flag"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fafa-store/internal/obs"
)

type seedProduct struct {
	Name        string
	Slug        string
	Category    string
	Brand       string
	Description string
	Price       string
	Stock       int
	Sizes       []string
	Images      []string
	Featured    bool
	Banner      string
}

var products = []seedProduct{
	{
		Name: "Robe Kabyle Brodée", Slug: "robe-kabyle-brodee", Category: "Robes", Brand: "Fafa",
		Description: "Robe kabyle traditionnelle brodée à la main.", Price: "8500.00", Stock: 12,
		Sizes: []string{"S", "M", "L", "XL"}, Images: []string{"/images/robe-kabyle-1.jpg", "/images/robe-kabyle-2.jpg"},
		Featured: true, Banner: "/images/banner-robe-kabyle.jpg",
	},
	{
		Name: "Karakou Velours", Slug: "karakou-velours", Category: "Ensembles", Brand: "Fafa",
		Description: "Karakou algérois en velours avec broderie dorée.", Price: "14500.00", Stock: 5,
		Sizes: []string{"M", "L"}, Images: []string{"/images/karakou-1.jpg"}, Featured: true, Banner: "/images/banner-karakou.jpg",
	},
	{
		Name: "Djellaba Lin", Slug: "djellaba-lin", Category: "Djellabas", Brand: "Atlas",
		Description: "Djellaba légère en lin pour l'été.", Price: "6200.00", Stock: 20,
		Sizes: []string{"S", "M", "L"}, Images: []string{"/images/djellaba-lin-1.jpg"},
	},
	{
		Name: "Foulard Soie", Slug: "foulard-soie", Category: "Accessoires", Brand: "Atlas",
		Description: "Foulard en soie imprimé.", Price: "1800.00", Stock: 40,
		Images: []string{"/images/foulard-soie-1.jpg"},
	},
	{
		Name: "Ceinture Louisa", Slug: "ceinture-louisa", Category: "Accessoires", Brand: "Fafa",
		Description: "Ceinture dorée pour robe traditionnelle.", Price: "2500.00", Stock: 0,
		Images: []string{"/images/ceinture-louisa-1.jpg"},
	},
}

type seedUser struct {
	Name  string
	Email string
	Role  string
}

var users = []seedUser{
	{"Fafa Admin", "admin@fafa.dz", "admin"},
	{"Amina Benali", "amina@example.dz", "customer"},
	{"Karim Touati", "karim@example.dz", "customer"},
}

func main() {
	reset := flag.Bool("reset", false, "delete existing products before seeding")
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()
	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, relying on environment variables")
	}
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	if *reset {
		if _, err := db.Exec(`DELETE FROM products`); err != nil {
			logger.Fatal().Err(err).Msg("reset products")
		}
	}
	seedUsers(db, logger)
	seedProducts(db, logger)
	logger.Info().Msg("seeding completed")
}

func seedUsers(db *sql.DB, logger zerolog.Logger) {
	for _, u := range users {
		_, err := db.Exec(`
			INSERT INTO users (id, name, email, role)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING`,
			uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+u.Email)), u.Name, u.Email, u.Role)
		if err != nil {
			logger.Error().Err(err).Str("email", u.Email).Msg("seed user")
		}
	}
	logger.Info().Int("count", len(users)).Msg("users seeded")
}

func seedProducts(db *sql.DB, logger zerolog.Logger) {
	for _, p := range products {
		var banner *string
		if p.Banner != "" {
			banner = &p.Banner
		}
		_, err := db.Exec(`
			INSERT INTO products (id, name, slug, category, brand, description, stock, images, is_featured, banner, price, sizes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12)
			ON CONFLICT (slug) DO UPDATE SET
				price = EXCLUDED.price,
				stock = EXCLUDED.stock,
				images = EXCLUDED.images,
				sizes = EXCLUDED.sizes`,
			uuid.New(), p.Name, p.Slug, p.Category, p.Brand, p.Description, p.Stock,
			pq.Array(p.Images), p.Featured, banner, p.Price, pq.Array(nonNil(p.Sizes)))
		if err != nil {
			logger.Error().Err(err).Str("slug", p.Slug).Msg("seed product")
		}
	}
	logger.Info().Int("count", len(products)).Msg("products seeded")
}

// nonNil keeps pq from sending NULL for the NOT NULL array columns.
func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
