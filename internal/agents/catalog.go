package agents

import (
	"context"
	"io"
	"os"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
	"github.com/gocarina/gocsv"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Category is one row of the category table.
type Category struct {
	ID       int64 `csv:"category_id"`
	Level    int64 `csv:"level"`
	ParentID int64 `csv:"parent_category_id"`
}

// CategoryLookup resolves category ids. Implementations are read-only.
type CategoryLookup interface {
	Lookup(id int64) (Category, bool)
}

// Catalog is an in-memory category table.
type Catalog map[int64]Category

// Lookup implements CategoryLookup.
func (c Catalog) Lookup(id int64) (Category, bool) {
	cat, ok := c[id]
	return cat, ok
}

// NewCatalog indexes categories by id.
func NewCatalog(categories []Category) Catalog {
	c := make(Catalog, len(categories))
	for _, cat := range categories {
		c[cat.ID] = cat
	}
	return c
}

// ReadCategoriesCSV reads a headered CSV with category_id, level and
// parent_category_id columns. Empty cells read as zero.
func ReadCategoriesCSV(r io.Reader) (Catalog, error) {
	var categories []Category
	if err := gocsv.Unmarshal(r, &categories); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse category table")
	}
	return NewCatalog(categories), nil
}

// LoadCategoriesCSV reads the category table from a CSV file.
func LoadCategoriesCSV(path string) (Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open category table").
			WithDetail("path", path)
	}
	defer f.Close()

	catalog, err := ReadCategoriesCSV(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to load category table").
			WithDetail("path", path)
	}
	return catalog, nil
}

// LoadCategoriesPostgres reads the category table from Postgres. The query
// must select the id, the level and the parent id, in that order; null
// levels and parents read as zero.
func LoadCategoriesPostgres(ctx context.Context, dsn, query string) (Catalog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create connection pool")
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to query category table")
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var (
			id            int64
			level, parent *int64
		)
		if err := rows.Scan(&id, &level, &parent); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan category row")
		}
		cat := Category{ID: id}
		if level != nil {
			cat.Level = *level
		}
		if parent != nil {
			cat.ParentID = *parent
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read category table")
	}
	return NewCatalog(categories), nil
}
