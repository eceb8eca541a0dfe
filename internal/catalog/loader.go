package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// Catalog holds the read-only equipment collections. It is safe to share
// across sessions once loaded.
type Catalog struct {
	items    map[Category][]Item
	rejected map[Category]int
	missing  map[Category]bool
}

// New builds a catalog from already typed items, e.g. in tests.
func New(items map[Category][]Item) *Catalog {
	c := &Catalog{
		items:    make(map[Category][]Item, len(Categories)),
		rejected: make(map[Category]int),
		missing:  make(map[Category]bool),
	}
	for cat, list := range items {
		c.items[cat] = append([]Item(nil), list...)
	}
	return c
}

// Items returns the collection in file order. The slice is a copy.
func (c *Catalog) Items(cat Category) []Item {
	if c == nil {
		return nil
	}
	return append([]Item(nil), c.items[cat]...)
}

// Len returns the number of items in the collection.
func (c *Catalog) Len(cat Category) int {
	if c == nil {
		return 0
	}
	return len(c.items[cat])
}

// Rejected returns how many malformed records were skipped at load.
func (c *Catalog) Rejected(cat Category) int {
	return c.rejected[cat]
}

// Missing reports whether the category file was absent.
func (c *Catalog) Missing(cat Category) bool {
	return c.missing[cat]
}

// fileNames lists accepted file names per category, preferred first.
var fileNames = map[Category][]string{
	Subwoofers:  {"subwoofers.json", "Subwoofer_db.json"},
	Amplifiers:  {"amplifiers.json"},
	Batteries:   {"batteries.json"},
	Alternators: {"alternators.json"},
	HeadUnits:   {"head_units.json"},
	Processors:  {"processors.json"},
}

type loadResult struct {
	items    []Item
	rejected int
	missing  bool
}

// Load reads every category file under dir concurrently. A missing or
// unparsable file yields an empty collection and a warning; a malformed
// record is skipped with a warning. Only context cancellation fails Load.
func Load(ctx context.Context, dir string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "catalog")
	v := validator.New()

	results := make([]loadResult, len(Categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range Categories {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = loadCategory(dir, cat, v, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	c := New(nil)
	for i, cat := range Categories {
		c.items[cat] = results[i].items
		c.rejected[cat] = results[i].rejected
		c.missing[cat] = results[i].missing
		logger.Info("catalog loaded",
			"category", cat,
			"items", len(results[i].items),
			"rejected", results[i].rejected)
	}
	return c, nil
}

func loadCategory(dir string, cat Category, v *validator.Validate, logger *slog.Logger) loadResult {
	path, data, err := readFirst(dir, fileNames[cat])
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("catalog file missing, using empty collection",
				"category", cat,
				"dir", dir)
			return loadResult{missing: true}
		}
		logger.Warn("catalog file unreadable, using empty collection",
			"category", cat,
			"error", err)
		return loadResult{}
	}

	var items []Item
	var rejected int
	switch cat {
	case Subwoofers:
		items, rejected, err = decode[Subwoofer](data, v)
	case Amplifiers:
		items, rejected, err = decode[Amplifier](data, v)
	case Batteries:
		items, rejected, err = decode[Battery](data, v)
	case Alternators:
		items, rejected, err = decode[Alternator](data, v)
	case HeadUnits:
		items, rejected, err = decode[HeadUnit](data, v)
	case Processors:
		items, rejected, err = decode[Processor](data, v)
	}
	if err != nil {
		logger.Warn("catalog file invalid, using empty collection",
			"category", cat,
			"path", path,
			"error", err)
		return loadResult{}
	}
	if rejected > 0 {
		logger.Warn("malformed catalog records skipped",
			"category", cat,
			"path", path,
			"rejected", rejected)
	}
	return loadResult{items: items, rejected: rejected}
}

func readFirst(dir string, names []string) (string, []byte, error) {
	lastErr := error(fs.ErrNotExist)
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err == nil {
			return path, data, nil
		}
		lastErr = err
		if !errors.Is(err, fs.ErrNotExist) {
			return path, nil, err
		}
	}
	return "", nil, lastErr
}

// decode parses a JSON array of records. Each element is decoded and
// validated on its own so one bad record does not discard the file.
func decode[T Item](data []byte, v *validator.Validate) ([]Item, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("parsing array: %w", err)
	}

	items := make([]Item, 0, len(raw))
	rejected := 0
	for _, msg := range raw {
		var rec T
		if err := json.Unmarshal(msg, &rec); err != nil {
			rejected++
			continue
		}
		if err := v.Struct(rec); err != nil {
			rejected++
			continue
		}
		items = append(items, rec)
	}
	return items, rejected, nil
}
