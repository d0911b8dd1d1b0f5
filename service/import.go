package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"cafemanager/apperr"
	"cafemanager/logger"
	"cafemanager/model"
	"cafemanager/reconcile"
	"cafemanager/store"
)

// Columns of the menu import sheet, after the header row.
const (
	colCategory = iota
	colName
	colDescription
	colPrice
	colSmall
	colMedium
	colLarge
)

type ImportSkip struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	CategoriesCreated int          `json:"categoriesCreated"`
	ItemsCreated      int          `json:"itemsCreated"`
	Skipped           []ImportSkip `json:"skipped"`
}

type importRow struct {
	line     int
	category string
	input    store.MenuItemInput
}

// ImportXLSX reads the first sheet of an xlsx workbook and adds every valid
// row as a new menu item. Categories named in the sheet are created when the
// cafe does not have them yet. Invalid rows are skipped and reported.
func (s *MenuService) ImportXLSX(ctx context.Context, cafeID string, r io.Reader) (*ImportResult, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation("Failed to parse Excel file").WithCode("INVALID_SPREADSHEET")
	}
	defer xl.Close()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation("Excel file has no sheets").WithCode("INVALID_SPREADSHEET")
	}
	rows, err := xl.GetRows(sheets[0])
	if err != nil || len(rows) < 2 {
		return nil, apperr.Validation("Excel must have at least one row of data").WithCode("INVALID_SPREADSHEET")
	}

	result := &ImportResult{Skipped: []ImportSkip{}}
	var parsed []importRow
	for i, cells := range rows[1:] {
		line := i + 2
		row, reason := parseImportRow(line, cells)
		if reason != "" {
			result.Skipped = append(result.Skipped, ImportSkip{Row: line, Reason: reason})
			continue
		}
		parsed = append(parsed, row)
	}
	if len(parsed) == 0 {
		return result, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, created, err := ensureCategories(tx, cafeID, parsed)
		if err != nil {
			return err
		}
		result.CategoriesCreated = created

		inputs := make([]store.MenuItemInput, len(parsed))
		for i, row := range parsed {
			categoryID := ids[strings.ToLower(row.category)]
			row.input.CategoryID = &categoryID
			inputs[i] = row.input
		}

		res, err := reconcile.Apply[store.MenuItemInput, model.MenuItem](ctx, tx, cafeID, inputs, store.MenuItemStore{}, s.options("menu_item"))
		if err != nil {
			return err
		}
		result.ItemsCreated = len(res.Created)
		return nil
	})
	if err := s.finishSave(ctx, "menu_item", cafeID, err); err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Int("items", result.ItemsCreated).
		Int("categories", result.CategoriesCreated).
		Int("skipped", len(result.Skipped)).
		Msg("menu imported")
	return result, nil
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return strings.TrimSpace(cells[i])
	}
	return ""
}

func parseImportRow(line int, cells []string) (importRow, string) {
	category := cell(cells, colCategory)
	name := cell(cells, colName)
	if category == "" || name == "" {
		return importRow{}, "category and name are required"
	}

	input := store.MenuItemInput{
		Meta: reconcile.Meta{ID: fmt.Sprintf("%simport_%d", reconcile.TempPrefix, line), Status: reconcile.StatusNew},
		Name: &name,
	}
	if desc := cell(cells, colDescription); desc != "" {
		input.Description = &desc
	}

	sizes := map[model.Size]float64{}
	for col, size := range map[int]model.Size{colSmall: model.SizeSmall, colMedium: model.SizeMedium, colLarge: model.SizeLarge} {
		raw := cell(cells, col)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return importRow{}, fmt.Sprintf("invalid %s price %q", strings.ToLower(string(size)), raw)
		}
		sizes[size] = v
	}

	hasSizes := len(sizes) > 0
	input.HasSizes = &hasSizes
	if hasSizes {
		input.Sizes = sizes
	} else {
		raw := cell(cells, colPrice)
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return importRow{}, fmt.Sprintf("invalid price %q", raw)
		}
		input.Price = &v
	}
	return importRow{line: line, category: category, input: input}, ""
}

// ensureCategories maps every category name used by rows (case-insensitive)
// to an id, creating the missing ones after the cafe's last category.
func ensureCategories(tx *gorm.DB, cafeID string, rows []importRow) (map[string]string, int, error) {
	var existing []model.Category
	if err := tx.Where("cafe_id = ?", cafeID).Order("sort_order ASC").Find(&existing).Error; err != nil {
		return nil, 0, err
	}

	ids := make(map[string]string, len(existing))
	next := 0
	for _, c := range existing {
		key := strings.ToLower(c.Name)
		if _, ok := ids[key]; !ok {
			ids[key] = c.ID
		}
		if c.Order >= next {
			next = c.Order + 1
		}
	}

	created := 0
	for _, row := range rows {
		key := strings.ToLower(row.category)
		if _, ok := ids[key]; ok {
			continue
		}
		category := model.Category{Name: row.category, Order: next, CafeID: cafeID}
		if err := tx.Create(&category).Error; err != nil {
			return nil, 0, err
		}
		ids[key] = category.ID
		next++
		created++
	}
	return ids, created, nil
}
