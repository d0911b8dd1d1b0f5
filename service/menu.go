package service

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"cafemanager/apperr"
	"cafemanager/cache"
	"cafemanager/logger"
	"cafemanager/metrics"
	"cafemanager/model"
	"cafemanager/reconcile"
	"cafemanager/store"
)

// MenuItemView is a menu item as the menu screen consumes it. Sized items
// carry all three sizes, 0 where no price row exists, and AvailableSizes
// lists the sizes that really have a price.
type MenuItemView struct {
	model.MenuItem
	Sizes          map[model.Size]float64 `json:"sizes,omitempty"`
	AvailableSizes []model.Size           `json:"availableSizes,omitempty"`
}

type Menu struct {
	Categories []model.Category `json:"categories"`
	MenuItems  []MenuItemView   `json:"menuItems"`
	Extras     []model.Extra    `json:"extras"`
}

type MenuService struct {
	db          *gorm.DB
	cache       cache.MenuCache
	metrics     *metrics.Metrics
	concurrency int
}

func NewMenuService(db *gorm.DB, menuCache cache.MenuCache, m *metrics.Metrics, concurrency int) *MenuService {
	if menuCache == nil {
		menuCache = cache.Nop{}
	}
	return &MenuService{db: db, cache: menuCache, metrics: m, concurrency: concurrency}
}

// Assemble returns the full menu of cafeID, from cache when possible.
func (s *MenuService) Assemble(ctx context.Context, cafeID string) (*Menu, error) {
	var menu Menu
	gen, err := s.cache.Generation(ctx, cafeID)
	cacheable := err == nil
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("menu cache generation read failed")
	}
	if cacheable {
		hit, err := s.cache.Get(ctx, cafeID, gen, &menu)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("menu cache read failed")
		}
		s.metrics.CacheLookup(hit)
		if hit {
			return &menu, nil
		}
	}

	var (
		categories []model.Category
		items      []model.MenuItem
		extras     []model.Extra
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).
			Where("cafe_id = ?", cafeID).
			Order("sort_order ASC").Order("created_at ASC").
			Find(&categories).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).
			Preload("Category").
			Preload("Prices").
			Where("category_id IN (?)", s.db.Model(&model.Category{}).Select("id").Where("cafe_id = ?", cafeID)).
			Order("created_at ASC").
			Find(&items).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).
			Where("cafe_id = ?", cafeID).
			Order("created_at ASC").
			Find(&extras).Error
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	menu = Menu{
		Categories: categories,
		MenuItems:  make([]MenuItemView, 0, len(items)),
		Extras:     extras,
	}
	for _, item := range items {
		menu.MenuItems = append(menu.MenuItems, viewOf(item))
	}

	if cacheable {
		if err := s.cache.Set(ctx, cafeID, gen, &menu); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("menu cache write failed")
		}
	}
	return &menu, nil
}

func viewOf(item model.MenuItem) MenuItemView {
	view := MenuItemView{MenuItem: item}
	if !item.HasSizes {
		return view
	}
	view.Sizes = make(map[model.Size]float64, len(model.Sizes))
	for _, size := range model.Sizes {
		view.Sizes[size] = 0
	}
	have := make(map[model.Size]bool, len(item.Prices))
	for _, p := range item.Prices {
		view.Sizes[p.Size] = p.Price
		have[p.Size] = true
	}
	view.AvailableSizes = []model.Size{}
	for _, size := range model.Sizes {
		if have[size] {
			view.AvailableSizes = append(view.AvailableSizes, size)
		}
	}
	return view
}

func (s *MenuService) SaveCategories(ctx context.Context, cafeID string, rows []store.CategoryInput) (*reconcile.Result[model.Category], error) {
	res, err := reconcile.Apply[store.CategoryInput, model.Category](ctx, s.db, cafeID, rows, store.CategoryStore{}, s.options("category"))
	return res, s.finishSave(ctx, "category", cafeID, err)
}

func (s *MenuService) SaveExtras(ctx context.Context, cafeID string, rows []store.ExtraInput) (*reconcile.Result[model.Extra], error) {
	res, err := reconcile.Apply[store.ExtraInput, model.Extra](ctx, s.db, cafeID, rows, store.ExtraStore{}, s.options("extra"))
	return res, s.finishSave(ctx, "extra", cafeID, err)
}

func (s *MenuService) SaveMenuItems(ctx context.Context, cafeID string, rows []store.MenuItemInput) (*reconcile.Result[model.MenuItem], error) {
	items := store.MenuItemStore{}
	if err := items.CheckCategories(s.db.WithContext(ctx), cafeID, rows); err != nil {
		return nil, err
	}
	res, err := reconcile.Apply[store.MenuItemInput, model.MenuItem](ctx, s.db, cafeID, rows, items, s.options("menu_item"))
	return res, s.finishSave(ctx, "menu_item", cafeID, err)
}

func (s *MenuService) options(entity string) reconcile.Options {
	return reconcile.Options{
		Concurrency: s.concurrency,
		Observe:     s.metrics.BatchObserver(entity),
	}
}

// finishSave invalidates the cached menu after a commit. A rollback caused
// by the database surfaces as an internal error; validation errors pass
// through untouched.
func (s *MenuService) finishSave(ctx context.Context, entity, cafeID string, err error) error {
	if err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			return err
		}
		s.metrics.BatchFailed(entity)
		logger.Ctx(ctx).Error().Err(err).Str("entity", entity).Msg("batch save rolled back")
		return apperr.Internal(err)
	}
	s.invalidate(ctx, cafeID)
	return nil
}

func (s *MenuService) invalidate(ctx context.Context, cafeID string) {
	if err := s.cache.Invalidate(ctx, cafeID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("menu cache invalidation failed")
	}
}
