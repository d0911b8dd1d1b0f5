package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafemanager/apperr"
	"cafemanager/database/dbtest"
	"cafemanager/model"
	"cafemanager/reconcile"
)

func ptr[T any](v T) *T { return &v }

func TestMenuItemCreateWithSizes(t *testing.T) {
	db := dbtest.New(t)
	_, cafe := dbtest.Manager(t, db, "m@example.com")
	cat := model.Category{Name: "Coffee", CafeID: cafe.ID}
	require.NoError(t, db.Create(&cat).Error)

	rows := []MenuItemInput{{
		Meta:       reconcile.Meta{ID: "temp_1", Status: reconcile.StatusNew},
		Name:       ptr("Latte"),
		CategoryID: &cat.ID,
		HasSizes:   ptr(true),
		Price:      ptr(9.0),
		Sizes:      map[model.Size]float64{model.SizeMedium: 4.5, model.SizeLarge: 5},
	}}
	res, err := reconcile.Apply(context.Background(), db, cafe.ID, rows, MenuItemStore{}, reconcile.Options{})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	var item model.MenuItem
	require.NoError(t, db.Preload("Prices").First(&item, "id = ?", res.IDMap["temp_1"]).Error)
	assert.True(t, item.HasSizes)
	assert.True(t, item.IsAvailable)
	assert.Nil(t, item.Price)
	require.Len(t, item.Prices, 2)
}

func TestMenuItemUpdateReplacesSizes(t *testing.T) {
	db := dbtest.New(t)
	_, cafe := dbtest.Manager(t, db, "m@example.com")
	cat := model.Category{Name: "Coffee", CafeID: cafe.ID}
	require.NoError(t, db.Create(&cat).Error)
	item := model.MenuItem{Name: "Latte", CategoryID: cat.ID, HasSizes: true, Prices: []model.Price{
		{Size: model.SizeSmall, Price: 3},
		{Size: model.SizeLarge, Price: 5},
	}}
	require.NoError(t, db.Create(&item).Error)

	n, err := MenuItemStore{}.Update(db, cafe.ID, item.ID, MenuItemInput{
		Name:  ptr("Flat white"),
		Sizes: map[model.Size]float64{model.SizeMedium: 4},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var got model.MenuItem
	require.NoError(t, db.Preload("Prices").First(&got, "id = ?", item.ID).Error)
	assert.Equal(t, "Flat white", got.Name)
	require.Len(t, got.Prices, 1)
	assert.Equal(t, model.SizeMedium, got.Prices[0].Size)

	n, err = MenuItemStore{}.Update(db, cafe.ID, item.ID, MenuItemInput{HasSizes: ptr(false), Price: ptr(3.5)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	var unsized model.MenuItem
	require.NoError(t, db.Preload("Prices").First(&unsized, "id = ?", item.ID).Error)
	assert.False(t, unsized.HasSizes)
	assert.Empty(t, unsized.Prices)
	require.NotNil(t, unsized.Price)
	assert.Equal(t, 3.5, *unsized.Price)
}

func TestMenuItemSizeToggleDropsOldPrices(t *testing.T) {
	db := dbtest.New(t)
	_, cafe := dbtest.Manager(t, db, "m@example.com")
	cat := model.Category{Name: "Coffee", CafeID: cafe.ID}
	require.NoError(t, db.Create(&cat).Error)
	item := model.MenuItem{Name: "Mocha", CategoryID: cat.ID, HasSizes: true, Prices: []model.Price{
		{Size: model.SizeMedium, Price: 4},
	}}
	require.NoError(t, db.Create(&item).Error)

	_, err := MenuItemStore{}.Update(db, cafe.ID, item.ID, MenuItemInput{HasSizes: ptr(false)})
	require.NoError(t, err)

	var prices int64
	require.NoError(t, db.Model(&model.Price{}).Where("menu_item_id = ?", item.ID).Count(&prices).Error)
	assert.Zero(t, prices)

	_, err = MenuItemStore{}.Update(db, cafe.ID, item.ID, MenuItemInput{HasSizes: ptr(true)})
	require.NoError(t, err)

	var resized model.MenuItem
	require.NoError(t, db.Preload("Prices").First(&resized, "id = ?", item.ID).Error)
	assert.True(t, resized.HasSizes)
	assert.Empty(t, resized.Prices)
	assert.Nil(t, resized.Price)
}

func TestMenuItemUpdateOtherCafeIsNoop(t *testing.T) {
	db := dbtest.New(t)
	_, mine := dbtest.Manager(t, db, "mine@example.com")
	_, theirs := dbtest.Manager(t, db, "theirs@example.com")
	cat := model.Category{Name: "Tea", CafeID: theirs.ID}
	require.NoError(t, db.Create(&cat).Error)
	item := model.MenuItem{Name: "Green", CategoryID: cat.ID, Price: ptr(2.0)}
	require.NoError(t, db.Create(&item).Error)

	n, err := MenuItemStore{}.Update(db, mine.ID, item.ID, MenuItemInput{Name: ptr("Mine now")})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = MenuItemStore{}.Delete(db, mine.ID, []string{item.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	var got model.MenuItem
	require.NoError(t, db.First(&got, "id = ?", item.ID).Error)
	assert.Equal(t, "Green", got.Name)
}

func TestCategoryDeleteCascadesToItems(t *testing.T) {
	db := dbtest.New(t)
	_, cafe := dbtest.Manager(t, db, "m@example.com")
	cat := model.Category{Name: "Coffee", CafeID: cafe.ID}
	require.NoError(t, db.Create(&cat).Error)
	item := model.MenuItem{Name: "Latte", CategoryID: cat.ID, HasSizes: true, Prices: []model.Price{{Size: model.SizeSmall, Price: 3}}}
	require.NoError(t, db.Create(&item).Error)

	n, err := CategoryStore{}.Delete(db, cafe.ID, []string{cat.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var items, prices int64
	db.Model(&model.MenuItem{}).Count(&items)
	db.Model(&model.Price{}).Count(&prices)
	assert.Zero(t, items)
	assert.Zero(t, prices)
}

func TestCheckCategories(t *testing.T) {
	db := dbtest.New(t)
	_, mine := dbtest.Manager(t, db, "mine@example.com")
	_, theirs := dbtest.Manager(t, db, "theirs@example.com")
	own := model.Category{Name: "Own", CafeID: mine.ID}
	other := model.Category{Name: "Other", CafeID: theirs.ID}
	require.NoError(t, db.Create(&own).Error)
	require.NoError(t, db.Create(&other).Error)

	ok := []MenuItemInput{{Meta: reconcile.Meta{Status: reconcile.StatusNew}, CategoryID: &own.ID}}
	require.NoError(t, MenuItemStore{}.CheckCategories(db, mine.ID, ok))

	bad := append(ok, MenuItemInput{Meta: reconcile.Meta{ID: "x", Status: reconcile.StatusModified}, CategoryID: &other.ID})
	err := MenuItemStore{}.CheckCategories(db, mine.ID, bad)
	require.Error(t, err)
	assert.Equal(t, "UNKNOWN_CATEGORY", apperr.From(err).Code)
}

func TestExtraValidate(t *testing.T) {
	assert.Error(t, ExtraInput{Name: ptr("Milk")}.Validate(reconcile.StatusNew))
	assert.Error(t, ExtraInput{Name: ptr("Milk"), Price: ptr(-1.0)}.Validate(reconcile.StatusModified))
	assert.NoError(t, ExtraInput{Price: ptr(1.0)}.Validate(reconcile.StatusModified))
	assert.NoError(t, ExtraInput{Name: ptr("Milk"), Price: ptr(0.5)}.Validate(reconcile.StatusNew))
}
