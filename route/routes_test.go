package route

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cafemanager/cache"
	"cafemanager/config"
	"cafemanager/database/dbtest"
	"cafemanager/metrics"
	"cafemanager/model"
	"cafemanager/storage"
	"cafemanager/utils"
	"cafemanager/ws"
)

type api struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		GinMode:          gin.TestMode,
		AllowedOrigins:   []string{"http://localhost:3000"},
		StorageDisk:      "local",
		UploadDir:        t.TempDir(),
		UploadURL:        "/uploads",
		BatchConcurrency: 4,
		FrontendDir:      t.TempDir(),
	}
	db := dbtest.New(t)
	router := New(Deps{
		Config:  cfg,
		DB:      db,
		Logger:  zerolog.Nop(),
		Metrics: metrics.New(),
		Cache:   cache.Nop{},
		Disk:    storage.NewLocal(cfg.UploadDir, cfg.UploadURL),
		Hub:     ws.NewTableHub(cfg.AllowedOrigins),
		Tokens:  utils.NewTokenIssuer("test-secret", time.Hour, 2*time.Hour),
	})
	return &api{t: t, db: db, router: router}
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// signUp registers and logs in, returning the access token.
func (a *api) signUp(email string, role model.UserRole) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/auth/register", "", gin.H{"name": email, "email": email, "password": "secret1", "role": role})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": "secret1"})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.AccessToken
}

func (a *api) createCafe(token, name string) model.Cafe {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/cafes", token, gin.H{"name": name})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var res struct {
		Cafe model.Cafe `json:"cafe"`
	}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.Cafe
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestCafeProvisioning(t *testing.T) {
	a := newAPI(t)
	manager := a.signUp("boss@cafe.test", model.RoleManager)
	staff := a.signUp("sam@cafe.test", model.RoleStaff)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/api/cafes", "", gin.H{"name": "X"}).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/cafes", staff, gin.H{"name": "X"}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/cafes", manager, gin.H{"name": " "}).Code)

	cafe := a.createCafe(manager, "Blue Bottle")

	w := a.do(http.MethodPost, "/api/cafes", manager, gin.H{"name": "Second"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "CAFE_EXISTS")

	w = a.do(http.MethodGet, "/api/cafes", manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct {
		Cafe *model.Cafe `json:"cafe"`
	}](t, w)
	require.NotNil(t, got.Cafe)
	assert.Equal(t, cafe.ID, got.Cafe.ID)

	w = a.do(http.MethodGet, "/api/cafes", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cafe":null`)
}

func TestCafePartialUpdate(t *testing.T) {
	a := newAPI(t)
	manager := a.signUp("boss@cafe.test", model.RoleManager)
	w := a.do(http.MethodPost, "/api/cafes", manager, gin.H{"name": "Old", "address": "Main St 1", "phone": "555"})
	require.Equal(t, http.StatusCreated, w.Code)
	cafe := decode[struct {
		Cafe model.Cafe `json:"cafe"`
	}](t, w).Cafe

	w = a.do(http.MethodPatch, "/api/cafes/"+cafe.ID, manager, map[string]any{"name": "New", "phone": nil})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored model.Cafe
	require.NoError(t, a.db.First(&stored, "id = ?", cafe.ID).Error)
	assert.Equal(t, "New", stored.Name)
	require.NotNil(t, stored.Address)
	assert.Equal(t, "Main St 1", *stored.Address)
	assert.Nil(t, stored.Phone)

	other := a.signUp("other@cafe.test", model.RoleManager)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPatch, "/api/cafes/"+cafe.ID, other, gin.H{"name": "Hijack"}).Code)
}

func TestBatchSaveCategories(t *testing.T) {
	a := newAPI(t)
	manager := a.signUp("boss@cafe.test", model.RoleManager)
	cafe := a.createCafe(manager, "Cafe")

	c1 := model.Category{Base: model.Base{ID: "c1"}, Name: "Old", CafeID: cafe.ID}
	c2 := model.Category{Base: model.Base{ID: "c2"}, Name: "B", Order: 1, CafeID: cafe.ID}
	require.NoError(t, a.db.Create(&c1).Error)
	require.NoError(t, a.db.Create(&c2).Error)

	w := a.do(http.MethodPost, "/api/cafes/"+cafe.ID+"/categories/save", manager, gin.H{"categories": []gin.H{
		{"id": "temp_1", "_status": "new", "name": "A", "order": 0},
		{"id": "c1", "_status": "deleted"},
		{"id": "c2", "_status": "modified", "name": "B2"},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[struct {
		Created []struct {
			TempID string         `json:"tempId"`
			Row    model.Category `json:"row"`
		} `json:"created"`
		IDMap   map[string]string `json:"idMap"`
		Deleted int64             `json:"deleted"`
		Updated int64             `json:"updated"`
	}](t, w)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "A", res.Created[0].Row.Name)
	assert.NotEmpty(t, res.Created[0].Row.ID)
	assert.NotEqual(t, "temp_1", res.Created[0].Row.ID)
	assert.Equal(t, res.Created[0].Row.ID, res.IDMap["temp_1"])
	assert.Equal(t, int64(1), res.Deleted)
	assert.Equal(t, int64(1), res.Updated)

	var rows []model.Category
	require.NoError(t, a.db.Where("cafe_id = ?", cafe.ID).Order("sort_order").Find(&rows).Error)
	require.Len(t, rows, 2)
	names := map[string]string{}
	for _, r := range rows {
		names[r.ID] = r.Name
	}
	assert.NotContains(t, names, "c1")
	assert.Equal(t, "B2", names["c2"])

	w = a.do(http.MethodPost, "/api/cafes/"+cafe.ID+"/categories/save", manager, gin.H{"categories": []gin.H{
		{"id": "c2", "_status": "renamed"},
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_ROW_STATUS")
}

func TestBatchDeleteForeignRowIsNoop(t *testing.T) {
	a := newAPI(t)
	managerX := a.signUp("x@cafe.test", model.RoleManager)
	cafeX := a.createCafe(managerX, "X")
	managerY := a.signUp("y@cafe.test", model.RoleManager)
	cafeY := a.createCafe(managerY, "Y")

	foreign := model.Extra{Name: "Y syrup", Price: 1, IsAvailable: true, CafeID: cafeY.ID}
	require.NoError(t, a.db.Create(&foreign).Error)

	w := a.do(http.MethodPost, "/api/cafes/"+cafeX.ID+"/extras/save", managerX, gin.H{"extras": []gin.H{
		{"id": foreign.ID, "_status": "deleted"},
		{"id": foreign.ID, "_status": "modified", "name": "Mine now"},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"deleted":0`)
	assert.Contains(t, w.Body.String(), `"updated":0`)

	var still model.Extra
	require.NoError(t, a.db.First(&still, "id = ?", foreign.ID).Error)
	assert.Equal(t, "Y syrup", still.Name)
}

func TestMenuPivotAndStaffIsolation(t *testing.T) {
	a := newAPI(t)
	managerX := a.signUp("x@cafe.test", model.RoleManager)
	cafeX := a.createCafe(managerX, "X")
	managerY := a.signUp("y@cafe.test", model.RoleManager)
	cafeY := a.createCafe(managerY, "Y")

	w := a.do(http.MethodPost, "/api/cafes/"+cafeX.ID+"/staff", managerX, gin.H{"email": "sam@cafe.test"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/cafes/"+cafeX.ID+"/staff", managerX, gin.H{"email": "SAM@cafe.test"}).Code)
	staff := a.signUp("sam@cafe.test", model.RoleStaff)

	w = a.do(http.MethodPost, "/api/cafes/"+cafeX.ID+"/categories/save", managerX, gin.H{"categories": []gin.H{
		{"id": "temp_c", "_status": "new", "name": "Coffee", "order": 0},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	categoryID := decode[struct {
		IDMap map[string]string `json:"idMap"`
	}](t, w).IDMap["temp_c"]

	w = a.do(http.MethodPost, "/api/cafes/"+cafeX.ID+"/menu-items/save", managerX, gin.H{"menuItems": []gin.H{
		{"id": "temp_i", "_status": "new", "name": "Latte", "categoryId": categoryID, "hasSizes": true, "sizes": gin.H{"MEDIUM": 4.5}},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/api/cafes/"+cafeX.ID+"/menu", staff, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	menu := decode[struct {
		Categories []model.Category `json:"categories"`
		MenuItems  []struct {
			Name  string                 `json:"name"`
			Sizes map[model.Size]float64 `json:"sizes"`
		} `json:"menuItems"`
		Extras []model.Extra `json:"extras"`
	}](t, w)
	require.Len(t, menu.MenuItems, 1)
	assert.Equal(t, map[model.Size]float64{model.SizeSmall: 0, model.SizeMedium: 4.5, model.SizeLarge: 0}, menu.MenuItems[0].Sizes)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/cafes/"+cafeY.ID+"/menu", staff, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/cafes/"+cafeX.ID+"/categories/save", staff, gin.H{"categories": []gin.H{}}).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/cafes/"+cafeX.ID+"/menu", managerY, nil).Code)

	w = a.do(http.MethodGet, "/api/cafes/"+cafeX.ID+"/staff", managerX, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sam@cafe.test")
}

func TestStaffRemovalRevokesAccess(t *testing.T) {
	a := newAPI(t)
	manager := a.signUp("boss@cafe.test", model.RoleManager)
	cafe := a.createCafe(manager, "Cafe")
	staff := a.signUp("sam@cafe.test", model.RoleStaff)

	w := a.do(http.MethodPost, "/api/cafes/"+cafe.ID+"/staff", manager, gin.H{"email": "sam@cafe.test"})
	require.Equal(t, http.StatusCreated, w.Code)
	invite := decode[struct {
		Staff model.AllowedStaff `json:"staff"`
	}](t, w).Staff
	require.NotNil(t, invite.UserID, "an existing staff user without a cafe is linked at once")

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/cafes/"+cafe.ID+"/tables", staff, nil).Code)

	require.Equal(t, http.StatusOK, a.do(http.MethodDelete, "/api/cafes/"+cafe.ID+"/staff/"+invite.ID, manager, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/cafes/"+cafe.ID+"/tables", staff, nil).Code)
}

func TestOrdersTablesAndReports(t *testing.T) {
	a := newAPI(t)
	manager := a.signUp("boss@cafe.test", model.RoleManager)
	cafe := a.createCafe(manager, "Cafe")
	base := "/api/cafes/" + cafe.ID

	w := a.do(http.MethodPost, base+"/tables", manager, gin.H{"name": "T1"})
	require.Equal(t, http.StatusCreated, w.Code)
	table := decode[struct {
		Table model.Table `json:"table"`
	}](t, w).Table

	w = a.do(http.MethodPost, base+"/categories/save", manager, gin.H{"categories": []gin.H{{"id": "temp_c", "_status": "new", "name": "Cakes"}}})
	require.Equal(t, http.StatusOK, w.Code)
	categoryID := decode[struct {
		IDMap map[string]string `json:"idMap"`
	}](t, w).IDMap["temp_c"]
	w = a.do(http.MethodPost, base+"/menu-items/save", manager, gin.H{"menuItems": []gin.H{
		{"id": "temp_i", "_status": "new", "name": "Brownie", "categoryId": categoryID, "price": 4},
	}})
	require.Equal(t, http.StatusOK, w.Code)
	itemID := decode[struct {
		IDMap map[string]string `json:"idMap"`
	}](t, w).IDMap["temp_i"]

	w = a.do(http.MethodPost, base+"/orders", manager, gin.H{"tableId": table.ID, "items": []gin.H{{"menuItemId": itemID, "quantity": 2}}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[struct {
		Order model.Order `json:"order"`
	}](t, w).Order
	assert.Equal(t, 8.0, order.Total)

	for _, status := range []string{"PREPARING", "SERVED", "PAID"} {
		w = a.do(http.MethodPatch, base+"/orders/"+order.ID+"/status", manager, gin.H{"status": status})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	today := time.Now().UTC().Format("2006-01-02")
	w = a.do(http.MethodGet, base+"/reports/sales?from="+today+"&to="+today, manager, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"orderCount":1`)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, base+"/reports/sales?from=yesterday", manager, nil).Code)

	w = a.do(http.MethodGet, base+"/reports/sales/export", manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	w = a.do(http.MethodPost, base+"/campaigns", manager, gin.H{"name": "Bad", "rules": gin.H{"discountType": "PERCENT", "value": 150}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = a.do(http.MethodPost, base+"/campaigns", manager, gin.H{"name": "Happy hour", "rules": gin.H{"discountType": "FIXED", "value": 1}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	campaign := decode[struct {
		Campaign model.Campaign `json:"campaign"`
	}](t, w).Campaign
	assert.True(t, campaign.IsActive)
	assert.Equal(t, model.DiscountFixed, campaign.Rules.Data().DiscountType)

	w = a.do(http.MethodGet, base+"/campaigns/"+campaign.ID+"/stats", manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"orders":0`)
}

func TestUploadLogo(t *testing.T) {
	a := newAPI(t)
	manager := a.signUp("boss@cafe.test", model.RoleManager)
	cafe := a.createCafe(manager, "Cafe")

	upload := func(name string) *httptest.ResponseRecorder {
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		part, err := mw.CreateFormFile("logo", name)
		require.NoError(t, err)
		_, _ = part.Write([]byte("\x89PNG fake"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/cafes/"+cafe.ID+"/logo", body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+manager)
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, upload("logo.gif").Code)

	w := upload("logo.png")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	logo := decode[struct {
		Logo string `json:"logo"`
	}](t, w).Logo
	assert.Contains(t, logo, "/uploads/logos/cafe-"+cafe.ID)

	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, logo, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOperationalRoutes(t *testing.T) {
	a := newAPI(t)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health", "", nil).Code)

	w := a.do(http.MethodGet, "/api/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	w = a.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cafe_http_requests_total")
}

func TestCampaignWindowChecksStoredStart(t *testing.T) {
	a := newAPI(t)
	manager := a.signUp("boss@cafe.test", model.RoleManager)
	cafe := a.createCafe(manager, "Cafe")
	base := "/api/cafes/" + cafe.ID + "/campaigns"

	w := a.do(http.MethodPost, base, manager, gin.H{
		"name":     "Summer",
		"rules":    gin.H{"discountType": "PERCENT", "value": 10},
		"startsAt": "2026-06-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	campaign := decode[struct {
		Campaign model.Campaign `json:"campaign"`
	}](t, w).Campaign

	w = a.do(http.MethodPatch, base+"/"+campaign.ID, manager, gin.H{"endsAt": "2026-05-01T00:00:00Z"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_WINDOW")

	var stored model.Campaign
	require.NoError(t, a.db.First(&stored, "id = ?", campaign.ID).Error)
	assert.Nil(t, stored.EndsAt)

	w = a.do(http.MethodPatch, base+"/"+campaign.ID, manager, gin.H{"endsAt": "2026-07-01T00:00:00Z"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
