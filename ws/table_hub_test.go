package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafemanager/access"
	"cafemanager/database/dbtest"
	"cafemanager/model"
	"cafemanager/utils"
)

func TestTableHubDeliversToSameCafeOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)
	manager, cafe := dbtest.Manager(t, db, "boss@cafe.test")

	hub := NewTableHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	guard := access.NewGuard(db)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		utils.SetCurrentUser(c, &utils.SessionUser{ID: manager.ID, Role: model.RoleManager})
		c.Next()
	})
	r.GET("/cafes/:id/tables/ws", guard.Member(), hub.HandleWebSocket)

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/cafes/" + cafe.ID + "/tables/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers(cafe.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish("another-cafe", EventTableUpdated, model.Table{Name: "ignored"})
	hub.Publish(cafe.ID, EventTableUpdated, model.Table{Name: "T1", IsOccupied: true, CafeID: cafe.ID})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, EventTableUpdated, ev.Type)
	assert.Equal(t, "T1", ev.Table.Name)
	assert.True(t, ev.Table.IsOccupied)
}

func TestTableHubRejectsForeignCafe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)
	_, cafeX := dbtest.Manager(t, db, "x@cafe.test")
	managerY, _ := dbtest.Manager(t, db, "y@cafe.test")

	hub := NewTableHub(nil)
	guard := access.NewGuard(db)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		utils.SetCurrentUser(c, &utils.SessionUser{ID: managerY.ID, Role: model.RoleManager})
		c.Next()
	})
	r.GET("/cafes/:id/tables/ws", guard.Member(), hub.HandleWebSocket)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cafes/"+cafeX.ID+"/tables/ws", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublishOnNilHub(t *testing.T) {
	var hub *TableHub
	hub.Publish("cafe", EventTableDeleted, model.Table{})
}
