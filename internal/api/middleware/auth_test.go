package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"waste-tracking-api-server/internal/auth"
	"waste-tracking-api-server/internal/models"
)

func newRouter(t *testing.T) (*gin.Engine, *auth.Tokens) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", Authenticate(tokens), Authorize(models.RoleAdmin, models.RoleDriver), func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"role": actor.Role, "driverID": actor.DriverID})
	})
	return r, tokens
}

func get(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	r, tokens := newRouter(t)

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer not-a-jwt").Code)

	driver, err := tokens.Generate(&models.User{ID: primitive.NewObjectID(), Role: models.RoleDriver, DriverID: "drv-1"})
	require.NoError(t, err)
	w := get(r, "Bearer "+driver)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"role":"driver","driverID":"drv-1"}`, w.Body.String())

	gen, err := tokens.Generate(&models.User{ID: primitive.NewObjectID(), Role: models.RoleGenerator})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(r, "Bearer "+gen).Code)
}
