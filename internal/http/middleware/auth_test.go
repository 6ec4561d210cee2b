package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/nurpe/logistics-bills/internal/model"
)

type stubParser map[string]model.Principal

func (s stubParser) Parse(token string) (model.Principal, error) {
	principal, ok := s[token]
	if !ok {
		return model.Principal{}, errors.New("unknown token")
	}
	return principal, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	parser := stubParser{
		"staff-token":    {Username: "sam", Role: model.RoleStaff},
		"customer-token": {Username: "cara", Role: model.RoleCustomer},
	}
	authed := r.Group("/", Auth(parser))
	authed.GET("/me", func(c *gin.Context) {
		principal, ok := MustPrincipal(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": principal.Username})
	})
	authed.GET("/staff", RequireStaff(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuth(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"no header", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic staff-token", http.StatusUnauthorized},
		{"unknown token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"customer", "/me", "Bearer customer-token", http.StatusOK},
		{"lower-case scheme", "/me", "bearer staff-token", http.StatusOK},
		{"customer on staff route", "/staff", "Bearer customer-token", http.StatusForbidden},
		{"staff on staff route", "/staff", "Bearer staff-token", http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
