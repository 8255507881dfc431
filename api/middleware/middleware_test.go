/*
Copyright 2025 Tradielink Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/tradielink/tradielink/config"
)

func newTestRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler)
	r.GET("/projects", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.POST("/payments/webhook/banklink", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.POST("/cron/escrow-releases", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return r
}

func TestSecretKeyAuth(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{Secure: true, SecretKey: "sk_live_123"},
	})

	router := newTestRouter(SecretKeyAuthMiddleware())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/projects", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/projects", nil)
	req.Header.Set(KeyHeader, "wrong")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/projects", nil)
	req.Header.Set(KeyHeader, "sk_live_123")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecretKeyAuthSkipsProviderWebhook(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Server: config.ServerConfig{Secure: true, SecretKey: "sk_live_123"},
	})

	router := newTestRouter(SecretKeyAuthMiddleware())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/payments/webhook/banklink", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCronAuth(t *testing.T) {
	config.MockConfig(&config.Configuration{
		Cron: config.CronConfig{Token: "cron-token"},
	})

	router := newTestRouter(CronAuthMiddleware())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/cron/escrow-releases", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/cron/escrow-releases", nil)
	req.Header.Set("Authorization", "Bearer nope")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/cron/escrow-releases", nil)
	req.Header.Set("Authorization", "Bearer cron-token")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
