/*
Copyright 2024 Blnk Finance Authors.

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

	"github.com/blnkfinance/payrecon/config"
)

func TestSecretKeyAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name         string
		secret       string
		header       string
		expectedCode int
	}{
		{name: "valid key", secret: "s3cret", header: "s3cret", expectedCode: http.StatusOK},
		{name: "missing key", secret: "s3cret", header: "", expectedCode: http.StatusUnauthorized},
		{name: "wrong key", secret: "s3cret", header: "guess", expectedCode: http.StatusUnauthorized},
		{name: "server secret not configured", secret: "", header: "anything", expectedCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config.MockConfig(&config.Configuration{Server: config.ServerConfig{Secure: true, SecretKey: tt.secret}})

			router := gin.New()
			router.Use(SecretKeyAuthMiddleware())
			router.GET("/reconciliations", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/reconciliations", nil)
			if tt.header != "" {
				req.Header.Set(KeyHeader, tt.header)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}
