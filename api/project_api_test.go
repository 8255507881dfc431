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

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tradielink/tradielink"
	model2 "github.com/tradielink/tradielink/api/model"
	"github.com/tradielink/tradielink/config"
	"github.com/tradielink/tradielink/database"
	"github.com/tradielink/tradielink/internal/request"
	"github.com/tradielink/tradielink/model"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	err := json.NewDecoder(resp.Body).Decode(&s.Response)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func setupRouter() (*gin.Engine, *tradielink.Tradielink, error) {
	config.MockConfig(&config.Configuration{
		Redis:      config.RedisConfig{Dns: "localhost:6379"},
		DataSource: config.DataSourceConfig{Dns: "postgres://postgres:@localhost:5432/tradielink?sslmode=disable"},
		Providers:  config.ProvidersConfig{Default: "cardgate"},
	})
	cnf, err := config.Fetch()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewDataSource(cnf)
	if err != nil {
		return nil, nil, err
	}
	service, err := tradielink.NewTradielink(db)
	if err != nil {
		return nil, nil, err
	}
	router := NewAPI(service).Router()

	return router, service, nil
}

func TestCreateUserAPI(t *testing.T) {
	router, _, err := setupRouter()
	if err != nil {
		return
	}

	validPayload := model2.CreateUser{
		Role:         "owner",
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
		EmailAddress: gofakeit.Email(),
	}
	payloadBytes, _ := request.ToJsonReq(&validPayload)
	var response model.User
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payloadBytes,
		Response: &response,
		Method:   "POST",
		Route:    "/users",
		Router:   router,
	})
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.NotEmpty(t, response.UserID)
	assert.Equal(t, model.RoleOwner, response.Role)
}

func TestCreateUserAPIBadRole(t *testing.T) {
	router, _, err := setupRouter()
	if err != nil {
		return
	}

	payloadBytes, _ := request.ToJsonReq(&model2.CreateUser{
		Role:         "admin",
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
		EmailAddress: gofakeit.Email(),
	})
	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payloadBytes,
		Response: &response,
		Method:   "POST",
		Route:    "/users",
		Router:   router,
	})
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateProjectAPI(t *testing.T) {
	router, service, err := setupRouter()
	if err != nil {
		return
	}
	owner, err := service.CreateUser(context.Background(), model.User{
		Role: model.RoleOwner, FirstName: gofakeit.FirstName(), LastName: gofakeit.LastName(),
		EmailAddress: gofakeit.Email(),
	})
	if err != nil {
		return
	}

	validPayload := model2.CreateProject{
		OwnerID:  owner.UserID,
		Title:    "Replace the hot water system",
		Location: gofakeit.City(),
	}
	payloadBytes, _ := request.ToJsonReq(&validPayload)
	var response model.Project
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payloadBytes,
		Response: &response,
		Method:   "POST",
		Route:    "/projects",
		Router:   router,
	})
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.NotEmpty(t, response.ProjectID)
	assert.Equal(t, model.StatusPublished, response.Status)
	assert.Equal(t, owner.UserID, response.OwnerID)
}

func TestQuoteLifecycleAPI(t *testing.T) {
	router, service, err := setupRouter()
	if err != nil {
		return
	}
	ctx := context.Background()
	owner, err := service.CreateUser(ctx, model.User{
		Role: model.RoleOwner, FirstName: gofakeit.FirstName(), LastName: gofakeit.LastName(),
		EmailAddress: gofakeit.Email(),
	})
	if err != nil {
		return
	}
	tradie, err := service.CreateUser(ctx, model.User{
		Role: model.RoleTradie, FirstName: gofakeit.FirstName(), LastName: gofakeit.LastName(),
		EmailAddress: gofakeit.Email(),
	})
	if err != nil {
		return
	}
	project, err := service.CreateProject(ctx, model.Project{
		OwnerID: owner.UserID, Title: "Rewire the garage", Location: gofakeit.City(),
	})
	if err != nil {
		return
	}

	payloadBytes, _ := request.ToJsonReq(&model2.CreateQuote{
		ProjectID: project.ProjectID,
		TradieID:  tradie.UserID,
		Price:     decimal.NewFromInt(1200),
	})
	var quote model.Quote
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  payloadBytes,
		Response: &quote,
		Method:   "POST",
		Route:    "/quotes",
		Router:   router,
	})
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, model.QuotePending, quote.Status)

	acceptBytes, _ := request.ToJsonReq(&model2.AcceptQuote{OwnerID: owner.UserID})
	var agreed model.Project
	resp, err = SetUpTestRequest(TestRequest{
		Payload:  acceptBytes,
		Response: &agreed,
		Method:   "POST",
		Route:    fmt.Sprintf("/quotes/%s/accept", quote.QuoteID),
		Router:   router,
	})
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, model.StatusAgreed, agreed.Status)
	assert.Equal(t, tradie.UserID, agreed.AgreedTradieID)
	assert.True(t, agreed.AgreedPrice.Equal(decimal.NewFromInt(1200)))
}
