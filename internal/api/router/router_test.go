package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gocatalog/internal/api/product"
	"gocatalog/internal/api/router"
	"gocatalog/internal/api/stock"
	"gocatalog/internal/domain"
	"gocatalog/internal/pkg/logger"
	"gocatalog/internal/pkg/token"
	"gocatalog/internal/repository/memstore"
	"gocatalog/internal/service/attributeservice"
	"gocatalog/internal/service/hierarchyservice"
	"gocatalog/internal/service/productservice"
	"gocatalog/internal/service/queryservice"
	"gocatalog/internal/service/stockservice"
	"gocatalog/internal/service/variantservice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	bearer  string
	tokens  *token.Service
}

func newTestServer(t *testing.T) *testServer {
	log := logger.NewLogger("error")
	mem := memstore.New()
	repos := mem.Repositories()
	hierarchy := hierarchyservice.NewService(repos, log, 0)

	h := product.NewHandler(
		productservice.NewService(mem, repos, hierarchy, log, 0),
		hierarchy,
		attributeservice.NewService(repos, hierarchy, log),
		variantservice.NewService(mem, log, 0),
		queryservice.NewService(repos, log),
		log,
	)
	tokens := token.NewService("segredo-de-teste", time.Hour)
	bearer, err := tokens.GenerateToken("catalog-importer", token.RoleEditor)
	require.NoError(t, err)

	return &testServer{
		t:       t,
		handler: router.NewRouter(h, stock.NewHandler(stockservice.NewService(mem.Stock(), log), log), tokens, router.Options{Logger: log}),
		bearer:  bearer,
		tokens:  tokens,
	}
}

func (s *testServer) do(method, path string, body interface{}, auth bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+s.bearer)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createProduct(sku string) domain.Product {
	rec := s.do(http.MethodPost, "/v1/products", map[string]interface{}{
		"sku":         sku,
		"title":       "Camiseta Mito",
		"price":       "49.90",
		"track_stock": true,
		"stock":       4,
	}, true)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	var p domain.Product
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestPing(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/ping", nil, false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodGet, "/ping", nil, false)

	rec := s.do(http.MethodGet, "/metrics", nil, false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gocatalog_http_request_duration_seconds")
}

func TestCreateProduct_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/v1/products", map[string]interface{}{"sku": "TSH", "title": "x", "price": "1"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	viewer, err := s.tokens.GenerateToken("someone", "viewer")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/products", bytes.NewBufferString(`{"sku":"TSH","title":"x","price":"1"}`))
	req.Header.Set("Authorization", "Bearer "+viewer)
	forbidden := httptest.NewRecorder()
	s.handler.ServeHTTP(forbidden, req)
	assert.Equal(t, http.StatusForbidden, forbidden.Code)
}

func TestCreateAndGetProduct(t *testing.T) {
	s := newTestServer(t)
	created := s.createProduct("TSH-MYTH-001")

	rec := s.do(http.MethodGet, "/v1/products/"+created.ID, nil, false)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "TSH-MYTH-001", body["sku"])
	assert.Equal(t, "camiseta-mito", body["slug"])
	assert.Equal(t, "Camiseta Mito", body["label"])
	assert.Equal(t, float64(4), body["total_stock"])
	assert.Equal(t, true, body["in_stock"])
}

func TestCreateProduct_Errors(t *testing.T) {
	s := newTestServer(t)
	s.createProduct("TSH")

	dup := s.do(http.MethodPost, "/v1/products", map[string]interface{}{"sku": "TSH", "title": "x", "price": "1"}, true)
	assert.Equal(t, http.StatusConflict, dup.Code)

	invalid := s.do(http.MethodPost, "/v1/products", map[string]interface{}{"sku": "NEW", "price": "-1"}, true)
	assert.Equal(t, http.StatusBadRequest, invalid.Code)

	unknown := s.do(http.MethodPost, "/v1/products", map[string]interface{}{"sku": "NEW", "colour": "red"}, true)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)

	missing := s.do(http.MethodGet, "/v1/products/00000000-0000-0000-0000-000000000000", nil, false)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestVariantMatrixFlow(t *testing.T) {
	s := newTestServer(t)
	parent := s.createProduct("X")

	rec := s.do(http.MethodPost, "/v1/products/"+parent.ID+"/variant-matrix", map[string]interface{}{
		"options": []map[string]interface{}{
			{"type": "color", "values": []string{"red", "blue"}},
			{"type": "size", "values": []string{"s", "m"}},
		},
		"price_modifiers": map[string]map[string]string{"size": {"m": "5"}},
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var matrix struct {
		Created []domain.Product `json:"created"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matrix))
	require.Len(t, matrix.Created, 4)
	assert.Equal(t, "X-RED-S", matrix.Created[0].SKU)
	assert.Equal(t, "X-BLUE-M", matrix.Created[3].SKU)

	list := s.do(http.MethodGet, "/v1/products?variant=true&attribute=color:red&order_by=price&desc=true", nil, false)
	require.Equal(t, http.StatusOK, list.Code)
	var reds []domain.Product
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &reds))
	require.Len(t, reds, 2)
	assert.Equal(t, "X-RED-M", reds[0].SKU)

	found := s.do(http.MethodPost, "/v1/products/"+parent.ID+"/variants/find", map[string]interface{}{
		"attributes": map[string]string{"color": "blue", "size": "s"},
	}, false)
	require.Equal(t, http.StatusOK, found.Code)
	var variant domain.Product
	require.NoError(t, json.Unmarshal(found.Body.Bytes(), &variant))
	assert.Equal(t, "X-BLUE-S", variant.SKU)

	none := s.do(http.MethodPost, "/v1/products/"+parent.ID+"/variants/find", map[string]interface{}{
		"attributes": map[string]string{"color": "green"},
	}, false)
	assert.Equal(t, http.StatusNotFound, none.Code)

	hierarchy := s.do(http.MethodGet, "/v1/products/"+variant.ID+"/hierarchy", nil, false)
	require.Equal(t, http.StatusOK, hierarchy.Code)
	var tree map[string]interface{}
	require.NoError(t, json.Unmarshal(hierarchy.Body.Bytes(), &tree))
	assert.Equal(t, "X", tree["parent_sku"])
	assert.Equal(t, false, tree["is_main_product"])

	attrs := s.do(http.MethodGet, "/v1/products/"+variant.ID+"/attributes", nil, false)
	require.Equal(t, http.StatusOK, attrs.Code)
	var attrBody map[string]interface{}
	require.NoError(t, json.Unmarshal(attrs.Body.Bytes(), &attrBody))
	assert.Equal(t, "shop/products/camiseta-mito?color=blue&size=s", attrBody["uri"])
}

func TestVariantMatrix_PartialFailure(t *testing.T) {
	s := newTestServer(t)
	parent := s.createProduct("X")
	s.createProduct("X-RED")

	rec := s.do(http.MethodPost, "/v1/products/"+parent.ID+"/variant-matrix", map[string]interface{}{
		"options": []map[string]interface{}{{"type": "color", "values": []string{"red", "blue"}}},
	}, true)

	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	var body struct {
		Created []domain.Product `json:"created"`
		Failed  []struct {
			SKU string `json:"sku"`
		} `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Created, 1)
	assert.Equal(t, "X-BLUE", body.Created[0].SKU)
	require.Len(t, body.Failed, 1)
	assert.Equal(t, "X-RED", body.Failed[0].SKU)
}

func TestCategoriesAndOptions(t *testing.T) {
	s := newTestServer(t)
	parent := s.createProduct("TSH")

	rec := s.do(http.MethodPost, "/v1/products/"+parent.ID+"/categories", map[string]string{"path": "Apparel/T-Shirts"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var categories []domain.Tag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	require.Len(t, categories, 2)
	assert.Equal(t, "Apparel / T Shirts", categories[1].Title)

	variant := s.do(http.MethodPost, "/v1/products/"+parent.ID+"/variants", map[string]interface{}{
		"attributes": []map[string]string{{"type": "color", "value": "red"}},
		"overrides":  map[string]interface{}{"stock": 2},
	}, true)
	require.Equal(t, http.StatusCreated, variant.Code, variant.Body.String())

	options := s.do(http.MethodGet, "/v1/products/"+parent.ID+"/options", nil, false)
	require.Equal(t, http.StatusOK, options.Code)
	assert.JSONEq(t, `[{"type":"color","values":["red"]}]`, options.Body.String())

	listed := s.do(http.MethodGet, "/v1/products?category=apparel&main=false", nil, false)
	require.Equal(t, http.StatusOK, listed.Code)
	var products []domain.Product
	require.NoError(t, json.Unmarshal(listed.Body.Bytes(), &products))
	require.Len(t, products, 1)
	assert.Equal(t, "TSH-RED", products[0].SKU)
}

func TestListProducts_BadParams(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/v1/products?price_min=abc",
		"/v1/products?in_stock=maybe",
		"/v1/products?attribute=color",
		"/v1/products?limit=-1",
		"/v1/products?order_by=title",
	} {
		rec := s.do(http.MethodGet, path, nil, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestAdjustStock(t *testing.T) {
	s := newTestServer(t)
	p := s.createProduct("TEE")
	path := "/v1/products/" + p.ID + "/stock"

	rec := s.do(http.MethodPost, path, map[string]int{"delta": -3}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, path, map[string]int{"delta": -3}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var adjusted domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &adjusted))
	require.NotNil(t, adjusted.Stock)
	assert.Equal(t, 1, *adjusted.Stock)

	rec = s.do(http.MethodPost, path, map[string]int{"delta": -2}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, path, map[string]int{"delta": 0}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/v1/products/"+p.ID, nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["stock"])
}
