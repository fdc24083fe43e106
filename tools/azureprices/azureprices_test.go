package azureprices_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/pkg/httpclient"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/nexus/tools/azureprices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestODataFilter(t *testing.T) {
	req := &azureprices.RetailPricesRequest{
		ServiceName: "Virtual Machines",
		Region:      "eastus",
		ProductName: "Men's Series",
		PriceType:   "Consumption",
		Filter:      "contains(meterName, 'Spot') eq false",
	}
	assert.Equal(t,
		"serviceName eq 'Virtual Machines' and armRegionName eq 'eastus' and productName eq 'Men''s Series' and priceType eq 'Consumption' and contains(meterName, 'Spot') eq false",
		req.ODataFilter())
	assert.Equal(t, "'O''Brien'", azureprices.Quote("O'Brien"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func item(region, meter string, price float64) map[string]any {
	return map[string]any{
		"serviceName":   "Virtual Machines",
		"productName":   "Virtual Machines Dsv3 Series",
		"skuName":       "D2s v3",
		"armSkuName":    "Standard_D2s_v3",
		"meterName":     meter,
		"armRegionName": region,
		"retailPrice":   price,
		"unitPrice":     price,
		"unitOfMeasure": "1 Hour",
		"currencyCode":  "USD",
		"type":          "Consumption",
	}
}

func TestRetailPrices_Pagination(t *testing.T) {
	var srv *httptest.Server
	var calls int32
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			assert.Equal(t, "2023-01-01-preview", r.URL.Query().Get("api-version"))
			assert.Equal(t, "serviceName eq 'Virtual Machines' and armRegionName eq 'eastus'", r.URL.Query().Get("$filter"))
			writeJSON(w, map[string]any{
				"Items":        []any{item("eastus", "D2s v3", 0.096), item("eastus", "D2s v3 Spot", 0.02)},
				"NextPageLink": srv.URL + "/?page=2",
			})
		case 2:
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Empty(t, r.URL.Query().Get("$filter"))
			writeJSON(w, map[string]any{
				"Items": []any{item("eastus", "D2s v3 Low Priority", 0.04)},
			})
		default:
			t.Errorf("unexpected call %d", n)
		}
	}))
	defer srv.Close()

	p := azureprices.New(httpclient.New(httpclient.WithRetryDelay(time.Millisecond)), azureprices.WithBaseURL(srv.URL))
	res, err := p.RetailPrices(context.Background(), &azureprices.RetailPricesRequest{ServiceName: "Virtual Machines", Region: "eastus"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.False(t, res.Truncated)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, 0.096, res.Items[0].RetailPrice)
}

func TestRetailPrices_Limits(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"Items":        []any{item("eastus", "a", 1), item("eastus", "b", 2)},
			"NextPageLink": srv.URL + "/?next=1",
		})
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.WithRetryDelay(time.Millisecond))

	p := azureprices.New(client, azureprices.WithBaseURL(srv.URL), azureprices.WithMaxPages(2))
	res, err := p.RetailPrices(context.Background(), &azureprices.RetailPricesRequest{ServiceName: "x"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
	assert.True(t, res.Truncated)

	res, err = p.RetailPrices(context.Background(), &azureprices.RetailPricesRequest{ServiceName: "x", MaxItems: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.True(t, res.Truncated)
}

func TestCompareRegions(t *testing.T) {
	prices := map[string][]any{
		"eastus":     {item("eastus", "D2s v3", 0.096), item("eastus", "D2s v3 Spot", 0.01)},
		"westeurope": {item("westeurope", "D2s v3", 0.11)},
		"centralus":  {item("centralus", "D2s v3", 0.09)},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("$filter")
		for region, items := range prices {
			if strings.Contains(filter, "armRegionName eq '"+region+"'") {
				writeJSON(w, map[string]any{"Items": items})
				return
			}
		}
		writeJSON(w, map[string]any{"Items": []any{}})
	}))
	defer srv.Close()

	p := azureprices.New(httpclient.New(), azureprices.WithBaseURL(srv.URL))
	res, err := p.CompareRegions(context.Background(), &azureprices.CompareRegionsRequest{
		ServiceName: "Virtual Machines",
		ARMSKUName:  "Standard_D2s_v3",
		Regions:     []string{"eastus", "westeurope", "centralus", "mars"},
	})
	require.NoError(t, err)
	require.Len(t, res.Prices, 3)
	assert.Equal(t, "centralus", res.Cheapest)
	assert.Equal(t, []string{"centralus", "eastus", "westeurope"}, []string{res.Prices[0].Region, res.Prices[1].Region, res.Prices[2].Region})
	assert.Equal(t, 0.096, res.Prices[1].RetailPrice)
	assert.Equal(t, []string{"mars"}, res.Missing)
}

func TestTools_Cached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, map[string]any{"Items": []any{item("eastus", "D2s v3", 0.096)}})
	}))
	defer srv.Close()

	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	p := azureprices.New(httpclient.New(), azureprices.WithBaseURL(srv.URL), azureprices.WithCache(fc, time.Hour))
	list, err := p.Tools()
	require.NoError(t, err)
	tool := list[0]

	input := `{"service_name":"Virtual Machines","region":"eastus"}`
	out, err := tool.Call(context.Background(), input)
	require.NoError(t, err)
	env, err := tools.ParseEnvelope(out)
	require.NoError(t, err)
	assert.True(t, env.IsSuccess())
	assert.False(t, env.Cached)

	out, err = tool.Call(context.Background(), input)
	require.NoError(t, err)
	env, err = tools.ParseEnvelope(out)
	require.NoError(t, err)
	assert.True(t, env.Cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	out, err = tool.Call(context.Background(), `{}`)
	require.NoError(t, err)
	env, err = tools.ParseEnvelope(out)
	require.NoError(t, err)
	assert.Equal(t, tools.ErrorTypeValidation, env.ErrorType)
}
