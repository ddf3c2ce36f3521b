package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

const testWallet = "0x60A4C4b1E76DA34501932Dd01cCEDdf477ca5214"

func TestGetActivityQueryAndDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/activity", r.URL.Path)
		assert.Equal(t, testWallet, r.URL.Query().Get("user"))
		assert.Equal(t, "500", r.URL.Query().Get("limit"))
		assert.Equal(t, "1000", r.URL.Query().Get("offset"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`[
			{"proxyWallet":"0xabc","timestamp":1700000000,"type":"TRADE","side":"BUY",
			 "size":10,"usdcSize":"5.5","price":"0.55","title":"Will it rain?","outcome":"Yes",
			 "conditionId":"0xcond","outcomeIndex":"1"}
		]`))
	}))
	defer srv.Close()

	c := NewDataClient(srv.URL+"/", time.Second)
	got, err := c.GetActivity(context.Background(), testWallet, 500, 1000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Activity{
		ProxyWallet:  "0xabc",
		Timestamp:    1700000000,
		Type:         domain.ActivityTrade,
		Side:         domain.SideBuy,
		Size:         10,
		USDCSize:     5.5,
		Price:        0.55,
		Title:        "Will it rain?",
		Outcome:      "Yes",
		ConditionID:  "0xcond",
		OutcomeIndex: 1,
	}, got[0])
}

func TestGetActivityNonArrayBodyIsEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"no activity"}`))
	}))
	defer srv.Close()

	got, err := NewDataClient(srv.URL, time.Second).GetActivity(context.Background(), testWallet, 500, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetActivityInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := NewDataClient(srv.URL, time.Second).GetActivity(context.Background(), testWallet, 500, 0)
	assert.Error(t, err)
}

func TestGetActivityStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, err := NewDataClient(srv.URL, time.Second).GetActivity(context.Background(), testWallet, 500, 0)
		srv.Close()
		require.Error(t, err)
		assert.True(t, errors.Is(err, tc.want), "status %d: %v", tc.status, err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := NewDataClient(srv.URL, time.Second).GetActivity(context.Background(), testWallet, 500, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestAPIActivityLenientDecode(t *testing.T) {
	raw := `{
		"proxyWallet": null,
		"timestamp": "1700000000.9",
		"type": 7,
		"size": "abc",
		"usdcSize": null,
		"price": "NaN",
		"title": {"nested": true},
		"conditionId": "0xcond",
		"outcomeIndex": 2.0
	}`
	var a APIActivity
	require.NoError(t, json.Unmarshal([]byte(raw), &a))
	got := a.ToDomainActivity()

	assert.Equal(t, "", got.ProxyWallet)
	assert.Equal(t, int64(1700000000), got.Timestamp)
	assert.Equal(t, domain.ActivityType("7"), got.Type)
	assert.Equal(t, domain.Side(""), got.Side)
	assert.Zero(t, got.Size)
	assert.Zero(t, got.USDCSize)
	assert.Zero(t, got.Price)
	assert.Equal(t, "", got.Title)
	assert.Equal(t, "0xcond", got.ConditionID)
	assert.Equal(t, 2, got.OutcomeIndex)
}
