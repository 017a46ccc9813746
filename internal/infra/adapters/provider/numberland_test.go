//go:build !integration

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-virtual-number/internal/config"
	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
)

// numberlandServer answers by the "method" query parameter.
func numberlandServer(t *testing.T, answers map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2.php", r.URL.Path)
		assert.Equal(t, "nl-key", r.URL.Query().Get("apikey"))
		body, ok := answers[r.URL.Query().Get("method")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newNumberland(url string) *Numberland {
	return NewNumberland(config.VendorConfig{
		APIKey:     "nl-key",
		BaseURL:    url,
		Timeout:    time.Second,
		MaxRetries: 1,
		Backoff:    time.Millisecond,
	}, "Numberland", nil, nil)
}

func TestNumberland_Balance(t *testing.T) {
	srv := numberlandServer(t, map[string]string{"balance": `{"RESULT":1,"BALANCE":"25000","CURRENCY":"Toman"}`})

	bal, err := newNumberland(srv.URL).Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ProviderBalance{Amount: "25000", Currency: "Toman"}, bal)
}

func TestNumberland_Quote(t *testing.T) {
	t.Run("list without a truthy amount yields the zero quote", func(t *testing.T) {
		srv := numberlandServer(t, map[string]string{"getinfo": `[{"amount":0,"count":3},{"amount":"","count":1}]`})

		q, err := newNumberland(srv.URL).Quote(context.Background(), "1", "98", "any")
		require.NoError(t, err)
		assert.Equal(t, model.ZeroQuote(), q)
		assert.Equal(t, 20*time.Minute, q.ValidityWindow)
		assert.False(t, q.RepeatCapable)
	})

	t.Run("only the first list entry is considered", func(t *testing.T) {
		srv := numberlandServer(t, map[string]string{
			"getinfo": `[{"amount":0},{"amount":"12000","count":"7","repeat":"1","time":"00:15:00"}]`,
		})

		q, err := newNumberland(srv.URL).Quote(context.Background(), "1", "98", "min")
		require.NoError(t, err)
		assert.Equal(t, model.ZeroQuote(), q)
	})

	t.Run("first list entry with an amount", func(t *testing.T) {
		srv := numberlandServer(t, map[string]string{
			"getinfo": `[{"amount":"12000","count":"7","repeat":"1","time":"00:15:00"},{"amount":9000}]`,
		})

		q, err := newNumberland(srv.URL).Quote(context.Background(), "1", "98", "min")
		require.NoError(t, err)
		assert.Equal(t, int64(12000), q.BaseAmount)
		assert.Equal(t, 7, q.Available)
		assert.True(t, q.RepeatCapable)
		assert.Equal(t, 15*time.Minute, q.ValidityWindow)
	})

	t.Run("empty list yields the zero quote", func(t *testing.T) {
		srv := numberlandServer(t, map[string]string{"getinfo": `[]`})

		q, err := newNumberland(srv.URL).Quote(context.Background(), "1", "98", "any")
		require.NoError(t, err)
		assert.Equal(t, model.ZeroQuote(), q)
	})

	t.Run("object with amount is used as is", func(t *testing.T) {
		srv := numberlandServer(t, map[string]string{"getinfo": `{"amount":5000,"count":2,"repeat":0,"time":"garbage"}`})

		q, err := newNumberland(srv.URL).Quote(context.Background(), "1", "98", "1")
		require.NoError(t, err)
		assert.Equal(t, int64(5000), q.BaseAmount)
		assert.Equal(t, model.DefaultValidityWindow, q.ValidityWindow)
	})
}

func TestNumberland_Buy(t *testing.T) {
	var gotPrice string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrice = r.URL.Query().Get("price")
		fmt.Fprint(w, `{"RESULT":1,"ID":"778","NUMBER":"9121234567","AREACODE":"98","AMOUNT":"12000","REPEAT":"1","TIME":"00:20:00"}`)
	}))
	defer srv.Close()

	price := int64(12000)
	p, err := newNumberland(srv.URL).Buy(context.Background(), "1", "98", "any", &price)
	require.NoError(t, err)
	assert.Equal(t, "12000", gotPrice)
	assert.Equal(t, "778", p.ID)
	assert.Equal(t, "+989121234567", p.PhoneNumber)
	assert.Equal(t, int64(12000), p.Amount)
	assert.True(t, p.RepeatCapable)
	assert.Equal(t, 20*time.Minute, p.ValidityWindow)
}

func TestNumberland_NegativeResult(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
		desc string
	}{
		{"known code", `{"RESULT":"-206"}`, -206, "price not set"},
		{"lower case key", `{"result":-205}`, -205, "no balance"},
		{"vendor description fallback", `{"RESULT":-777,"DESCRIPTION":"maintenance"}`, -777, "maintenance"},
		{"unknown", `{"RESULT":-778}`, -778, "unknown error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := numberlandServer(t, map[string]string{"getnum": tt.body})

			_, err := newNumberland(srv.URL).Buy(context.Background(), "1", "98", "any", nil)
			ve, ok := domain.IsVendorError(err)
			require.True(t, ok, "expected vendor error, got %v", err)
			assert.Equal(t, tt.code, ve.Code)
			assert.Equal(t, tt.desc, ve.Description)
			assert.Equal(t, KeyNumberland, ve.Provider)
		})
	}
}

func TestNumberland_StatusAndActions(t *testing.T) {
	srv := numberlandServer(t, map[string]string{
		"checkstatus":  `{"RESULT":2,"CODE":"55123","DESCRIPTION":"code received"}`,
		"cancelnumber": `{"RESULT":1,"DESCRIPTION":"number canceled"}`,
		"repeat":       `{"RESULT":1,"DESCRIPTION":"wait code again"}`,
	})
	nl := newNumberland(srv.URL)

	st, err := nl.Status(context.Background(), "778")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCodeReceived, st.Status)
	assert.Equal(t, "55123", st.Code)

	res, err := nl.Cancel(context.Background(), "778")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "number canceled", res.Description)

	res, err = nl.Repeat(context.Background(), "778")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestNumberland_UnexpectedStatusIsDecodeError(t *testing.T) {
	srv := numberlandServer(t, map[string]string{"checkstatus": `{"RESULT":9}`})

	_, err := newNumberland(srv.URL).Status(context.Background(), "1")
	var de *domain.DecodeError
	assert.True(t, errors.As(err, &de))
}

func TestNumberland_Catalog(t *testing.T) {
	srv := numberlandServer(t, map[string]string{
		"getservice": `[{"id":"1","name":"تلگرام","name_en":"Telegram","active":"1"},{"id":"2","name":"واتساپ","name_en":"WhatsApp","active":"0"}]`,
		"getcountry": `[{"id":"98","name":"ایران","name_en":"Iran","emoji":"🇮🇷"}]`,
	})
	nl := newNumberland(srv.URL)

	svcs, err := nl.ListServices(context.Background())
	require.NoError(t, err)
	require.Len(t, svcs, 2)
	assert.Equal(t, "Telegram", svcs[0].NameEn)
	assert.True(t, svcs[0].Active)
	assert.False(t, svcs[1].Active)
	assert.Equal(t, "تلگرام", svcs[0].LocalizedName("fa"))

	countries, err := nl.ListCountries(context.Background())
	require.NoError(t, err)
	require.Len(t, countries, 1)
	assert.Equal(t, "🇮🇷", countries[0].Emoji)
	assert.True(t, countries[0].Active, "missing active flag defaults to active")
}

func TestNumberland_MissingKey(t *testing.T) {
	nl := NewNumberland(config.VendorConfig{BaseURL: "http://127.0.0.1:1"}, "Numberland", nil, nil)
	_, err := nl.Balance(context.Background())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
