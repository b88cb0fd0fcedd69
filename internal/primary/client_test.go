package primary_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/septivank/meter-reconciler/internal/primary"
	"github.com/septivank/meter-reconciler/internal/reading"
	"github.com/septivank/meter-reconciler/internal/source"
)

const loginPage = `<html><body>
<form id="login" method="post" action="/auth/login">
  <input type="text" name="login"><input type="password" name="password">
</form></body></html>`

const countersPage = `<html><body>
<table class="counters">
  <tr><th>Service</th><th>Serial</th></tr>
  <tr data-meter-id="mr-101">
    <td data-field="service"> Cold   water </td>
    <td data-field="serial">000123</td>
    <td data-field="next_verification">01.02.2029</td>
    <td data-field="last_date">20.12.2025</td>
    <td data-field="last_value">12.340</td>
    <td data-field="current_date">29.12.2025</td>
    <td data-field="current"><input type="text" name="InputValCnt[101]" value=" 12.5 "></td>
    <td data-field="askue"><a href="/askue/101">chart</a></td>
  </tr>
  <tr data-meter-id="mr-102">
    <td data-field="service">Electricity</td>
    <td data-field="serial"><span>A7</span></td>
    <td data-field="last_date">20.12.2025</td>
    <td data-field="last_value">5400</td>
    <td data-field="current"></td>
  </tr>
</table></body></html>`

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("login") == "tenant" && r.PostForm.Get("password") == "pw" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			http.Redirect(w, r, "/counters", http.StatusFound)
			return
		}
		fmt.Fprint(w, loginPage)
	})

	mux.HandleFunc("/counters", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "abc" {
			fmt.Fprint(w, loginPage)
			return
		}
		fmt.Fprint(w, countersPage)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *primary.Client {
	t.Helper()
	c, err := primary.NewClient(srv.URL, 5*time.Second, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestAuthenticateAndListReadings(t *testing.T) {
	c := newClient(t, newBackend(t))
	ctx := context.Background()

	ok, err := c.Authenticate(ctx, "tenant", "pw")
	require.NoError(t, err)
	require.True(t, ok)

	readings, err := c.ListReadings(ctx)
	require.NoError(t, err)
	require.Len(t, readings, 2)

	cold := readings[0]
	assert.Equal(t, 1, cold.ID)
	assert.Equal(t, "mr-101", cold.MeterReadingID)
	assert.Equal(t, "Cold water", cold.Service)
	assert.Equal(t, "000123", cold.SerialNumber)
	assert.Equal(t, "123", cold.SerialNormalized)
	assert.Equal(t, "01.02.2029", cold.NextVerificationDate)
	assert.Equal(t, reading.LastReading{Date: "20.12.2025", Value: "12.340"}, cold.LastReading)
	assert.Equal(t, "12.5", cold.CurrentReading.Value)
	assert.Equal(t, "29.12.2025", cold.CurrentReading.Date)
	assert.Equal(t, "InputValCnt[101]", cold.CurrentReading.InputFieldName)
	assert.Equal(t, reading.SourcePrimary, cold.CurrentReading.Source)
	assert.Equal(t, "/askue/101", cold.AskueLink)

	elec := readings[1]
	assert.Equal(t, 2, elec.ID)
	assert.Equal(t, "A7", elec.SerialNormalized)
	assert.Equal(t, "", elec.CurrentReading.Value)
	assert.Equal(t, reading.DefaultInputFieldName, elec.CurrentReading.InputFieldName)
	assert.Empty(t, elec.AskueLink)
}

func TestAuthenticate_Rejected(t *testing.T) {
	c := newClient(t, newBackend(t))

	ok, err := c.Authenticate(context.Background(), "tenant", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListReadings_WithoutSession(t *testing.T) {
	c := newClient(t, newBackend(t))

	_, err := c.ListReadings(context.Background())
	assert.ErrorIs(t, err, source.ErrAuthenticationFailed)
}

func TestAuthenticate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, srv)

	ok, err := c.Authenticate(context.Background(), "tenant", "pw")
	assert.False(t, ok)
	var httpErr *source.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
}
