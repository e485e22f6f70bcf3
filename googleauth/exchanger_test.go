package googleauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestExchanger(serverURL, domain string) *Exchanger {
	return NewExchanger(ExchangerConfig{
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		HostedDomain: domain,
		Endpoint: &oauth2.Endpoint{
			AuthURL:   serverURL + "/auth",
			TokenURL:  serverURL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	})
}

func TestExchanger_AuthCodeURL(t *testing.T) {
	e := newTestExchanger("https://accounts.example.com", "upb.edu.co")

	parsed, err := url.Parse(e.AuthCodeURL("state-xyz"))
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "/auth", parsed.Path)
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "upb.edu.co", q.Get("hd"))
}

func TestExchanger_ExchangeCode(t *testing.T) {
	t.Run("returns id token", func(t *testing.T) {
		server := tokenServer(t, `{"access_token":"at","token_type":"Bearer","expires_in":3600,"id_token":"header.payload.sig"}`)
		e := newTestExchanger(server.URL, "")

		idToken, err := e.ExchangeCode(context.Background(), "good-code")
		require.NoError(t, err)
		assert.Equal(t, "header.payload.sig", idToken)
	})

	t.Run("missing id token", func(t *testing.T) {
		server := tokenServer(t, `{"access_token":"at","token_type":"Bearer"}`)
		e := newTestExchanger(server.URL, "")

		_, err := e.ExchangeCode(context.Background(), "good-code")
		assert.ErrorIs(t, err, ErrMissingIDToken)
	})

	t.Run("rejected code", func(t *testing.T) {
		server := tokenServer(t, `{}`)
		e := newTestExchanger(server.URL, "")

		_, err := e.ExchangeCode(context.Background(), "bad-code")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to exchange token")
	})
}
