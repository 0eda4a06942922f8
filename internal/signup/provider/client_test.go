package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignUp(t *testing.T) {
	t.Run("sends credentials with the api key and redirect target", func(t *testing.T) {
		var captured struct {
			apiKey     string
			redirectTo string
			body       map[string]any
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured.apiKey = r.Header.Get("apikey")
			captured.redirectTo = r.URL.Query().Get("redirect_to")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL+"/auth/v1/signup", "anon-key", "https://app.example.com/welcome")

		err := client.SignUp(context.Background(), "lina@inbox.test", "S3cret!pass", "Lina Weber")
		require.NoError(t, err)

		require.Equal(t, "anon-key", captured.apiKey)
		require.Equal(t, "https://app.example.com/welcome", captured.redirectTo)
		require.Equal(t, "lina@inbox.test", captured.body["email"])
		require.Equal(t, "S3cret!pass", captured.body["password"])

		meta, ok := captured.body["data"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "Lina Weber", meta["full_name"])
	})

	t.Run("non-2xx is an error with the provider's message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"msg":"email rate limit exceeded"}`, http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "anon-key", "")

		err := client.SignUp(context.Background(), "lina@inbox.test", "S3cret!pass", "Lina Weber")
		require.Error(t, err)
		require.Contains(t, err.Error(), "429")
		require.Contains(t, err.Error(), "rate limit")
	})
}

func TestFetchVerification(t *testing.T) {
	t.Run("redirect response wins via its location header", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NotEmpty(t, r.Header.Get("User-Agent"))
			w.Header().Set("Location", "https://app.example.com/welcome#access_token=tok&refresh_token=ref")
			w.WriteHeader(http.StatusSeeOther)
		}))
		defer srv.Close()

		client := NewClient("unused", "anon-key", "")

		target, err := client.FetchVerification(context.Background(), srv.URL+"/verify?token=abc")
		require.NoError(t, err)
		require.Equal(t, "https://app.example.com/welcome#access_token=tok&refresh_token=ref", target)
	})

	t.Run("relative redirect locations are resolved against the link", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "/welcome#access_token=tok")
			w.WriteHeader(http.StatusFound)
		}))
		defer srv.Close()

		client := NewClient("unused", "anon-key", "")

		target, err := client.FetchVerification(context.Background(), srv.URL+"/verify?token=abc")
		require.NoError(t, err)
		require.Equal(t, srv.URL+"/welcome#access_token=tok", target)
	})

	t.Run("200 falls back to a meta refresh in the body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head>
				<meta http-equiv="refresh" content="0; url=https://app.example.com/welcome#access_token=tok">
			</head></html>`))
		}))
		defer srv.Close()

		client := NewClient("unused", "anon-key", "")

		target, err := client.FetchVerification(context.Background(), srv.URL+"/verify?token=abc")
		require.NoError(t, err)
		require.Equal(t, "https://app.example.com/welcome#access_token=tok", target)
	})

	t.Run("200 falls back to a script redirect in the body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<script>window.location.href = "https://app.example.com/welcome#access_token=tok";</script>`))
		}))
		defer srv.Close()

		client := NewClient("unused", "anon-key", "")

		target, err := client.FetchVerification(context.Background(), srv.URL+"/verify?token=abc")
		require.NoError(t, err)
		require.Equal(t, "https://app.example.com/welcome#access_token=tok", target)
	})

	t.Run("200 with no redirect in the body is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html><body>Thanks for confirming!</body></html>`))
		}))
		defer srv.Close()

		client := NewClient("unused", "anon-key", "")

		_, err := client.FetchVerification(context.Background(), srv.URL+"/verify?token=abc")
		require.Error(t, err)
		require.Contains(t, err.Error(), "no redirect")
	})

	t.Run("error statuses are surfaced", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "token expired", http.StatusGone)
		}))
		defer srv.Close()

		client := NewClient("unused", "anon-key", "")

		_, err := client.FetchVerification(context.Background(), srv.URL+"/verify?token=abc")
		require.Error(t, err)
		require.Contains(t, err.Error(), "410")
	})
}

func TestResolveRedirect(t *testing.T) {
	t.Run("returns the location of a redirecting wrapper", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "https://auth.example.com/verify?token=abc&type=signup")
			w.WriteHeader(http.StatusMovedPermanently)
		}))
		defer srv.Close()

		client := NewClient("unused", "anon-key", "")

		target, err := client.ResolveRedirect(context.Background(), srv.URL+"/track/click/123")
		require.NoError(t, err)
		require.Equal(t, "https://auth.example.com/verify?token=abc&type=signup", target)
	})

	t.Run("non-redirect responses resolve to nothing", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("just a page"))
		}))
		defer srv.Close()

		client := NewClient("unused", "anon-key", "")

		target, err := client.ResolveRedirect(context.Background(), srv.URL+"/not-a-wrapper")
		require.NoError(t, err)
		require.Empty(t, target)
	})
}
