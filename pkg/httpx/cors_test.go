package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pixelgrid/signupmill/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("wildcard allows any origin", func(t *testing.T) {
		handler := httpx.CORS([]string{"*"})(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("echoes listed origin", func(t *testing.T) {
		handler := httpx.CORS([]string{"https://dashboard.example.com"})(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, "https://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted origin gets no allow header", func(t *testing.T) {
		handler := httpx.CORS([]string{"https://dashboard.example.com"})(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight answered directly", func(t *testing.T) {
		handler := httpx.CORS([]string{"*"})(okHandler)

		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("no origin passes through untouched", func(t *testing.T) {
		handler := httpx.CORS([]string{"*"})(okHandler)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
