package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pixelgrid/signupmill/internal/signup/domain"
	"github.com/pixelgrid/signupmill/internal/signup/store/drivers/sqlite"
	"github.com/pixelgrid/signupmill/pkg/broadcast"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

type fakeLauncher struct {
	mu       sync.Mutex
	started  []int
	inFlight int64
}

func (f *fakeLauncher) Start(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, count)
}

func (f *fakeLauncher) InFlight() int64 { return f.inFlight }

func TestSignupsHandler(t *testing.T) {
	t.Run("accepts a valid batch", func(t *testing.T) {
		launcher := &fakeLauncher{inFlight: 2}
		handler := &SignupsHandler{Launcher: launcher, Logger: testLogger()}

		req := httptest.NewRequest(http.MethodPost, "/v1/signups", strings.NewReader(`{"count": 5}`))
		rec := httptest.NewRecorder()
		handler.HandlePost(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, []int{5}, launcher.started)

		var resp StartSignupsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, 5, resp.Requested)
		require.Equal(t, int64(2), resp.InFlight)
	})

	t.Run("rejects a zero count", func(t *testing.T) {
		launcher := &fakeLauncher{}
		handler := &SignupsHandler{Launcher: launcher, Logger: testLogger()}

		req := httptest.NewRequest(http.MethodPost, "/v1/signups", strings.NewReader(`{"count": 0}`))
		rec := httptest.NewRecorder()
		handler.HandlePost(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Empty(t, launcher.started)
	})

	t.Run("rejects a count over the batch limit", func(t *testing.T) {
		handler := &SignupsHandler{Launcher: &fakeLauncher{}, MaxBatch: 10, Logger: testLogger()}

		req := httptest.NewRequest(http.MethodPost, "/v1/signups", strings.NewReader(`{"count": 11}`))
		rec := httptest.NewRecorder()
		handler.HandlePost(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		handler := &SignupsHandler{Launcher: &fakeLauncher{}, Logger: testLogger()}

		req := httptest.NewRequest(http.MethodPost, "/v1/signups", strings.NewReader(`count=5`))
		rec := httptest.NewRecorder()
		handler.HandlePost(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAccountsHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("lists accounts with a status breakdown", func(t *testing.T) {
		st := newTestStore(t)
		first, err := st.Accounts().CreateAccount(ctx, "a@inbox.test", "A Tester")
		require.NoError(t, err)
		require.NoError(t, st.Accounts().MarkFailed(ctx, first.ID, "no verification email within 90s"))
		_, err = st.Accounts().CreateAccount(ctx, "b@inbox.test", "B Tester")
		require.NoError(t, err)

		handler := &AccountsHandler{Store: st, Logger: testLogger()}
		rec := httptest.NewRecorder()
		handler.HandleList(rec, httptest.NewRequest(http.MethodGet, "/v1/accounts", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp AccountListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.Accounts, 2)
		require.Equal(t, int64(1), resp.Counts["failed"])
		require.Equal(t, int64(1), resp.Counts["pending"])

		// Failed accounts expose their diagnostic but never tokens.
		for _, a := range resp.Accounts {
			if a.Status == "failed" {
				require.NotNil(t, a.ErrorLog)
			}
		}
	})

	t.Run("tokens for an unknown account is a 404", func(t *testing.T) {
		handler := &AccountsHandler{Store: newTestStore(t), Logger: testLogger()}

		req := httptest.NewRequest(http.MethodGet, "/v1/accounts/999/tokens", nil)
		req.SetPathValue("id", "999")
		rec := httptest.NewRecorder()
		handler.HandleTokens(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("tokens for an unverified account is a 409", func(t *testing.T) {
		st := newTestStore(t)
		account, err := st.Accounts().CreateAccount(ctx, "a@inbox.test", "A Tester")
		require.NoError(t, err)

		handler := &AccountsHandler{Store: st, Logger: testLogger()}
		req := httptest.NewRequest(http.MethodGet, "/v1/accounts/1/tokens", nil)
		req.SetPathValue("id", strconv.FormatInt(account.ID, 10))
		rec := httptest.NewRecorder()
		handler.HandleTokens(rec, req)

		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("tokens for a verified account", func(t *testing.T) {
		st := newTestStore(t)
		account, err := st.Accounts().CreateAccount(ctx, "a@inbox.test", "A Tester")
		require.NoError(t, err)
		exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		require.NoError(t, st.Accounts().MarkVerified(ctx, account.ID, "access-A", "refresh-B", &exp))

		handler := &AccountsHandler{Store: st, Logger: testLogger()}
		req := httptest.NewRequest(http.MethodGet, "/v1/accounts/1/tokens", nil)
		req.SetPathValue("id", "1")
		rec := httptest.NewRecorder()
		handler.HandleTokens(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp TokensResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, "access-A", resp.AccessToken)
		require.Equal(t, "refresh-B", resp.RefreshToken)
		require.NotNil(t, resp.TokenExpiresAt)
	})

	t.Run("non-numeric id is a 400", func(t *testing.T) {
		handler := &AccountsHandler{Store: newTestStore(t), Logger: testLogger()}

		req := httptest.NewRequest(http.MethodGet, "/v1/accounts/abc/tokens", nil)
		req.SetPathValue("id", "abc")
		rec := httptest.NewRecorder()
		handler.HandleTokens(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStreamHandler(t *testing.T) {
	t.Run("forwards published events as SSE", func(t *testing.T) {
		events := broadcast.New[domain.ProgressEvent](16)
		defer events.Close()

		handler := &StreamHandler{Events: events, Logger: testLogger()}

		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest(http.MethodGet, "/v1/signups/stream", nil).WithContext(ctx)
		rec := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			defer close(done)
			handler.HandleGet(rec, req)
		}()

		// Give the handler time to subscribe before publishing.
		time.Sleep(50 * time.Millisecond)
		events.Publish(domain.ProgressEvent{
			AccountID: 7,
			Email:     "a@inbox.test",
			Status:    domain.StatusVerified,
			Message:   "account verified",
			EmittedAt: time.Now().UTC(),
		})
		time.Sleep(50 * time.Millisecond)
		cancel()
		<-done

		require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

		body := rec.Body.String()
		require.Contains(t, body, "data: ")

		payload := strings.TrimPrefix(strings.Split(body, "\n")[0], "data: ")
		var event domain.ProgressEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &event))
		require.Equal(t, int64(7), event.AccountID)
		require.Equal(t, domain.StatusVerified, event.Status)
	})

	t.Run("client cancellation ends the stream", func(t *testing.T) {
		events := broadcast.New[domain.ProgressEvent](16)
		defer events.Close()

		handler := &StreamHandler{Events: events, Logger: testLogger()}

		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest(http.MethodGet, "/v1/signups/stream", nil).WithContext(ctx)

		done := make(chan struct{})
		go func() {
			defer close(done)
			handler.HandleGet(httptest.NewRecorder(), req)
		}()

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("stream handler did not exit after cancellation")
		}
	})
}

func TestHealthHandlers(t *testing.T) {
	t.Run("livez always reports ok", func(t *testing.T) {
		rec := httptest.NewRecorder()
		LivezHandler(time.Now(), "test")(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, "ok", resp.Status)
		require.Equal(t, "test", resp.Version)
	})

	t.Run("readyz reports ok while the store answers", func(t *testing.T) {
		st := newTestStore(t)

		rec := httptest.NewRecorder()
		ReadyzHandler(time.Now(), "test", st)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, "ok", resp.Checks.Database)
	})

	t.Run("readyz degrades when the store is gone", func(t *testing.T) {
		st, err := sqlite.NewStore(":memory:")
		require.NoError(t, err)
		require.NoError(t, st.ApplyMigrations())
		require.NoError(t, st.Close())

		rec := httptest.NewRecorder()
		ReadyzHandler(time.Now(), "test", st)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
