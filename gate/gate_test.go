package gate_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-learnhub-client/gate"
	"github.com/jrsteele09/go-learnhub-client/sessions"
	"github.com/jrsteele09/go-learnhub-client/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	accessWindow  = time.Hour
	refreshWindow = 24 * time.Hour
)

type fakeRefresher struct {
	calls   atomic.Int32
	release chan struct{} // when set, Refresh blocks until closed
	refresh func(ctx context.Context, refreshToken string) (*gate.TokenPair, error)
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*gate.TokenPair, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.refresh != nil {
		return f.refresh(ctx, refreshToken)
	}
	return &gate.TokenPair{AccessToken: "access-renewed", RefreshToken: "refresh-renewed"}, nil
}

type testFixture struct {
	now       time.Time
	medium    *storage.Medium
	store     *sessions.Manager
	refresher *fakeRefresher
	gate      *gate.Gate
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		now:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		medium:    storage.NewMemoryMedium(),
		refresher: &fakeRefresher{},
	}
	f.store = sessions.NewManager(f.medium.Open(), accessWindow,
		sessions.WithRefreshWindow(refreshWindow),
		sessions.WithNowFunc(func() time.Time { return f.now }),
	)
	t.Cleanup(f.store.Close)

	g, err := gate.New(f.store, f.refresher, gate.WithRefreshTimeout(time.Second))
	require.NoError(t, err)
	f.gate = g
	return f
}

// expireAccess saves a session and moves past the access expiry while the
// refresh token stays valid.
func (f *testFixture) expireAccess(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Save("access-1", "refresh-1"))
	f.now = f.now.Add(accessWindow + time.Minute)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := gate.New(nil, &fakeRefresher{})
	require.Error(t, err)

	store := sessions.NewManager(storage.NewMemoryMedium().Open(), time.Hour)
	_, err = gate.New(store, nil)
	require.Error(t, err)
}

func TestEnsureAccessToken_ValidTokenNoNetwork(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Save("access-1", "refresh-1"))

	token, ok := f.gate.EnsureAccessToken(context.Background())

	require.True(t, ok)
	require.Equal(t, "access-1", token)
	require.Zero(t, f.refresher.calls.Load())
}

func TestEnsureAccessToken_NoSession(t *testing.T) {
	f := setupTestFixture(t)

	token, ok := f.gate.EnsureAccessToken(context.Background())

	require.False(t, ok)
	require.Empty(t, token)
	require.Zero(t, f.refresher.calls.Load())
}

func TestEnsureAccessToken_RefreshExpiredClearsStore(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Save("access-1", "refresh-1"))
	f.now = f.now.Add(refreshWindow + time.Minute)

	_, ok := f.gate.EnsureAccessToken(context.Background())

	require.False(t, ok)
	require.Equal(t, sessions.Session{}, f.store.Snapshot())
	require.Zero(t, f.refresher.calls.Load())
}

func TestEnsureAccessToken_RenewsWithRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	f.expireAccess(t)

	var usedToken string
	f.refresher.refresh = func(_ context.Context, refreshToken string) (*gate.TokenPair, error) {
		usedToken = refreshToken
		return &gate.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
	}

	token, ok := f.gate.EnsureAccessToken(context.Background())

	require.True(t, ok)
	require.Equal(t, "access-2", token)
	require.Equal(t, "refresh-1", usedToken)
	s := f.store.Snapshot()
	require.Equal(t, "access-2", s.AccessToken)
	require.Equal(t, "refresh-2", s.RefreshToken)
	require.True(t, f.store.IsAccessValid())
}

func TestEnsureAccessToken_RefreshFailureClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.expireAccess(t)
	f.refresher.refresh = func(context.Context, string) (*gate.TokenPair, error) {
		return nil, errors.New("401 Unauthorized")
	}

	_, ok := f.gate.EnsureAccessToken(context.Background())
	require.False(t, ok)
	require.False(t, f.store.IsAuthenticated())

	// Not retried: the next call finds no session at all.
	_, ok = f.gate.EnsureAccessToken(context.Background())
	require.False(t, ok)
	require.EqualValues(t, 1, f.refresher.calls.Load())
}

func TestEnsureAccessToken_MalformedPairIsFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.expireAccess(t)
	f.refresher.refresh = func(context.Context, string) (*gate.TokenPair, error) {
		return &gate.TokenPair{AccessToken: "only-access"}, nil
	}

	_, ok := f.gate.EnsureAccessToken(context.Background())

	require.False(t, ok)
	require.False(t, f.store.IsAuthenticated())
}

func TestEnsureAccessToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.expireAccess(t)
	f.refresher.release = make(chan struct{})

	const callers = 20
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, ok := f.gate.EnsureAccessToken(context.Background())
			if ok {
				tokens[i] = token
			}
		}(i)
	}

	require.Eventually(t, func() bool { return f.refresher.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(f.refresher.release)
	wg.Wait()

	require.EqualValues(t, 1, f.refresher.calls.Load())
	for _, token := range tokens {
		require.Equal(t, "access-renewed", token)
	}
}

func TestEnsureAccessToken_CallerCancelDoesNotAbortSharedRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.expireAccess(t)
	f.refresher.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		_, ok := f.gate.EnsureAccessToken(ctx)
		done <- ok
	}()

	require.Eventually(t, func() bool { return f.refresher.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	require.False(t, <-done)

	close(f.refresher.release)
	require.Eventually(t, func() bool { return f.store.IsAccessValid() }, time.Second, time.Millisecond)
	require.Equal(t, "access-renewed", f.store.Snapshot().AccessToken)
}

func TestEnsureAccessToken_FailureKeepsSessionRenewedElsewhere(t *testing.T) {
	f := setupTestFixture(t)
	f.expireAccess(t)
	otherTab := sessions.NewManager(f.medium.Open(), accessWindow,
		sessions.WithRefreshWindow(refreshWindow),
		sessions.WithNowFunc(func() time.Time { return f.now }),
	)
	defer otherTab.Close()

	f.refresher.refresh = func(context.Context, string) (*gate.TokenPair, error) {
		// Another tab rotated the pair first, so ours is rejected.
		assert.NoError(t, otherTab.Save("access-other", "refresh-other"))
		return nil, errors.New("token version mismatch")
	}

	token, ok := f.gate.EnsureAccessToken(context.Background())

	require.True(t, ok)
	require.Equal(t, "access-other", token)
	require.True(t, f.store.IsAuthenticated())
}

func TestTokenSource_OAuth2Token(t *testing.T) {
	f := setupTestFixture(t)
	source := f.gate.TokenSource(context.Background())

	_, err := source.Token()
	require.ErrorIs(t, err, gate.ErrNotAuthenticated)

	require.NoError(t, f.store.Save("access-1", "refresh-1"))
	token, err := source.Token()
	require.NoError(t, err)
	require.Equal(t, "access-1", token.AccessToken)
	require.Equal(t, "Bearer", token.Type())
	require.Equal(t, f.store.Snapshot().AccessExpiresAt, token.Expiry)
}

func TestEnsureAccessToken_RefreshTimeoutClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.expireAccess(t)
	f.refresher.refresh = func(ctx context.Context, _ string) (*gate.TokenPair, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	g, err := gate.New(f.store, f.refresher, gate.WithRefreshTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	token, ok := g.EnsureAccessToken(context.Background())

	require.False(t, ok)
	require.Empty(t, token)
	require.False(t, f.store.IsAuthenticated())
	require.Less(t, time.Since(start), 5*time.Second)
	require.EqualValues(t, 1, f.refresher.calls.Load())
}

// saveFailingStore accepts every operation except Save.
type saveFailingStore struct {
	*sessions.Manager
}

func (s saveFailingStore) Save(string, string) error {
	return errors.New("disk full")
}

func TestEnsureAccessToken_StoreFailureAfterRenewalClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.expireAccess(t)
	g, err := gate.New(saveFailingStore{f.store}, f.refresher)
	require.NoError(t, err)

	token, ok := g.EnsureAccessToken(context.Background())

	require.False(t, ok)
	require.Empty(t, token)
	require.False(t, f.store.IsRefreshValid(), "the spent refresh token is not kept")
	require.Equal(t, sessions.Session{}, f.store.Snapshot())

	_, ok = g.EnsureAccessToken(context.Background())
	require.False(t, ok)
	require.EqualValues(t, 1, f.refresher.calls.Load(), "no second refresh with a dead token")
}
