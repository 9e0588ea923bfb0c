package service

import (
	"context"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"license-token-service/internal/database"
	"license-token-service/internal/keys"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce  sync.Once
	testKey  *rsa.PrivateKey
	otherKey *rsa.PrivateKey
)

func testSigners(t *testing.T) (*keys.Signer, *keys.Signer) {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		testKey, err = keys.Generate(2048)
		require.NoError(t, err)
		otherKey, err = keys.Generate(2048)
		require.NoError(t, err)
	})
	return keys.NewSigner(keys.NewStaticProvider(testKey, nil)), keys.NewSigner(keys.NewStaticProvider(otherKey, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(unix int64) *fakeClock {
	return &fakeClock{now: time.Unix(unix, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Unix(unix, 0)
}

type fixture struct {
	clock   *fakeClock
	store   *database.RecordStore
	signer  *keys.Signer
	service *LicenseService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenTest()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	signer, _ := testSigners(t)
	clock := newFakeClock(500)
	store := database.NewRecordStore(db)
	return &fixture{
		clock:   clock,
		store:   store,
		signer:  signer,
		service: NewLicenseService(store, signer, zerolog.Nop(), WithClock(clock.Now)),
	}
}

func (f *fixture) issue(t *testing.T, subject string, hours int) *IssueResult {
	t.Helper()
	res, err := f.service.Issue(context.Background(), IssueRequest{Subject: subject, DurationHours: hours, Actor: "admin"})
	require.NoError(t, err)
	return res
}
