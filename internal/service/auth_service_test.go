package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slava-viktorov/simple-knowledge-base/internal/config"
	"github.com/slava-viktorov/simple-knowledge-base/internal/domain"
	"github.com/slava-viktorov/simple-knowledge-base/internal/password"
	"github.com/slava-viktorov/simple-knowledge-base/internal/service"
	"github.com/slava-viktorov/simple-knowledge-base/internal/token"
)

func testConfig() config.Config {
	return config.Config{
		AccessTokenSecret:  "access-secret-for-tests-0123456789abcdef",
		RefreshTokenSecret: "refresh-secret-for-tests-0123456789abcdef",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		LockoutAttempts:    3,
		LockoutWindow:      time.Minute,
	}
}

func newTestService(t *testing.T, users *memoryUserRepo, ledger *memoryLedger, attempts *memoryAttemptStore) *service.AuthService {
	t.Helper()
	cfg := testConfig()
	signer := token.NewSigner(cfg)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	if attempts == nil {
		// A typed nil would still satisfy the interface, so pass literal nil.
		return service.NewAuthService(users, ledger, nil, signer, node, cfg, zap.NewNop())
	}
	return service.NewAuthService(users, ledger, attempts, signer, node, cfg, zap.NewNop())
}

func seedUser(t *testing.T) (domain.User, *memoryUserRepo) {
	t.Helper()
	hash, err := password.Hash("secret123")
	require.NoError(t, err)
	user := domain.User{
		ID:           "5f4c9e4e-3bfb-4a7e-9a65-0f1da1a60001",
		Email:        "a@x.com",
		Username:     "author-a",
		PasswordHash: hash,
		Role:         domain.Role{ID: "role-1", Name: domain.RoleAuthor},
		RoleID:       "role-1",
	}
	return user, &memoryUserRepo{users: map[string]domain.User{user.ID: user}}
}

func TestLoginIssuesTokensAndLedgerRecord(t *testing.T) {
	ctx := context.Background()
	user, users := seedUser(t)
	ledger := newMemoryLedger()
	svc := newTestService(t, users, ledger, nil)

	result, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, user.ID, result.User.ID)
	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotEmpty(t, result.Tokens.RefreshToken)

	signer := token.NewSigner(testConfig())
	claims, err := signer.DecodeRefreshToken(result.Tokens.RefreshToken)
	require.NoError(t, err)

	record, err := ledger.FindByTokenID(ctx, claims.TokenID)
	require.NoError(t, err)
	require.False(t, record.IsRevoked)
	require.Equal(t, user.ID, record.UserID)
	// Only the digest is stored, never the raw token.
	require.Equal(t, signer.HashRefreshToken(result.Tokens.RefreshToken), record.TokenHash)
	require.NotEqual(t, result.Tokens.RefreshToken, record.TokenHash)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	_, users := seedUser(t)
	ledger := newMemoryLedger()
	svc := newTestService(t, users, ledger, nil)

	_, err := svc.Login(ctx, "a@x.com", "wrong-password")
	requireAuthMessage(t, err, "Invalid credentials")

	_, err = svc.Login(ctx, "nobody@x.com", "secret123")
	requireAuthMessage(t, err, "Invalid credentials")

	require.Zero(t, ledger.size(), "failed logins must not create ledger records")
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	_, users := seedUser(t)
	svc := newTestService(t, users, newMemoryLedger(), newMemoryAttemptStore())

	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, "a@x.com", "wrong-password")
		requireAuthMessage(t, err, "Invalid credentials")
	}

	// Even the right password is rejected while locked out.
	_, err := svc.Login(ctx, "a@x.com", "secret123")
	requireAuthMessage(t, err, "Too many failed login attempts")
}

func TestRefreshRotatesAndInvalidatesOldToken(t *testing.T) {
	ctx := context.Background()
	_, users := seedUser(t)
	ledger := newMemoryLedger()
	svc := newTestService(t, users, ledger, nil)

	result, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	original := result.Tokens

	rotated, err := svc.RefreshTokens(ctx, original.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, original.AccessToken, rotated.AccessToken)
	require.NotEqual(t, original.RefreshToken, rotated.RefreshToken)

	signer := token.NewSigner(testConfig())
	oldClaims, err := signer.DecodeRefreshToken(original.RefreshToken)
	require.NoError(t, err)
	oldRecord, err := ledger.FindByTokenID(ctx, oldClaims.TokenID)
	require.NoError(t, err)
	require.True(t, oldRecord.IsRevoked)
	require.NotNil(t, oldRecord.RevokedAt)

	newClaims, err := signer.DecodeRefreshToken(rotated.RefreshToken)
	require.NoError(t, err)
	newRecord, err := ledger.FindByTokenID(ctx, newClaims.TokenID)
	require.NoError(t, err)
	require.False(t, newRecord.IsRevoked)

	// Replaying the rotated-away token always fails.
	_, err = svc.RefreshTokens(ctx, original.RefreshToken)
	requireAuthMessage(t, err, "Refresh token is invalid or revoked")
}

func TestLogoutIsTerminal(t *testing.T) {
	ctx := context.Background()
	_, users := seedUser(t)
	svc := newTestService(t, users, newMemoryLedger(), nil)

	result, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, result.Tokens.RefreshToken))

	_, err = svc.RefreshTokens(ctx, result.Tokens.RefreshToken)
	requireAuthMessage(t, err, "Refresh token is invalid or revoked")

	err = svc.Logout(ctx, result.Tokens.RefreshToken)
	requireAuthMessage(t, err, "Refresh token is invalid or revoked")
}

func TestLogoutRejectsTamperedToken(t *testing.T) {
	ctx := context.Background()
	_, users := seedUser(t)
	ledger := newMemoryLedger()
	svc := newTestService(t, users, ledger, nil)

	result, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)

	// A different token carrying the same jti must fail the hash re-check.
	signer := token.NewSigner(testConfig())
	claims, err := signer.DecodeRefreshToken(result.Tokens.RefreshToken)
	require.NoError(t, err)
	record, err := ledger.FindByTokenID(ctx, claims.TokenID)
	require.NoError(t, err)
	record.TokenHash = signer.HashRefreshToken("some other token")
	ledger.put(record)

	err = svc.Logout(ctx, result.Tokens.RefreshToken)
	requireAuthMessage(t, err, "Refresh token is invalid or revoked")
}

func TestRefreshRejectsMalformedToken(t *testing.T) {
	ctx := context.Background()
	_, users := seedUser(t)
	svc := newTestService(t, users, newMemoryLedger(), nil)

	_, err := svc.RefreshTokens(ctx, "garbage")
	requireAuthMessage(t, err, "Invalid refresh token")
}

func TestConcurrentRefreshOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	_, users := seedUser(t)
	ledger := newMemoryLedger()
	svc := newTestService(t, users, ledger, nil)

	result, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RefreshTokens(ctx, result.Tokens.RefreshToken)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			requireAuthMessage(t, err, "Refresh token is invalid or revoked")
		}
	}
	require.Equal(t, 1, succeeded, "conditional revoke must let exactly one rotation through")
}

func TestRefreshFailsWhenUserVanished(t *testing.T) {
	ctx := context.Background()
	user, users := seedUser(t)
	svc := newTestService(t, users, newMemoryLedger(), nil)

	result, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)

	users.delete(user.ID)
	_, err = svc.RefreshTokens(ctx, result.Tokens.RefreshToken)
	requireAuthMessage(t, err, "Access denied")
}

func TestLogoutEverywhere(t *testing.T) {
	ctx := context.Background()
	user, users := seedUser(t)
	ledger := newMemoryLedger()
	svc := newTestService(t, users, ledger, nil)

	first, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)

	count, err := svc.LogoutEverywhere(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	_, err = svc.RefreshTokens(ctx, first.Tokens.RefreshToken)
	requireAuthMessage(t, err, "Refresh token is invalid or revoked")
	_, err = svc.RefreshTokens(ctx, second.Tokens.RefreshToken)
	requireAuthMessage(t, err, "Refresh token is invalid or revoked")

	// Nothing left to revoke.
	count, err = svc.LogoutEverywhere(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestValidateAndMe(t *testing.T) {
	ctx := context.Background()
	user, users := seedUser(t)
	svc := newTestService(t, users, newMemoryLedger(), nil)

	result, err := svc.Login(ctx, "a@x.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, svc.Validate(result.Tokens.AccessToken))
	require.Error(t, svc.Validate(result.Tokens.RefreshToken))
	require.Error(t, svc.Validate("garbage"))

	me, err := svc.Me(&user)
	require.NoError(t, err)
	require.Equal(t, user.ID, me.ID)

	_, err = svc.Me(nil)
	requireAuthMessage(t, err, "Invalid credentials")
}

func requireAuthMessage(t *testing.T, err error, message string) {
	t.Helper()
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, message, authErr.Message)
}

// memoryUserRepo is an in-memory UserRepository.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (m *memoryUserRepo) FindByID(ctx context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *memoryUserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUserRepo) delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

// memoryLedger is an in-memory RefreshTokenRepository with the same
// conditional-revoke semantics as the Postgres implementation.
type memoryLedger struct {
	mu      sync.Mutex
	records map[string]domain.RefreshToken // keyed by token id
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{records: make(map[string]domain.RefreshToken)}
}

func (m *memoryLedger) Create(ctx context.Context, record domain.RefreshToken) (domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	m.records[record.TokenID] = record
	return record, nil
}

func (m *memoryLedger) FindByTokenID(ctx context.Context, tokenID string) (domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[tokenID]
	if !ok {
		return domain.RefreshToken{}, pgx.ErrNoRows
	}
	return record, nil
}

func (m *memoryLedger) FindByTokenHash(ctx context.Context, tokenHash string) (domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.records {
		if record.TokenHash == tokenHash {
			return record, nil
		}
	}
	return domain.RefreshToken{}, pgx.ErrNoRows
}

func (m *memoryLedger) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, record := range m.records {
		if record.TokenHash == tokenHash && !record.IsRevoked {
			now := time.Now()
			record.IsRevoked = true
			record.RevokedAt = &now
			record.UpdatedAt = now
			m.records[id] = record
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryLedger) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id, record := range m.records {
		if record.UserID == userID && !record.IsRevoked {
			now := time.Now()
			record.IsRevoked = true
			record.RevokedAt = &now
			m.records[id] = record
			count++
		}
	}
	return count, nil
}

func (m *memoryLedger) DeleteByID(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tokenID, record := range m.records {
		if record.ID == id {
			delete(m.records, tokenID)
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryLedger) put(record domain.RefreshToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.TokenID] = record
}

func (m *memoryLedger) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memoryAttemptStore is an in-memory LoginAttemptStore.
type memoryAttemptStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemoryAttemptStore() *memoryAttemptStore {
	return &memoryAttemptStore{counts: make(map[string]int64)}
}

func (m *memoryAttemptStore) RegisterFailure(ctx context.Context, email string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[email]++
	return m.counts[email], nil
}

func (m *memoryAttemptStore) Reset(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, email)
	return nil
}

func (m *memoryAttemptStore) FailureCount(ctx context.Context, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[email], nil
}
