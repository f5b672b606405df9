package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/meridianbank/passkeyd/internal/auth/account"
	"github.com/meridianbank/passkeyd/internal/auth/ceremony"
	"github.com/meridianbank/passkeyd/internal/auth/credential"
	"github.com/meridianbank/passkeyd/internal/auth/otp"
	"github.com/meridianbank/passkeyd/internal/auth/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestPutAccountUpsertsByID(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	a := account.Account{ID: "account-1", Email: "user@example.com", CreatedAt: now, UpdatedAt: now}
	if err := store.PutAccount(ctx, a); err != nil {
		t.Fatalf("put account: %v", err)
	}

	loaded, err := store.GetAccount(ctx, "account-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if loaded.Email != "user@example.com" || loaded.Enabled {
		t.Fatalf("loaded = %+v", loaded)
	}

	a.Enabled = true
	a.UpdatedAt = now.Add(time.Minute)
	if err := store.PutAccount(ctx, a); err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	loaded, err = store.GetAccount(ctx, "account-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !loaded.Enabled {
		t.Fatal("expected enabled account after upsert")
	}
	if !loaded.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("updated at = %v", loaded.UpdatedAt)
	}
}

func TestFindAccountByEmail(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := store.PutAccount(ctx, account.Account{ID: "account-1", Email: "user@example.com", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("put account: %v", err)
	}

	loaded, err := store.FindAccountByEmail(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if loaded.ID != "account-1" {
		t.Fatalf("id = %q", loaded.ID)
	}

	if _, err := store.FindAccountByEmail(ctx, "other@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testCredential(id string, accountID string, key []byte) credential.Credential {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return credential.Credential{
		ID:              id,
		AccountID:       accountID,
		PublicKey:       key,
		SignCount:       3,
		UserVerified:    true,
		BackupEligible:  true,
		Transports:      []string{"internal", "hybrid"},
		AttestationType: "none",
		CredentialJSON:  `{"id":"` + id + `"}`,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func putTestAccount(t *testing.T, store *Store, id string, email string) {
	t.Helper()
	now := time.Now().UTC()
	if err := store.PutAccount(context.Background(), account.Account{ID: id, Email: email, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("put account: %v", err)
	}
}

func TestPutCredentialRejectsDuplicates(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	putTestAccount(t, store, "account-1", "user@example.com")

	if err := store.PutCredential(ctx, testCredential("cred-1", "account-1", []byte("key-1"))); err != nil {
		t.Fatalf("put credential: %v", err)
	}

	err := store.PutCredential(ctx, testCredential("cred-1", "account-1", []byte("key-2")))
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate id = %v, want ErrDuplicate", err)
	}
	err = store.PutCredential(ctx, testCredential("cred-2", "account-1", []byte("key-1")))
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("duplicate public key = %v, want ErrDuplicate", err)
	}
}

func TestGetCredentialRoundTrips(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	putTestAccount(t, store, "account-1", "user@example.com")

	want := testCredential("cred-1", "account-1", []byte("key-1"))
	if err := store.PutCredential(ctx, want); err != nil {
		t.Fatalf("put credential: %v", err)
	}

	got, err := store.GetCredential(ctx, "cred-1")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.AccountID != want.AccountID || got.SignCount != want.SignCount {
		t.Fatalf("got = %+v", got)
	}
	if !got.UserVerified || !got.BackupEligible || got.BackupState {
		t.Fatalf("flags = %+v", got)
	}
	if len(got.Transports) != 2 || got.Transports[0] != "internal" {
		t.Fatalf("transports = %v", got.Transports)
	}
	if got.LastUsedAt != nil {
		t.Fatal("fresh credential must have no last used timestamp")
	}

	if _, err := store.GetCredential(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListCredentialsByAccount(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	putTestAccount(t, store, "account-1", "user@example.com")
	putTestAccount(t, store, "account-2", "other@example.com")

	if err := store.PutCredential(ctx, testCredential("cred-1", "account-1", []byte("key-1"))); err != nil {
		t.Fatalf("put credential: %v", err)
	}
	if err := store.PutCredential(ctx, testCredential("cred-2", "account-1", []byte("key-2"))); err != nil {
		t.Fatalf("put credential: %v", err)
	}
	if err := store.PutCredential(ctx, testCredential("cred-3", "account-2", []byte("key-3"))); err != nil {
		t.Fatalf("put credential: %v", err)
	}

	listed, err := store.ListCredentialsByAccount(ctx, "account-1")
	if err != nil {
		t.Fatalf("list credentials: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed = %d, want 2", len(listed))
	}
}

func TestUpdateSignCount(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	putTestAccount(t, store, "account-1", "user@example.com")

	if err := store.PutCredential(ctx, testCredential("cred-1", "account-1", []byte("key-1"))); err != nil {
		t.Fatalf("put credential: %v", err)
	}

	usedAt := time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC)
	if err := store.UpdateSignCount(ctx, "cred-1", 9, usedAt); err != nil {
		t.Fatalf("update sign count: %v", err)
	}

	got, err := store.GetCredential(ctx, "cred-1")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.SignCount != 9 {
		t.Fatalf("sign count = %d, want 9", got.SignCount)
	}
	if got.LastUsedAt == nil || !got.LastUsedAt.Equal(usedAt) {
		t.Fatalf("last used = %v", got.LastUsedAt)
	}

	if err := store.UpdateSignCount(ctx, "missing", 1, usedAt); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCeremonyConsumeIsSingleUse(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	c := ceremony.Context{
		ID:        "ceremony-1",
		Challenge: []byte("challenge-bytes"),
		Binding:   ceremony.RegistrationBinding("account-1"),
		ExpiresAt: time.Now().UTC().Add(5 * time.Minute),
	}
	if err := store.PutCeremony(ctx, c); err != nil {
		t.Fatalf("put ceremony: %v", err)
	}

	loaded, err := store.GetCeremony(ctx, "ceremony-1")
	if err != nil {
		t.Fatalf("get ceremony: %v", err)
	}
	if loaded.Binding.Kind != ceremony.KindRegistration || loaded.Binding.AccountID != "account-1" {
		t.Fatalf("binding = %+v", loaded.Binding)
	}
	if string(loaded.Challenge) != "challenge-bytes" {
		t.Fatalf("challenge = %q", loaded.Challenge)
	}

	if err := store.ConsumeCeremony(ctx, "ceremony-1"); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := store.ConsumeCeremony(ctx, "ceremony-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second consume = %v, want ErrNotFound", err)
	}
}

func TestDeleteExpiredCeremonies(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := ceremony.Context{ID: "old", Challenge: []byte("c"), Binding: ceremony.LoginBinding(), ExpiresAt: now.Add(-time.Minute)}
	live := ceremony.Context{ID: "new", Challenge: []byte("c"), Binding: ceremony.LoginBinding(), ExpiresAt: now.Add(time.Minute)}
	if err := store.PutCeremony(ctx, expired); err != nil {
		t.Fatalf("put ceremony: %v", err)
	}
	if err := store.PutCeremony(ctx, live); err != nil {
		t.Fatalf("put ceremony: %v", err)
	}

	if err := store.DeleteExpiredCeremonies(ctx, now); err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if _, err := store.GetCeremony(ctx, "old"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected expired ceremony gone, got %v", err)
	}
	if _, err := store.GetCeremony(ctx, "new"); err != nil {
		t.Fatalf("live ceremony must survive: %v", err)
	}
}

func TestOneTimeCodeLastIssuedWins(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	first := otp.Code{Email: "user@example.com", CodeHash: "hash-1", ExpiresAt: now.Add(10 * time.Minute)}
	second := otp.Code{Email: "user@example.com", CodeHash: "hash-2", ExpiresAt: now.Add(20 * time.Minute)}
	if err := store.PutOneTimeCode(ctx, first); err != nil {
		t.Fatalf("put code: %v", err)
	}
	if err := store.PutOneTimeCode(ctx, second); err != nil {
		t.Fatalf("overwrite code: %v", err)
	}

	loaded, err := store.GetOneTimeCode(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("get code: %v", err)
	}
	if loaded.CodeHash != "hash-2" {
		t.Fatalf("code hash = %q, want hash-2", loaded.CodeHash)
	}
	if !loaded.ExpiresAt.Equal(second.ExpiresAt) {
		t.Fatalf("expires at = %v", loaded.ExpiresAt)
	}
}

func TestConsumeOneTimeCodeComparesHash(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	code := otp.Code{Email: "user@example.com", CodeHash: "hash-1", ExpiresAt: now.Add(10 * time.Minute)}
	if err := store.PutOneTimeCode(ctx, code); err != nil {
		t.Fatalf("put code: %v", err)
	}

	if err := store.ConsumeOneTimeCode(ctx, "user@example.com", "stale-hash"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("stale hash = %v, want ErrNotFound", err)
	}
	if _, err := store.GetOneTimeCode(ctx, "user@example.com"); err != nil {
		t.Fatalf("record must survive a stale consume: %v", err)
	}

	if err := store.ConsumeOneTimeCode(ctx, "user@example.com", "hash-1"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := store.GetOneTimeCode(ctx, "user@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected consumed record gone, got %v", err)
	}
}

func TestDeleteExpiredOneTimeCodes(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.PutOneTimeCode(ctx, otp.Code{Email: "old@example.com", CodeHash: "h", ExpiresAt: now.Add(-time.Minute)}); err != nil {
		t.Fatalf("put code: %v", err)
	}
	if err := store.PutOneTimeCode(ctx, otp.Code{Email: "new@example.com", CodeHash: "h", ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("put code: %v", err)
	}

	if err := store.DeleteExpiredOneTimeCodes(ctx, now); err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if _, err := store.GetOneTimeCode(ctx, "old@example.com"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected expired code gone, got %v", err)
	}
	if _, err := store.GetOneTimeCode(ctx, "new@example.com"); err != nil {
		t.Fatalf("live code must survive: %v", err)
	}
}
