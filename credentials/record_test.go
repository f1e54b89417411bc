package credentials_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-offline-auth/credentials"
	errs "github.com/jrsteele09/go-offline-auth/internal/errors"
	"github.com/jrsteele09/go-offline-auth/internal/utils"
	"github.com/jrsteele09/go-offline-auth/securestore"
	"github.com/jrsteele09/go-offline-auth/securestore/memstore"
	"github.com/stretchr/testify/require"
)

func testRecord() *credentials.Record {
	return &credentials.Record{
		UserID:             "user-1",
		Username:           "alice",
		PasswordHash:       "aGFzaA==",
		Salt:               "c2FsdA==",
		SecurityQuestion:   utils.Ptr("first pet?"),
		SecurityAnswerHash: utils.Ptr("c2FsdA==$aGFzaA=="),
	}
}

func TestRepo_SaveLoad(t *testing.T) {
	ctx := context.Background()
	repo := credentials.NewRepo(memstore.New())

	exists, err := repo.Exists(ctx)
	require.NoError(t, err)
	require.False(t, exists)

	_, err = repo.Load(ctx)
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, repo.Save(ctx, testRecord()))

	exists, err = repo.Exists(ctx)
	require.NoError(t, err)
	require.True(t, exists)

	rec, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, testRecord(), rec)
	require.True(t, rec.HasRecovery())
}

func TestRepo_SaveWithoutRecovery(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	repo := credentials.NewRepo(store)

	rec := testRecord()
	rec.SecurityQuestion = nil
	rec.SecurityAnswerHash = nil
	require.NoError(t, repo.Save(ctx, rec))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.False(t, loaded.HasRecovery())
	require.NotContains(t, store.Snapshot(), securestore.KeySecurityQuestion)
}

func TestRepo_SaveFailureLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	repo := credentials.NewRepo(store)

	store.FailOn(memstore.OpSet)
	err := repo.Save(ctx, testRecord())
	require.ErrorIs(t, err, errs.ErrStorage)
	store.Recover()

	exists, err := repo.Exists(ctx)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestRepo_LoadDetectsPartialPair(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	repo := credentials.NewRepo(store)
	require.NoError(t, repo.Save(ctx, testRecord()))

	require.NoError(t, store.Delete(ctx, securestore.KeySalt))
	_, err := repo.Load(ctx)
	require.ErrorIs(t, err, errs.ErrCrypto)
}

func TestRepo_ReplacePassword(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	repo := credentials.NewRepo(store)
	require.NoError(t, repo.Save(ctx, testRecord()))

	require.NoError(t, repo.ReplacePassword(ctx, "bmV3aGFzaA==", "bmV3c2FsdA=="))
	rec, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "bmV3aGFzaA==", rec.PasswordHash)
	require.Equal(t, "bmV3c2FsdA==", rec.Salt)

	require.NoError(t, repo.Delete(ctx))
	require.Empty(t, store.Snapshot())
}
