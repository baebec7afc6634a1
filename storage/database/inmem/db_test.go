package inmemdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/academic"
)

func TestRunInTxRollback(t *testing.T) {
	db := NewDB()
	repo := NewAcademicRepository(db)
	ctx := context.Background()

	err := db.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := repo.CreateSubject(ctx, academic.Subject{SchoolID: "s1", Name: "Maths"}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	subs, err := repo.QuerySubjects(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestRollbackKeepsWritesOutsideTx(t *testing.T) {
	db := NewDB()
	repo := NewAcademicRepository(db)
	ctx := context.Background()

	started := make(chan struct{})
	txErr := make(chan error, 1)
	go func() {
		txErr <- db.RunInTx(ctx, func(ctx context.Context) error {
			close(started)
			time.Sleep(50 * time.Millisecond) // the write below contends with the open tx
			return errors.New("boom")
		})
	}()
	<-started

	written := make(chan error, 1)
	go func() {
		_, err := repo.CreateSubject(ctx, academic.Subject{SchoolID: "s1", Name: "Maths"})
		written <- err
	}()

	require.Error(t, <-txErr)
	require.NoError(t, <-written)

	subs, err := repo.QuerySubjects(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, subs, 1, "write made outside the tx survives its rollback")
}

func TestNestedTxJoins(t *testing.T) {
	db := NewDB()
	repo := NewAcademicRepository(db)
	ctx := context.Background()

	err := db.RunInTx(ctx, func(ctx context.Context) error {
		return db.RunInTx(ctx, func(ctx context.Context) error {
			_, err := repo.CreateSubject(ctx, academic.Subject{SchoolID: "s1", Name: "Maths"})
			return err
		})
	})
	require.NoError(t, err)

	subs, err := repo.QuerySubjects(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}
