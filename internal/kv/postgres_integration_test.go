//go:build integration

package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"secretsanta/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	pg := containers.GetManager().GetPostgres(t)
	store := NewPostgres(pg.DB)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store {
		if err := pg.TruncateTables(context.Background(), "santa_kv"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return store
	}})
}
