package surrealdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surreal "github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/surrealtest"
)

func TestConnect_SignsInAndDefinesTables(t *testing.T) {
	shared := surrealtest.Start(t)

	db, err := Connect(t.Context(), surrealtest.Logger(), common.SurrealArea{
		Endpoint:  shared.Address,
		Username:  "root",
		Password:  "root",
		Namespace: shared.Namespace,
		Database:  shared.Database,
	})
	require.NoError(t, err)
	defer db.Close(t.Context())

	for _, table := range tables {
		_, err := surreal.Query[any](t.Context(), db, "SELECT * FROM "+table, nil)
		assert.NoError(t, err)
	}
}

func TestConnect_FailsOnBadCredentials(t *testing.T) {
	shared := surrealtest.Start(t)

	_, err := Connect(t.Context(), surrealtest.Logger(), common.SurrealArea{
		Endpoint:  shared.Address,
		Username:  "root",
		Password:  "definitely-wrong",
		Namespace: shared.Namespace,
		Database:  shared.Database,
	})
	assert.Error(t, err)
}
