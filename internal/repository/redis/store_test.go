package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/pestofarm/storefront/internal/config"
	apperrors "github.com/pestofarm/storefront/pkg/errors"
)

type StoreTestSuite struct {
	suite.Suite
	store  *Store
	prefix string
}

func (suite *StoreTestSuite) SetupSuite() {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		suite.T().Skip("TEST_REDIS_ADDR not set")
	}
	client, err := NewClient(context.Background(), config.RedisConfig{
		Addr:     addr,
		Password: os.Getenv("TEST_REDIS_PASSWORD"),
	})
	require.NoError(suite.T(), err)
	suite.prefix = "test_" + uuid.NewString()
	suite.store = NewStore(client, suite.prefix, 0, nil)
}

func (suite *StoreTestSuite) TestWriteReadDelete() {
	ctx := context.Background()
	require.NoError(suite.T(), suite.store.Write(ctx, "cart_a@b.c", []byte(`{"items":[]}`)))

	got, err := suite.store.Read(ctx, "cart_a@b.c")
	require.NoError(suite.T(), err)
	require.JSONEq(suite.T(), `{"items":[]}`, string(got))

	keys, err := suite.store.Keys(ctx, "cart_")
	require.NoError(suite.T(), err)
	require.Contains(suite.T(), keys, "cart_a@b.c")

	require.NoError(suite.T(), suite.store.Write(ctx, "cartXa@b.c", []byte(`{}`)))
	keys, err = suite.store.Keys(ctx, "cart?a")
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), keys)
	require.NoError(suite.T(), suite.store.Delete(ctx, "cartXa@b.c"))

	require.NoError(suite.T(), suite.store.Delete(ctx, "cart_a@b.c"))
	_, err = suite.store.Read(ctx, "cart_a@b.c")
	var nf *apperrors.ErrNotFound
	require.ErrorAs(suite.T(), err, &nf)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestGlobEscaperQuotesPatternCharacters(t *testing.T) {
	cases := map[string]string{
		"pf:cart_a@b.c": "pf:cart_a@b.c",
		"pf:cart_*":     `pf:cart_\*`,
		"pf:chat_[7]?":  `pf:chat_\[7\]\?`,
		`pf:back\slash`: `pf:back\\slash`,
	}
	for in, want := range cases {
		require.Equal(t, want, globEscaper.Replace(in), in)
	}
}
