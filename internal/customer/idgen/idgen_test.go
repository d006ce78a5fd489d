package idgen

import (
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/customerdir/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomNext(t *testing.T) {
	gen := NewRandom(func() int { return 12 })

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id, err := gen.Next()
		require.NoError(t, err)
		require.Len(t, id, 12)
		for _, r := range id {
			require.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
		}
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}

func TestRandomFollowsLength(t *testing.T) {
	length := 8
	gen := NewRandom(func() int { return length })

	id, err := gen.Next()
	require.NoError(t, err)
	assert.Len(t, id, 8)

	length = 20
	id, err = gen.Next()
	require.NoError(t, err)
	assert.Len(t, id, 20)
}

func TestRandomRejectsInvalidLength(t *testing.T) {
	_, err := NewRandom(func() int { return 0 }).Next()
	assert.Error(t, err)
}

func TestSnowflakeNext(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	gen := NewSnowflake(node)

	a, err := gen.Next()
	require.NoError(t, err)
	b, err := gen.Next()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestProvide(t *testing.T) {
	holder := config.NewStaticDirectoryConfigHolder(config.DefaultDirectoryConfig())

	gen, err := Provide(config.Config{CustomerID: config.CustomerIDConfig{Strategy: config.IDStrategyRandom}}, holder)
	require.NoError(t, err)
	assert.IsType(t, &Random{}, gen)

	gen, err = Provide(config.Config{CustomerID: config.CustomerIDConfig{Strategy: config.IDStrategySnowflake, Node: 3}}, holder)
	require.NoError(t, err)
	assert.IsType(t, &Snowflake{}, gen)

	_, err = Provide(config.Config{CustomerID: config.CustomerIDConfig{Strategy: config.IDStrategySnowflake, Node: 5000}}, holder)
	assert.Error(t, err)
}
