// Package idgen produces customer identifiers.
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/customerdir/internal/config"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator returns candidate identifiers. Candidates are not guaranteed to be
// unused; callers check availability before storing.
type Generator interface {
	Next() (string, error)
}

// LengthFunc reports the current identifier length.
type LengthFunc func() int

// Random generates fixed-length alphanumeric identifiers from crypto/rand.
type Random struct {
	length LengthFunc
}

func NewRandom(length LengthFunc) *Random {
	return &Random{length: length}
}

func (g *Random) Next() (string, error) {
	n := g.length()
	if n <= 0 {
		return "", fmt.Errorf("idgen: invalid length %d", n)
	}
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("idgen: read random: %w", err)
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}

// Snowflake generates time-ordered identifiers from a snowflake node.
type Snowflake struct {
	node *snowflake.Node
}

func NewSnowflake(node *snowflake.Node) *Snowflake {
	return &Snowflake{node: node}
}

func (g *Snowflake) Next() (string, error) {
	return g.node.Generate().Base58(), nil
}

// Provide selects the generator configured by CUSTOMER_ID_STRATEGY.
func Provide(cfg config.Config, holder *config.DirectoryConfigHolder) (Generator, error) {
	switch cfg.CustomerID.Strategy {
	case config.IDStrategySnowflake:
		node, err := snowflake.NewNode(cfg.CustomerID.Node)
		if err != nil {
			return nil, fmt.Errorf("idgen: snowflake node: %w", err)
		}
		return NewSnowflake(node), nil
	default:
		return NewRandom(func() int { return holder.Get().IDLength }), nil
	}
}
