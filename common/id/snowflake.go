package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a new globally unique int64 ID using the Snowflake algorithm.
func New() int64 {
	return generator().Generate().Int64()
}

// NewString returns a new ID in base36, short enough for thread and message keys.
// Base36 keeps lexical order close to generation order for equal-length ids.
func NewString() string {
	return generator().Generate().Base36()
}

func generator() *snowflake.Node {
	once.Do(func() {
		node, _ = snowflake.NewNode(0)
	})
	return node
}
