package utilities

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string. Used for one-time
// codes sent by email (verification, restore, reset) and 2FA challenges.
func NewKSUID() string {
	return ksuid.New().String()
}

// RandomHex returns n random bytes encoded as hex. Salts and hashCheck
// markers are 16 bytes.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewRequestID generates a snowflake ID string using a node ID from
// the environment variable SNOWFLAKE_NODE (default 1). If node setup fails
// it falls back to a KSUID string.
func NewRequestID() string {
	nodeOnce.Do(func() {
		nodeID := int64(1)
		if v, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64); err == nil {
			nodeID = v
		}
		node, _ = snowflake.NewNode(nodeID)
	})
	if node == nil {
		return NewKSUID()
	}
	return node.Generate().String()
}
