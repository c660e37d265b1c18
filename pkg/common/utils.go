package common

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"moff.io/moff-connector/pkg/log"
)

// NewCutUUIDString returns uuid string that cut `-`.
func NewCutUUIDString() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

var (
	payloadNode     *snowflake.Node
	payloadNodeOnce sync.Once
)

// NewPayloadID returns a JSON-RPC payload id: the snowflake millisecond timestamp times 1000
// plus the sequence step. The result stays below 2^53 so javascript peers read it exactly.
func NewPayloadID() int64 {
	payloadNodeOnce.Do(func() {
		node, err := snowflake.NewNode(1)
		if err != nil {
			log.Fatalf("create snowflake node:%v", err)
		}
		payloadNode = node
	})
	id := payloadNode.Generate()
	return id.Time()*1000 + id.Step()%1000
}

// MustGetJSONString returns the JSON of m, "{}" when m cannot be marshaled.
func MustGetJSONString(m interface{}) string {
	if m == nil {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		log.Error(err)
		return "{}"
	}
	return string(data)
}

// TrimIP drops the port of a host:port address.
func TrimIP(ip string) string {
	last := strings.LastIndex(ip, ":")
	if last != -1 {
		ip = ip[0:last]
	}
	return ip
}
