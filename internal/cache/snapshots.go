package cache

import (
	"context"
	"time"

	"moff.io/moff-connector/internal/wallet"
)

// Snapshots keeps the last connection in redis.
type Snapshots struct{}

var _ wallet.SnapshotStore = Snapshots{}

func (Snapshots) Save(ctx context.Context, s wallet.Snapshot) error {
	return SaveLastConnection(ctx, connectionOf(s))
}

func (Snapshots) Last(ctx context.Context) (*wallet.Snapshot, error) {
	conn, err := LastConnection(ctx)
	if err != nil || conn == nil {
		return nil, err
	}
	s := conn.snapshot()
	return &s, nil
}

func (Snapshots) Clear(ctx context.Context) error {
	return ClearLastConnection(ctx)
}

func connectionOf(s wallet.Snapshot) Connection {
	return Connection{
		Connector:   s.Connector,
		ChainID:     s.ChainID,
		Accounts:    s.Accounts,
		ConnectedAt: s.ConnectedAt.UnixMilli(),
	}
}

func (c *Connection) snapshot() wallet.Snapshot {
	return wallet.Snapshot{
		Connector:   c.Connector,
		ChainID:     c.ChainID,
		Accounts:    c.Accounts,
		ConnectedAt: time.UnixMilli(c.ConnectedAt),
	}
}
