package nodedb

import (
	"context"
	"time"

	dbpkg "sensornet-gateway/internal/db"
	"sensornet-gateway/internal/model"
)

// Client exposes a stable API for third-party packages to read the gateway database.
type Client struct{ db *dbpkg.DB }

// Open opens the SQLite database (runs migrations) and returns a client.
func Open(path string) (*Client, error) {
	d, err := dbpkg.Open(path)
	if err != nil {
		return nil, err
	}
	return &Client{db: d}, nil
}

// Close closes the underlying DB.
func (c *Client) Close() error { return c.db.Close() }

// --------------------
// Node DTOs and converters
// --------------------

type Node struct {
	ID              uint8
	Protocol        string
	SketchName      string
	SketchVersion   string
	FirmwareType    *uint16
	FirmwareVersion *uint16
	RebootRequested bool
	SensorTypes     []uint8
	UpdatedAt       time.Time
}

func fromModelNode(n *model.Node) *Node {
	if n == nil {
		return nil
	}
	return &Node{
		ID:              n.ID,
		Protocol:        n.Protocol,
		SketchName:      n.SketchName,
		SketchVersion:   n.SketchVersion,
		FirmwareType:    n.FirmwareType,
		FirmwareVersion: n.FirmwareVersion,
		RebootRequested: n.RebootRequested,
		SensorTypes:     n.SensorTypes(),
		UpdatedAt:       n.UpdatedAt,
	}
}

// --------------------
// Node queries
// --------------------

// GetNode returns nil when the node is unknown.
func (c *Client) GetNode(ctx context.Context, id uint8) (*Node, error) {
	n, err := c.db.FindNode(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromModelNode(n), nil
}

func (c *Client) ListNodes(ctx context.Context) ([]Node, error) {
	list, err := c.db.FindNodesSortedByID(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(list))
	for i := range list {
		out = append(out, *fromModelNode(&list[i]))
	}
	return out, nil
}

// RequestReboot flags a node; the gateway sends I_REBOOT after the node's next message.
func (c *Client) RequestReboot(ctx context.Context, id uint8) error {
	return c.db.RequestReboot(ctx, id)
}
