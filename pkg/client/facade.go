package client

import (
	"context"
	"fmt"
	"time"

	"github.com/webstatus-tools/webstatus-client/pkg/pagination"
	"github.com/webstatus-tools/webstatus-client/pkg/query"
)

// dateFormat is the wire format for baseline_date bounds.
const dateFormat = "2006-01-02"

// FeaturesByStatus returns every feature with the given baseline status.
func (c *Client) FeaturesByStatus(ctx context.Context, status query.Status, opts ...CallOption) ([]pagination.Record, error) {
	return c.CollectRecords(ctx, query.NewBuilder().ByStatus(status), opts...)
}

// FeaturesByGroup returns every feature in the given technology group.
func (c *Client) FeaturesByGroup(ctx context.Context, group string, opts ...CallOption) ([]pagination.Record, error) {
	return c.CollectRecords(ctx, query.NewBuilder().ByGroup(group), opts...)
}

// FeaturesBySnapshot returns every feature in the given snapshot.
func (c *Client) FeaturesBySnapshot(ctx context.Context, name string, opts ...CallOption) ([]pagination.Record, error) {
	return c.CollectRecords(ctx, query.NewBuilder().BySnapshot(name), opts...)
}

// FeaturesByDateRange returns every feature whose baseline date falls
// between start and end inclusive.
func (c *Client) FeaturesByDateRange(ctx context.Context, start, end time.Time, opts ...CallOption) ([]pagination.Record, error) {
	b := query.NewBuilder().ByDateRange(start.Format(dateFormat), end.Format(dateFormat))
	return c.CollectRecords(ctx, b, opts...)
}

// FeatureByID returns the single feature with the given identifier, or
// ErrFeatureNotFound when the server has no record for it. An error
// here is how absence is reported; a genuinely empty result set never
// masks a failure.
func (c *Client) FeatureByID(ctx context.Context, id string, opts ...CallOption) (pagination.Record, error) {
	records, err := c.CollectRecords(ctx, query.NewBuilder().ByID(id), opts...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrFeatureNotFound, id)
	}
	return records[0], nil
}

// CSSFeatures returns every feature in the css technology group.
func (c *Client) CSSFeatures(ctx context.Context, opts ...CallOption) ([]pagination.Record, error) {
	return c.FeaturesByGroup(ctx, "css", opts...)
}

// WidelyAvailableFeatures returns every feature whose baseline status
// is widely available.
func (c *Client) WidelyAvailableFeatures(ctx context.Context, opts ...CallOption) ([]pagination.Record, error) {
	return c.FeaturesByStatus(ctx, query.StatusWidely, opts...)
}
