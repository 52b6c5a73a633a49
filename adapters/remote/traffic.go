package remote

import (
	"context"
	"net/url"

	"github.com/rdmonitor/rdmon/domain/traffic"
	"github.com/rdmonitor/rdmon/ports"
)

// Traffic endpoint paths, relative to the base URL.
const (
	PathTrafficDetails = "traffic/details"
	PathTraffic        = "traffic"
)

// TrafficClient queries the traffic endpoints with one API key.
type TrafficClient struct {
	client *Client
	apiKey string
}

// Traffic binds the client to apiKey.
func (c *Client) Traffic(apiKey string) *TrafficClient {
	return &TrafficClient{client: c, apiKey: apiKey}
}

// TrafficSource is Traffic typed as a port; c.TrafficSource is a
// ports.TrafficSourceFactory.
func (c *Client) TrafficSource(apiKey string) ports.TrafficSource {
	return c.Traffic(apiKey)
}

func (t *TrafficClient) details(ctx context.Context, start, end string) ([]byte, error) {
	q := url.Values{}
	q.Set("start", start)
	q.Set("end", end)
	return t.client.Get(ctx, PathTrafficDetails, q, t.apiKey)
}

// DetailsTotal returns the total bytes transferred between start and end
// (inclusive, yyyy-MM-dd).
func (t *TrafficClient) DetailsTotal(ctx context.Context, start, end string) (int64, error) {
	body, err := t.details(ctx, start, end)
	if err != nil {
		return 0, err
	}
	total, err := traffic.DecodeDetailsTotal(body)
	if err != nil {
		return 0, parseError(PathTrafficDetails, err)
	}
	return total, nil
}

// Days returns the per-day host breakdown between start and end.
func (t *TrafficClient) Days(ctx context.Context, start, end string) ([]traffic.Day, error) {
	body, err := t.details(ctx, start, end)
	if err != nil {
		return nil, err
	}
	days, err := traffic.DecodeDays(body)
	if err != nil {
		return nil, parseError(PathTrafficDetails, err)
	}
	return days, nil
}

// Hosts returns the cumulative usage of every limited hoster.
func (t *TrafficClient) Hosts(ctx context.Context) ([]traffic.HostTraffic, error) {
	body, err := t.client.Get(ctx, PathTraffic, nil, t.apiKey)
	if err != nil {
		return nil, err
	}
	hosts, err := traffic.DecodeHosts(body)
	if err != nil {
		return nil, parseError(PathTraffic, err)
	}
	return hosts, nil
}

var _ ports.TrafficSource = (*TrafficClient)(nil)
