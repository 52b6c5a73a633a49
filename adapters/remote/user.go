package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rdmonitor/rdmon/domain/account"
	"github.com/rdmonitor/rdmon/ports"
)

// PathUser is the account profile endpoint.
const PathUser = "user"

// ProfileTimeout bounds a profile request regardless of the client timeout.
const ProfileTimeout = 10 * time.Second

type userPayload struct {
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	Points     json.Number `json:"points"`
	Type       string      `json:"type"`
	Expiration string      `json:"expiration"`
}

// Profile fetches the account behind apiKey.
func (c *Client) Profile(ctx context.Context, apiKey string) (account.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, ProfileTimeout)
	defer cancel()

	body, err := c.Get(ctx, PathUser, nil, apiKey)
	if err != nil {
		return account.Profile{}, err
	}

	var p userPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return account.Profile{}, parseError(PathUser, err)
	}

	points, err := numberToInt64(p.Points)
	if err != nil {
		return account.Profile{}, parseError(PathUser, err)
	}

	return account.Profile{
		Username:   p.Username,
		Email:      p.Email,
		Points:     points,
		Type:       p.Type,
		Expiration: p.Expiration,
	}, nil
}

// numberToInt64 accepts integral and fractional numbers, truncating the
// latter. An absent number is zero.
func numberToInt64(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("points %q is not a number", n.String())
	}
	return int64(f), nil
}

var _ ports.AccountSource = (*Client)(nil)
