package client

import "context"

// CanOrder applies the membership gate to a profile snapshot: ordering
// requires both the signed agreement and settled dues.
func CanOrder(profile Profile) bool {
	return profile.PMAAgreed && profile.DuesPaid
}

// CheckCanOrder re-fetches the profile and applies the gate. UI state can be
// stale right after a payment is verified, so the check always goes back to
// the server.
func (c *Client) CheckCanOrder(ctx context.Context) (bool, error) {
	profile, err := c.Profile(ctx)
	if err != nil {
		return false, err
	}
	return CanOrder(profile), nil
}
