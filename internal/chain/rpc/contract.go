package rpc

import "context"

// Contract is a handle on one deployed contract.
type Contract struct {
	client  *Client
	address string
}

// Contract returns a handle for address. Handles are cheap and stateless.
func (c *Client) Contract(address string) *Contract {
	return &Contract{client: c, address: address}
}

func (c *Contract) Address() string {
	return c.address
}

// Call invokes a view entry point. The result is the raw felt array as []any so
// callers can normalize it alongside other response shapes.
func (c *Contract) Call(ctx context.Context, method string, calldata ...string) (any, error) {
	out, err := c.client.Call(ctx, c.address, method, calldata)
	if err != nil {
		return nil, err
	}
	res := make([]any, len(out))
	for i, v := range out {
		res[i] = v
	}
	return res, nil
}
