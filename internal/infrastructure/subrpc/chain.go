package subrpc

import (
	"context"
	"encoding/json"

	"chainbal/internal/domain"
	"chainbal/internal/fault"
)

const (
	MethodGetHeader        = "chain_getHeader"
	MethodGetFinalizedHead = "chain_getFinalizedHead"
	MethodGetStorage       = "state_getStorage"
)

// BestHeader returns the header of the current best block.
func (c *Client) BestHeader(ctx context.Context) (domain.Header, error) {
	var header *domain.Header
	if err := c.Call(ctx, MethodGetHeader, nil, &header); err != nil {
		return domain.Header{}, err
	}
	if header == nil {
		return domain.Header{}, fault.Decodef(MethodGetHeader, "null header")
	}
	return *header, nil
}

// HeaderAt returns the header of the block with the given hash.
func (c *Client) HeaderAt(ctx context.Context, hash string) (domain.Header, error) {
	var header *domain.Header
	if err := c.Call(ctx, MethodGetHeader, []any{hash}, &header); err != nil {
		return domain.Header{}, err
	}
	if header == nil {
		return domain.Header{}, fault.Decodef(MethodGetHeader, "no header for %s", hash)
	}
	return *header, nil
}

func (c *Client) FinalizedHash(ctx context.Context) (string, error) {
	var hash string
	if err := c.Call(ctx, MethodGetFinalizedHead, nil, &hash); err != nil {
		return "", err
	}
	if hash == "" {
		return "", fault.Decodef(MethodGetFinalizedHead, "empty hash")
	}
	return hash, nil
}

// HeadAndFinalized fetches the best header and the finalized hash in one
// round trip.
func (c *Client) HeadAndFinalized(ctx context.Context) (domain.Header, string, error) {
	results, err := c.Batch(ctx, []Request{
		{Method: MethodGetHeader},
		{Method: MethodGetFinalizedHead},
	})
	if err != nil {
		return domain.Header{}, "", err
	}
	var header *domain.Header
	if err := decodeResult(MethodGetHeader, results[0], &header); err != nil {
		return domain.Header{}, "", err
	}
	if header == nil {
		return domain.Header{}, "", fault.Decodef(MethodGetHeader, "null header")
	}
	var hash string
	if err := decodeResult(MethodGetFinalizedHead, results[1], &hash); err != nil {
		return domain.Header{}, "", err
	}
	if hash == "" {
		return domain.Header{}, "", fault.Decodef(MethodGetFinalizedHead, "empty hash")
	}
	return *header, hash, nil
}

// Storage reads several raw storage values in one round trip. A nil entry
// means nothing is stored under that key. When at is empty the best block is
// used.
func (c *Client) Storage(ctx context.Context, keys []string, at string) ([]*string, error) {
	requests := make([]Request, len(keys))
	for i, key := range keys {
		params := []any{key}
		if at != "" {
			params = append(params, at)
		}
		requests[i] = Request{Method: MethodGetStorage, Params: params}
	}
	results, err := c.Batch(ctx, requests)
	if err != nil {
		return nil, err
	}
	values := make([]*string, len(results))
	for i, raw := range results {
		if err := decodeResult(MethodGetStorage, raw, &values[i]); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func decodeResult(method string, raw json.RawMessage, target any) error {
	if err := json.Unmarshal(raw, target); err != nil {
		return &fault.DecodeError{What: method + " result", Err: err}
	}
	return nil
}
