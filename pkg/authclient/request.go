package authclient

import (
	"context"
	"errors"
	"net/http"
)

// Per-request states of the authorized-request protocol. Modeling the
// flow as an explicit machine keeps the exactly-one-retry guarantee
// visible instead of burying it in nested callbacks.
type requestState int

const (
	statePending requestState = iota
	stateUnauthorized
	stateRefreshing
	stateRetried
	stateDone
)

// Do issues an authorized request. Protocol, per the session contract:
//
//  1. with no in-process token, load one from the durable store;
//  2. send with the current token as bearer credential;
//  3. on 401/403 refresh once (cookie-driven) and retry exactly once;
//     a failed refresh surfaces ErrSessionExpired;
//  4. every other status is returned untouched - business-level errors
//     are not interpreted here.
//
// The caller owns the response body.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	token := c.Token()
	if token == "" {
		if stored, err := c.store.Load(); err == nil && stored != "" {
			c.mu.Lock()
			c.accessToken = stored
			c.mu.Unlock()
			token = stored
		}
	}

	state := statePending
	var resp *http.Response

	for {
		switch state {
		case statePending:
			r, err := c.send(ctx, method, path, body, token)
			if err != nil {
				return nil, err
			}
			if r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden {
				r.Body.Close()
				state = stateUnauthorized
			} else {
				resp = r
				state = stateDone
			}

		case stateUnauthorized:
			state = stateRefreshing

		case stateRefreshing:
			if err := c.Refresh(ctx); err != nil {
				if errors.Is(err, ErrSessionExpired) {
					return nil, err
				}
				return nil, errors.Join(ErrSessionExpired, err)
			}
			token = c.Token()
			state = stateRetried

		case stateRetried:
			// The retried response is final whatever its status;
			// a second 401 must not trigger another refresh.
			r, err := c.send(ctx, method, path, body, token)
			if err != nil {
				return nil, err
			}
			resp = r
			state = stateDone

		case stateDone:
			return resp, nil
		}
	}
}
