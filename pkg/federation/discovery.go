package federation

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/api"
)

// Inventory maps a backend id to the peers hosting it, in peer order.
type Inventory map[string][]string

// Discover asks every peer for its models until one round succeeds for
// all peers. A round fails as a whole when any peer cannot be reached or
// reports no models; the next round re-queries every peer after the
// discovery delay. Discover only returns early when ctx is done.
func (c *Client) Discover(ctx context.Context) (Inventory, error) {
	for round := 1; ; round++ {
		inv, err := c.discoverRound(ctx)
		if err == nil {
			discoveryRoundsTotal.WithLabelValues("success").Inc()
			c.logger.WithFields(logrus.Fields{
				"round":    round,
				"peers":    len(c.peers),
				"backends": len(inv),
			}).Info("Discovered peer models")
			return inv, nil
		}
		discoveryRoundsTotal.WithLabelValues("failure").Inc()
		c.logger.WithError(err).WithFields(logrus.Fields{
			"round":    round,
			"delay_ms": c.discoveryDelay.Milliseconds(),
		}).Warn("Model discovery round failed, retrying")

		select {
		case <-time.After(c.discoveryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) discoverRound(ctx context.Context) (Inventory, error) {
	models := make([][]string, len(c.peers))

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for i, peer := range c.peers {
		wg.Add(1)
		go func(i int, peer string) {
			defer wg.Done()
			m, err := c.GetModels(ctx, peer)
			if err == nil && len(m) == 0 {
				err = fmt.Errorf("peer %s reported no models", peer)
			}
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}
			models[i] = m
		}(i, peer)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	inv := make(Inventory)
	for i, peer := range c.peers {
		for _, m := range models[i] {
			inv[m] = append(inv[m], peer)
		}
	}
	return inv, nil
}

// Healthy polls every peer's health concurrently and reports whether all
// of them are currently available. Each peer is asked once, without
// retries, so a peer going down shows up on the very next poll.
func (c *Client) Healthy(ctx context.Context) bool {
	healthy := make([]bool, len(c.peers))

	var wg sync.WaitGroup
	for i, peer := range c.peers {
		wg.Add(1)
		go func(i int, peer string) {
			defer wg.Done()
			var resp api.HealthResponse
			err := c.do(ctx, peer, http.MethodGet, "/health", nil, &resp)
			if err != nil {
				c.logger.WithError(err).WithField("peer", peer).Warn("Peer health check failed")
			}
			healthy[i] = err == nil && resp.ServiceAvailable
			if healthy[i] {
				peerHealthy.WithLabelValues(peer).Set(1)
			} else {
				peerHealthy.WithLabelValues(peer).Set(0)
			}
		}(i, peer)
	}
	wg.Wait()

	for _, ok := range healthy {
		if !ok {
			return false
		}
	}
	return true
}
