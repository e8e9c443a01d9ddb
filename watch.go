package predictionmarket

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// Watch keeps the session current until ctx is done. It refreshes on every
// tick of the refresh interval and reacts to wallet events: a chain change or
// reconnect reconnects the session, an accounts change switches the active
// account and a disconnect invalidates the handle. Refreshes are throttled so
// bursts of events do not flood the node. events may be nil.
func (c *Client) Watch(ctx context.Context, events <-chan WalletEvent) error {
	limiter := rate.NewLimiter(rate.Every(c.refreshInterval), c.refreshBurst)
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	c.refreshLimited(ctx, limiter)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			c.refreshLimited(ctx, limiter)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.handleEvent(ctx, ev)
			if ev.Type != EventDisconnect {
				c.refreshLimited(ctx, limiter)
			}
		}
	}
}

func (c *Client) handleEvent(ctx context.Context, ev WalletEvent) {
	log := c.logger.With("event", string(ev.Type))

	switch ev.Type {
	case EventChainChanged, EventConnect:
		if ev.ChainID != "" {
			if id, err := ev.ParsedChainID(); err == nil {
				log = log.With("chain_id", uint64(id))
			}
		}
		log.Info("reconnecting session")
		if _, err := c.Connect(ctx); err != nil && !errors.Is(err, ErrStaleResult) {
			log.Warn("reconnect failed", "error", err)
		}

	case EventAccountsChanged:
		var account common.Address
		if addrs := ev.Addresses(); len(addrs) > 0 {
			account = addrs[0]
		}
		c.SwitchAccount(account)

	case EventDisconnect:
		c.Invalidate()

	default:
		log.Debug("ignoring wallet event")
	}
}

func (c *Client) refreshLimited(ctx context.Context, limiter *rate.Limiter) {
	if !c.Handle().Available() {
		return
	}
	if !limiter.Allow() {
		c.logger.Debug("refresh throttled")
		return
	}

	_, err := c.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleResult), errors.Is(err, ErrHandleInvalid):
		c.logger.Debug("refresh skipped", "reason", err)
	case ctx.Err() != nil:
	default:
		c.logger.Warn("refresh failed", "error", err)
	}
}
