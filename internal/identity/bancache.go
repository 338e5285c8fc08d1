package identity

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/goban-dev/goban/internal/domain"
	"github.com/goban-dev/goban/internal/logger"
)

// BanSource is the minimal storage surface the cache needs.
type BanSource interface {
	ActiveBans(ctx context.Context) ([]domain.Ban, error)
}

type banEntry struct {
	addr      netip.Addr
	prefix    netip.Prefix
	isPrefix  bool
	expiresAt *time.Time
}

// BanCache keeps the current ban set in memory and refreshes it
// periodically. Ban staleness of up to one refresh interval is acceptable;
// expiry is still checked per lookup so a lapsed ban never matches.
type BanCache struct {
	source  BanSource
	mu      sync.RWMutex
	entries []banEntry
}

func NewBanCache(source BanSource) *BanCache {
	return &BanCache{source: source}
}

// Refresh replaces the cached ban set from storage. Unparsable ban rows are
// skipped with a warning rather than failing the whole refresh.
func (c *BanCache) Refresh(ctx context.Context) error {
	bans, err := c.source.ActiveBans(ctx)
	if err != nil {
		return err
	}

	entries := make([]banEntry, 0, len(bans))
	for _, ban := range bans {
		entry, ok := parseBan(ban)
		if !ok {
			logger.Log.Warn("skipping unparsable ban entry",
				"component", "ban_cache", "ban_id", ban.ID, "ip_address", ban.IPAddress)
			continue
		}
		entries = append(entries, entry)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// IsBanned matches the address against exact entries and CIDR blocks.
// An unparsable client address is treated as not banned.
func (c *BanCache) IsBanned(_ context.Context, clientAddr string) (bool, error) {
	addr, err := netip.ParseAddr(clientAddr)
	if err != nil {
		return false, nil
	}
	addr = addr.Unmap()

	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.expiresAt != nil && e.expiresAt.Before(now) {
			continue
		}
		if e.isPrefix {
			if e.prefix.Contains(addr) {
				return true, nil
			}
		} else if e.addr == addr {
			return true, nil
		}
	}
	return false, nil
}

// StartBackgroundRefresh refreshes the cache on a ticker until ctx is done.
func (c *BanCache) StartBackgroundRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	logger.Log.Info("started ban cache background refresh",
		"component", "ban_cache", "interval", interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.Refresh(ctx); err != nil {
					logger.Log.Error("ban cache refresh failed",
						"component", "ban_cache", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func parseBan(ban domain.Ban) (banEntry, bool) {
	if prefix, err := netip.ParsePrefix(ban.IPAddress); err == nil {
		return banEntry{prefix: prefix.Masked(), isPrefix: true, expiresAt: ban.ExpiresAt}, true
	}
	if addr, err := netip.ParseAddr(ban.IPAddress); err == nil {
		return banEntry{addr: addr.Unmap(), expiresAt: ban.ExpiresAt}, true
	}
	return banEntry{}, false
}
