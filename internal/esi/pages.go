package esi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"eve-hubcompare/internal/logger"
	"eve-hubcompare/internal/metrics"
)

// ETagStore persists the last-seen ETag per (region, type, page).
type ETagStore interface {
	GetETag(regionID, typeID int32, page int) (string, bool)
	SetETag(regionID, typeID int32, page int, etag string)
}

type hintKey struct {
	RegionID int32
	TypeID   int32
}

// PageCache performs ETag-conditional fetches of single order pages and keeps
// the raw body of every page on disk so a 304 can be answered locally.
type PageCache struct {
	client   *Client
	etags    ETagStore
	dir      string
	maxPages int

	mu    sync.Mutex
	hints map[hintKey]int
}

// NewPageCache creates a page cache writing raw bodies under dir.
// maxPages bounds pagination regardless of the server's X-Pages hint.
func NewPageCache(client *Client, etags ETagStore, dir string, maxPages int) *PageCache {
	if maxPages < 1 {
		maxPages = 1
	}
	return &PageCache{
		client:   client,
		etags:    etags,
		dir:      dir,
		maxPages: maxPages,
		hints:    make(map[hintKey]int),
	}
}

// PageLimit returns min(server hint, configured max). Before any page has
// been seen the limit is 1.
func (pc *PageCache) PageLimit(regionID, typeID int32) int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	hint, ok := pc.hints[hintKey{regionID, typeID}]
	if !ok || hint < 1 {
		return 1
	}
	if hint > pc.maxPages {
		return pc.maxPages
	}
	return hint
}

// FetchPage returns the orders of one page:
//  1. known ETag → conditional request (If-None-Match)
//     - 304 with local body: parse local body
//     - 304 without local body: one unconditional refetch
//  2. 200: enforce the payload ceiling, store ETag and body, parse
//
// Any other outcome is an error; callers treat it as "no data this cycle".
func (pc *PageCache) FetchPage(ctx context.Context, regionID, typeID int32, page int) ([]RawOrder, error) {
	url := OrdersURL(pc.client.BaseURL(), regionID, typeID, page)

	var header http.Header
	if pc.etags != nil {
		if etag, ok := pc.etags.GetETag(regionID, typeID, page); ok && etag != "" {
			header = http.Header{"If-None-Match": []string{etag}}
		}
	}

	resp, err := pc.client.Get(ctx, url, header)
	if err != nil {
		metrics.PageCache.WithLabelValues("error").Inc()
		return nil, err
	}
	pc.recordHint(regionID, typeID, resp.Header)

	if resp.StatusCode == http.StatusNotModified {
		body, err := os.ReadFile(pc.bodyPath(regionID, typeID, page))
		if err == nil {
			metrics.PageCache.WithLabelValues("hit_304").Inc()
			return parseOrders(body)
		}
		// The ETag outlived its body; fetch once without the condition.
		logger.Warn("ESI", fmt.Sprintf("304 without cached body region=%d type=%d page=%d, refetching", regionID, typeID, page))
		metrics.PageCache.WithLabelValues("refetch").Inc()
		resp, err = pc.client.Get(ctx, url, nil)
		if err != nil {
			metrics.PageCache.WithLabelValues("error").Inc()
			return nil, err
		}
		pc.recordHint(regionID, typeID, resp.Header)
		if resp.StatusCode == http.StatusNotModified {
			metrics.PageCache.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: region=%d type=%d page=%d", ErrNotModified, regionID, typeID, page)
		}
	}

	if resp.StatusCode != http.StatusOK {
		metrics.PageCache.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ESI %d: region=%d type=%d page=%d", resp.StatusCode, regionID, typeID, page)
	}
	if int64(len(resp.Body)) > pc.client.MaxPayloadBytes() {
		metrics.PageCache.WithLabelValues("oversize").Inc()
		return nil, fmt.Errorf("%w: region=%d type=%d page=%d", ErrPayloadTooLarge, regionID, typeID, page)
	}

	orders, err := parseOrders(resp.Body)
	if err != nil {
		metrics.PageCache.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := pc.storeBody(regionID, typeID, page, resp.Body); err != nil {
		logger.Warn("ESI", fmt.Sprintf("store page body: %v", err))
	} else if etag := resp.Header.Get("ETag"); etag != "" && pc.etags != nil {
		pc.etags.SetETag(regionID, typeID, page, etag)
	}
	metrics.PageCache.WithLabelValues("fetched").Inc()
	return orders, nil
}

func (pc *PageCache) recordHint(regionID, typeID int32, h http.Header) {
	p := h.Get("X-Pages")
	if p == "" {
		return
	}
	n, err := strconv.Atoi(p)
	if err != nil || n < 1 {
		return
	}
	pc.mu.Lock()
	pc.hints[hintKey{regionID, typeID}] = n
	pc.mu.Unlock()
}

func (pc *PageCache) bodyPath(regionID, typeID int32, page int) string {
	return filepath.Join(pc.dir, fmt.Sprintf("r%d_t%d_p%d.json", regionID, typeID, page))
}

// storeBody writes the raw page atomically (temp file + rename).
func (pc *PageCache) storeBody(regionID, typeID int32, page int, body []byte) error {
	if pc.dir == "" {
		return errors.New("page cache has no directory")
	}
	if err := os.MkdirAll(pc.dir, 0o700); err != nil {
		return err
	}
	final := pc.bodyPath(regionID, typeID, page)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Clear removes all stored page bodies and hints.
func (pc *PageCache) Clear() error {
	pc.mu.Lock()
	pc.hints = make(map[hintKey]int)
	pc.mu.Unlock()
	if pc.dir == "" {
		return nil
	}
	if err := os.RemoveAll(pc.dir); err != nil {
		return fmt.Errorf("clear page bodies: %w", err)
	}
	return nil
}

func parseOrders(body []byte) ([]RawOrder, error) {
	var orders []RawOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}
