package curseforge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"curseforge-mod-fetcher/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	searchEndpoint = "/v1/mods/search"
	modEndpoint    = "/v1/mods/%d"
	fileEndpoint   = "/v1/mods/%d/files/%d"
	urlEndpoint    = "/v1/mods/%d/files/%d/download-url"
)

// Catalog answers searches and mod lookups for one game.
type Catalog struct {
	client  *Client
	gameID  int
	cache   *expirable.LRU[int, Mod]
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// CatalogOption configures a Catalog during construction.
type CatalogOption func(*Catalog)

// WithModCache caches successful GetMod results for ttl. A size <= 0 leaves
// caching disabled.
func WithModCache(size int, ttl time.Duration) CatalogOption {
	return func(c *Catalog) {
		if size > 0 {
			c.cache = expirable.NewLRU[int, Mod](size, nil, ttl)
		}
	}
}

func WithCatalogLogger(log *zap.SugaredLogger) CatalogOption {
	return func(c *Catalog) {
		if log != nil {
			c.log = log
		}
	}
}

func WithCatalogMetrics(m *metrics.Metrics) CatalogOption {
	return func(c *Catalog) {
		c.metrics = m
	}
}

func NewCatalog(client *Client, gameID int, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		client: client,
		gameID: gameID,
		log:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs one catalog query. Zero matches yield an empty, non-nil Mods.
func (c *Catalog) Search(ctx context.Context, filter SearchFilter) (*SearchResult, error) {
	if filter.PageSize <= 0 {
		return nil, fmt.Errorf("invalid search filter: page size must be positive, got %d", filter.PageSize)
	}

	var resp envelope[[]Mod]
	if err := c.client.Get(ctx, searchEndpoint, c.searchParams(filter), &resp); err != nil {
		return nil, fmt.Errorf("searching mods: %w", err)
	}

	result := &SearchResult{Mods: resp.Data}
	if result.Mods == nil {
		result.Mods = []Mod{}
	}
	if resp.Pagination != nil {
		result.Pagination = *resp.Pagination
	} else {
		result.Pagination = Pagination{Index: filter.Index, PageSize: filter.PageSize, ResultCount: len(result.Mods)}
	}

	c.log.Infow("Search completed",
		zap.String("search", filter.SearchText),
		zap.Int("results", result.Pagination.ResultCount),
		zap.Int("total", result.Pagination.TotalCount))
	return result, nil
}

func (c *Catalog) searchParams(filter SearchFilter) Params {
	sortField := filter.SortField
	if sortField == 0 {
		sortField = SortPopularity
	}
	sortOrder := filter.SortOrder
	if sortOrder == "" {
		sortOrder = SortDesc
	}

	params := Params{
		"gameId":       strconv.Itoa(c.gameID),
		"pageSize":     strconv.Itoa(filter.PageSize),
		"sortField":    strconv.Itoa(int(sortField)),
		"sortOrder":    string(sortOrder),
		"searchFilter": filter.SearchText,
		"gameVersion":  filter.GameVersion,
	}
	if filter.CategoryID != 0 {
		params["categoryId"] = strconv.Itoa(filter.CategoryID)
	}
	if filter.ModLoaderType != ModLoaderAny {
		params["modLoaderType"] = strconv.Itoa(int(filter.ModLoaderType))
	}
	if filter.Index > 0 {
		params["index"] = strconv.Itoa(filter.Index)
	}
	return params
}

// GetMod fetches mod detail. A 404 or a response without data both yield a
// *NotFoundError.
func (c *Catalog) GetMod(ctx context.Context, modID int) (*Mod, error) {
	if c.cache != nil {
		if mod, ok := c.cache.Get(modID); ok {
			c.metrics.ObserveCache(true)
			mod = mod.clone()
			return &mod, nil
		}
		c.metrics.ObserveCache(false)
	}

	var resp envelope[*Mod]
	err := c.client.Get(ctx, fmt.Sprintf(modEndpoint, modID), nil, &resp)
	if isStatus(err, http.StatusNotFound) || (err == nil && resp.Data == nil) {
		return nil, &NotFoundError{Resource: "mod", ID: strconv.Itoa(modID)}
	}
	if err != nil {
		return nil, fmt.Errorf("getting mod %d: %w", modID, err)
	}

	if c.cache != nil {
		c.cache.Add(modID, resp.Data.clone())
	}
	return resp.Data, nil
}

// GetModFile fetches a single file of a mod.
func (c *Catalog) GetModFile(ctx context.Context, modID, fileID int) (*File, error) {
	var resp envelope[*File]
	err := c.client.Get(ctx, fmt.Sprintf(fileEndpoint, modID, fileID), nil, &resp)
	if isStatus(err, http.StatusNotFound) || (err == nil && resp.Data == nil) {
		return nil, &NotFoundError{Resource: "file", ID: fmt.Sprintf("%d/%d", modID, fileID)}
	}
	if err != nil {
		return nil, fmt.Errorf("getting file %d of mod %d: %w", fileID, modID, err)
	}
	return resp.Data, nil
}

// GetDownloadURL returns the direct URL of a file. The catalog answers with an
// empty string for files whose authors disallow third-party distribution.
func (c *Catalog) GetDownloadURL(ctx context.Context, modID, fileID int) (string, error) {
	var resp envelope[string]
	if err := c.client.Get(ctx, fmt.Sprintf(urlEndpoint, modID, fileID), nil, &resp); err != nil {
		return "", fmt.Errorf("getting download url for mod %d file %d: %w", modID, fileID, err)
	}
	return resp.Data, nil
}

func isStatus(err error, code int) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
