package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/telsite/fieldops-api/internal/models"
	appErrors "github.com/telsite/fieldops-api/pkg/errors"
)

const (
	siteListCacheKey = "sites:list"
	siteCacheKey     = "sites:item:"
)

type siteReader interface {
	List(ctx context.Context) ([]models.Site, error)
	Get(ctx context.Context, siteID string) (*models.Site, error)
}

// SiteService serves the read side of the ledger: hydrated site snapshots and
// the derived pending/active sets the dashboards poll for. Reads go through a
// short-TTL cache so the 3-10 s polling loops don't hammer the store.
type SiteService struct {
	repo   siteReader
	cache  *CacheService
	logger *zap.Logger
}

// NewSiteService constructs the query service.
func NewSiteService(repo siteReader, cache *CacheService, logger *zap.Logger) *SiteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteService{repo: repo, cache: cache, logger: logger}
}

// List returns every site with occupancy and custody records attached.
func (s *SiteService) List(ctx context.Context) ([]models.Site, error) {
	var cached []models.Site
	if hit, _ := s.cache.Get(ctx, siteListCacheKey, &cached); hit {
		return cached, nil
	}

	sites, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeError(err, "failed to list sites")
	}

	_ = s.cache.Set(ctx, siteListCacheKey, sites, 0)
	return sites, nil
}

// Get returns one hydrated site.
func (s *SiteService) Get(ctx context.Context, siteID string) (*models.Site, error) {
	var cached models.Site
	if hit, _ := s.cache.Get(ctx, siteCacheKey+siteID, &cached); hit {
		return &cached, nil
	}

	site, err := s.repo.Get(ctx, siteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "site not found")
		}
		return nil, storeError(err, "failed to load site")
	}

	_ = s.cache.Set(ctx, siteCacheKey+siteID, site, 0)
	return site, nil
}

// Overview computes the derived sets over the ledger fields: sites with a
// request awaiting authorization and sites with a visitor on the ground.
func (s *SiteService) Overview(ctx context.Context) (*models.SiteOverview, error) {
	sites, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	overview := &models.SiteOverview{
		PendingAccess:  []models.Site{},
		PendingKeys:    []models.Site{},
		ActiveVisitors: []models.Site{},
	}
	for _, site := range sites {
		if site.PendingVisitor != nil {
			overview.PendingAccess = append(overview.PendingAccess, site)
		}
		if site.PendingKeyLog != nil {
			overview.PendingKeys = append(overview.PendingKeys, site)
		}
		if site.CurrentVisitor != nil {
			overview.ActiveVisitors = append(overview.ActiveVisitors, site)
		}
	}
	return overview, nil
}
