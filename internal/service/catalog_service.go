package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusgate/admissions-api/internal/models"
	appErrors "github.com/campusgate/admissions-api/pkg/errors"
)

type catalogReader interface {
	FindInstitution(ctx context.Context, id string) (*models.Institution, error)
	FindFaculty(ctx context.Context, institutionID, id string) (*models.Faculty, error)
	FindCourse(ctx context.Context, institutionID, facultyID, id string) (*models.Course, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CatalogService serves institution/faculty/course reads through a shared
// cache. Every operation reads through explicitly; nothing is held in-process,
// so concurrent requests never observe stale local state.
type CatalogService struct {
	repo    catalogReader
	cache   catalogCache
	ttl     time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// NewCatalogService constructs a CatalogService. cache may be nil, in which
// case every read falls through to the repository.
func NewCatalogService(repo catalogReader, cache catalogCache, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, cache: cache, ttl: ttl, metrics: metrics, logger: logger}
}

// GetInstitution returns an institution by ID.
func (s *CatalogService) GetInstitution(ctx context.Context, id string) (*models.Institution, error) {
	key := "catalog:institution:" + id
	var cached models.Institution
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}
	inst, err := s.repo.FindInstitution(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
	}
	s.cacheSet(ctx, key, inst)
	return inst, nil
}

// GetFaculty returns a faculty by ID within an institution.
func (s *CatalogService) GetFaculty(ctx context.Context, institutionID, id string) (*models.Faculty, error) {
	key := fmt.Sprintf("catalog:faculty:%s:%s", institutionID, id)
	var cached models.Faculty
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}
	fac, err := s.repo.FindFaculty(ctx, institutionID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	s.cacheSet(ctx, key, fac)
	return fac, nil
}

// GetCourse returns a course with its requirements.
func (s *CatalogService) GetCourse(ctx context.Context, institutionID, facultyID, id string) (*models.Course, error) {
	key := fmt.Sprintf("catalog:course:%s:%s:%s", institutionID, facultyID, id)
	var cached models.Course
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}
	course, err := s.repo.FindCourse(ctx, institutionID, facultyID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	s.cacheSet(ctx, key, course)
	return course, nil
}

func (s *CatalogService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		s.metrics.RecordCacheOperation(true)
		return true
	}
	s.metrics.RecordCacheOperation(false)
	if !appErrors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Sugar().Warnw("catalog cache read failed", "key", key, "error", err)
	}
	return false
}

func (s *CatalogService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Sugar().Warnw("catalog cache write failed", "key", key, "error", err)
	}
}
