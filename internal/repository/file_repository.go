package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"docqa-be/internal/entity"

	gocache "github.com/patrickmn/go-cache"
)

var (
	// ErrFileNotFound means no file with that id exists.
	ErrFileNotFound = errors.New("repository: file not found")
	// ErrNotOwned means the file exists but belongs to another user.
	// Callers must surface this identically to not-found.
	ErrNotOwned = errors.New("repository: file not owned by user")
)

type IFileRepository interface {
	ListByUser(ctx context.Context, userId string) ([]entity.UserFile, error)
	ListFileNames(ctx context.Context, userId string) ([]string, error)
	FindOwned(ctx context.Context, fileId, userId string) (*entity.UserFile, error)
}

type fileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) IFileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) ListByUser(ctx context.Context, userId string) ([]entity.UserFile, error) {
	var files []entity.UserFile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at DESC").
		Find(&files).Error
	return files, err
}

func (r *fileRepository) ListFileNames(ctx context.Context, userId string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&entity.UserFile{}).
		Where("user_id = ?", userId).
		Pluck("file_name", &names).Error
	return names, err
}

func (r *fileRepository) FindOwned(ctx context.Context, fileId, userId string) (*entity.UserFile, error) {
	var file entity.UserFile
	err := r.db.WithContext(ctx).Where("id = ?", fileId).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	if file.UserId != userId {
		return nil, ErrNotOwned
	}
	return &file, nil
}

const (
	fileCacheTTL     = 60 * time.Second
	fileCacheCleanup = 5 * time.Minute
)

// cachedFileRepository keeps per-user file name lists hot for the pipeline's
// has-documents check, which runs on every question.
type cachedFileRepository struct {
	inner IFileRepository
	cache *gocache.Cache
}

func NewCachedFileRepository(inner IFileRepository) IFileRepository {
	return &cachedFileRepository{
		inner: inner,
		cache: gocache.New(fileCacheTTL, fileCacheCleanup),
	}
}

func (r *cachedFileRepository) ListByUser(ctx context.Context, userId string) ([]entity.UserFile, error) {
	return r.inner.ListByUser(ctx, userId)
}

func (r *cachedFileRepository) ListFileNames(ctx context.Context, userId string) ([]string, error) {
	key := fmt.Sprintf("filenames:%s", userId)
	if cached, found := r.cache.Get(key); found {
		return cached.([]string), nil
	}

	names, err := r.inner.ListFileNames(ctx, userId)
	if err != nil {
		return nil, err
	}
	r.cache.Set(key, names, gocache.DefaultExpiration)
	return names, nil
}

func (r *cachedFileRepository) FindOwned(ctx context.Context, fileId, userId string) (*entity.UserFile, error) {
	return r.inner.FindOwned(ctx, fileId, userId)
}
