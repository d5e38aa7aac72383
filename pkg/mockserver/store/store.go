// Package store persists mock server documents through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ethpandaops/angles-client-go/pkg/config"
)

// ErrNotFound is returned when a document or image does not exist.
var ErrNotFound = errors.New("not found")

// ListFilter selects documents of one kind. Zero fields do not filter.
type ListFilter struct {
	Parent string
	IDs    []string
	Since  time.Time
	Until  time.Time
	Offset int
	Limit  int
}

// Store provides persistence for mock server resources.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Document CRUD.
	Put(ctx context.Context, doc *Document) error
	Get(ctx context.Context, kind, id string) (*Document, error)
	List(ctx context.Context, kind string, filter ListFilter) ([]Document, int64, error)
	Delete(ctx context.Context, kind, id string) error
	DeleteOlderThan(ctx context.Context, kind, parent string, before time.Time) (int64, error)

	// Screenshot images.
	PutImage(ctx context.Context, img *Image) error
	GetImage(ctx context.Context, screenshotID string) (*Image, error)
	DeleteImage(ctx context.Context, screenshotID string) error
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if s.cfg.Driver == "sqlite" {
		// Every pooled connection to ":memory:" would open its own
		// database.
		sqlDB, err := s.db.DB()
		if err != nil {
			return fmt.Errorf("getting underlying db: %w", err)
		}

		sqlDB.SetMaxOpenConns(1)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Document{},
		&Image{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// --- Documents ---

// Put inserts doc or replaces the stored document with the same id.
func (s *store) Put(ctx context.Context, doc *Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Save(doc).Error; err != nil {
		return fmt.Errorf("saving %s %s: %w", doc.Kind, doc.ID, err)
	}

	return nil
}

func (s *store) Get(ctx context.Context, kind, id string) (*Document, error) {
	var doc Document
	if err := s.db.WithContext(ctx).
		Where("kind = ? AND id = ?", kind, id).
		First(&doc).Error; err != nil {
		return nil, notFound(fmt.Sprintf("getting %s %s", kind, id), err)
	}

	return &doc, nil
}

// List returns one page of documents, newest first, and the total number
// of matches.
func (s *store) List(
	ctx context.Context,
	kind string,
	filter ListFilter,
) ([]Document, int64, error) {
	q := s.db.WithContext(ctx).Model(&Document{}).Where("kind = ?", kind)

	if filter.Parent != "" {
		q = q.Where("parent = ?", filter.Parent)
	}

	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}

	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}

	if !filter.Until.IsZero() {
		q = q.Where("created_at < ?", filter.Until)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting %s documents: %w", kind, err)
	}

	q = q.Order("created_at DESC").Order("id ASC").Offset(filter.Offset)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var docs []Document
	if err := q.Find(&docs).Error; err != nil {
		return nil, 0, fmt.Errorf("listing %s documents: %w", kind, err)
	}

	return docs, total, nil
}

func (s *store) Delete(ctx context.Context, kind, id string) error {
	result := s.db.WithContext(ctx).
		Where("kind = ? AND id = ?", kind, id).
		Delete(&Document{})
	if result.Error != nil {
		return fmt.Errorf("deleting %s %s: %w", kind, id, result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("deleting %s %s: %w", kind, id, ErrNotFound)
	}

	return nil
}

// DeleteOlderThan removes documents created before the cutoff unless they
// are marked keep.
func (s *store) DeleteOlderThan(
	ctx context.Context,
	kind, parent string,
	before time.Time,
) (int64, error) {
	q := s.db.WithContext(ctx).
		Where("kind = ? AND keep = ? AND created_at < ?", kind, false, before)

	if parent != "" {
		q = q.Where("parent = ?", parent)
	}

	result := q.Delete(&Document{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting old %s documents: %w", kind, result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.WithFields(logrus.Fields{
			"kind":  kind,
			"count": result.RowsAffected,
		}).Info("Deleted old documents")
	}

	return result.RowsAffected, nil
}

// --- Images ---

func (s *store) PutImage(ctx context.Context, img *Image) error {
	if err := s.db.WithContext(ctx).Save(img).Error; err != nil {
		return fmt.Errorf("saving image %s: %w", img.ScreenshotID, err)
	}

	return nil
}

func (s *store) GetImage(ctx context.Context, screenshotID string) (*Image, error) {
	var img Image
	if err := s.db.WithContext(ctx).
		Where("screenshot_id = ?", screenshotID).
		First(&img).Error; err != nil {
		return nil, notFound("getting image "+screenshotID, err)
	}

	return &img, nil
}

// DeleteImage removes a screenshot's image. A missing image is not an error.
func (s *store) DeleteImage(ctx context.Context, screenshotID string) error {
	if err := s.db.WithContext(ctx).
		Where("screenshot_id = ?", screenshotID).
		Delete(&Image{}).Error; err != nil {
		return fmt.Errorf("deleting image %s: %w", screenshotID, err)
	}

	return nil
}

func notFound(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, err)
}
