package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"github.com/alter5/project-zurich/internal/app/model"
)

// PostgresStore persists both collections directly in Postgres. Deployments
// with database credentials (the hosted store exposes a DSN) prefer it over
// the REST dialect.
type PostgresStore struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an established GORM connection and pgx pool.
func NewPostgresStore(db *gorm.DB, pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, pool: pool}
}

func (s *PostgresStore) Source() string {
	return SourcePostgres
}

func (s *PostgresStore) CreateVisitor(ctx context.Context, visitor *model.Visitor) error {
	if err := s.db.WithContext(ctx).Create(visitor).Error; err != nil {
		return fmt.Errorf("postgres: create visitor: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListVisitors(ctx context.Context, filter VisitorFilter) (*VisitorPage, error) {
	filter.Normalize()

	query := s.db.WithContext(ctx).Model(&model.Visitor{})
	if filter.Search != "" {
		q := "%" + filter.Search + "%"
		query = query.Where("email ILIKE ? OR name ILIKE ? OR company ILIKE ?", q, q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("postgres: count visitors: %w", err)
	}

	var visitors []model.Visitor
	if err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&visitors).Error; err != nil {
		return nil, fmt.Errorf("postgres: list visitors: %w", err)
	}

	return &VisitorPage{
		Data:   visitors,
		Total:  int(total),
		Source: SourcePostgres,
	}, nil
}

func (s *PostgresStore) GetVisitorByToken(ctx context.Context, token string) (*model.Visitor, error) {
	var visitor model.Visitor
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&visitor).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrVisitorNotFound
		}
		return nil, fmt.Errorf("postgres: get visitor: %w", err)
	}
	return &visitor, nil
}

// RecordAccess is a single atomic UPDATE, a deliberate improvement over the
// REST store's read-modify-write: concurrent page_visit events for the same
// token cannot lose an increment here.
func (s *PostgresStore) RecordAccess(ctx context.Context, token string, now time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE visitors
		    SET access_count = access_count + 1,
		        last_access  = $2,
		        first_access = COALESCE(first_access, $2)
		  WHERE token = $1`,
		token, now)
	if err != nil {
		return fmt.Errorf("postgres: record access: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVisitorNotFound
	}
	return nil
}

func (s *PostgresStore) CreateEvent(ctx context.Context, event *model.AnalyticsEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("postgres: create event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter EventFilter) (*EventPage, error) {
	filter.Normalize()

	query := s.db.WithContext(ctx).Model(&model.AnalyticsEvent{})
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.VisitorToken != "" {
		query = query.Where("visitor_token = ?", filter.VisitorToken)
	}
	if filter.Search != "" {
		q := "%" + filter.Search + "%"
		query = query.Where("visitor_email ILIKE ? OR event_type ILIKE ? OR page_url ILIKE ?", q, q, q)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("postgres: count events: %w", err)
	}

	var events []model.AnalyticsEvent
	if err := query.
		Order("timestamp DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}

	return &EventPage{
		Data:   events,
		Total:  int(total),
		Source: SourcePostgres,
	}, nil
}
