package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"sportsfeed/internal/domain"
)

var ErrNoTransaction = errors.New("claim requires a transaction in context")

type ContentStore struct {
	db *sqlx.DB
}

func NewContentStore(db *sqlx.DB) *ContentStore {
	return &ContentStore{db: db}
}

func (s *ContentStore) Exists(ctx context.Context, kind domain.Kind, externalID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &exists,
		`SELECT EXISTS (SELECT 1 FROM content_items WHERE kind = $1 AND external_id = $2)`,
		kind, externalID,
	)
	if err != nil {
		return false, fmt.Errorf("check existence: %w", err)
	}
	return exists, nil
}

// ExistingIDs returns the subset of ids already stored for kind.
func (s *ContentStore) ExistingIDs(ctx context.Context, kind domain.Kind, ids []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT external_id FROM content_items WHERE kind = $1 AND external_id = ANY($2)`

	rows, err := GetExecutor(ctx, s.db).QueryContext(ctx, query, kind, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query existing ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var extID string
		if err := rows.Scan(&extID); err != nil {
			return nil, err
		}
		result[extID] = true
	}

	return result, rows.Err()
}

// InsertIfAbsent stores item unless (kind, external_id) is already present.
// It reports false when another writer got there first. On success item.ID
// and item.CreatedAt are filled in.
func (s *ContentStore) InsertIfAbsent(ctx context.Context, item *domain.ContentItem) (bool, error) {
	query := `
		INSERT INTO content_items (
			kind, source_id, external_id, title, description, link, thumbnail_url, publish_state
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (kind, external_id) DO NOTHING
		RETURNING id, created_at`

	state := item.PublishState
	if state == "" {
		state = domain.StatePending
	}

	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		item.Kind,
		item.SourceID,
		item.ExternalID,
		item.Title,
		item.Description,
		item.Link,
		item.ThumbnailURL,
		state,
	).Scan(&item.ID, &item.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert content item: %w", err)
	}

	item.PublishState = state
	return true, nil
}

// ClaimPending moves every pending row to published and returns the rows as
// they were before the transition, oldest first. Rows locked by a concurrent
// claim are skipped, so parallel claimers receive disjoint sets. It must run
// inside TransactionManager.WithTransaction.
func (s *ContentStore) ClaimPending(ctx context.Context) ([]domain.ContentItem, error) {
	tx := GetTxFromContext(ctx)
	if tx == nil {
		return nil, ErrNoTransaction
	}

	var items []domain.ContentItem
	err := tx.SelectContext(ctx, &items, `
		SELECT id, kind, source_id, external_id, title, description, link, thumbnail_url,
			generated_caption, publish_state, created_at, published_at
		FROM content_items
		WHERE publish_state = 'pending'
		ORDER BY created_at, id
		FOR UPDATE SKIP LOCKED`)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE content_items
		SET publish_state = 'published', published_at = now()
		WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("mark published: %w", err)
	}

	return items, nil
}

func (s *ContentStore) SetCaption(ctx context.Context, id int64, caption string) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE content_items SET generated_caption = $1 WHERE id = $2`, caption, id)
	if err != nil {
		return fmt.Errorf("set caption: %w", err)
	}
	return nil
}

// Get loads one item by primary key.
func (s *ContentStore) Get(ctx context.Context, id int64) (*domain.ContentItem, error) {
	var item domain.ContentItem
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &item, `
		SELECT id, kind, source_id, external_id, title, description, link, thumbnail_url,
			generated_caption, publish_state, created_at, published_at
		FROM content_items
		WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
