package stores

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mscno/kalender/pkg/model"
	"github.com/mscno/kalender/server"
)

//go:embed schema.sql
var schemaSQL string

const (
	notifyChannel    = "tasks_changes"
	listenRetryDelay = 2 * time.Second

	taskColumns = "id, team, title, type, datetime, time, owner, channels, notes, copy, materials, done, created_at, updated_at"
)

// PostgresStore persists posts in the tasks table. Change events come from a
// trigger that NOTIFYs on every row change, so mutations made by other
// processes are delivered too.
type PostgresStore struct {
	pool   *pgxpool.Pool
	feed   *Feed
	logger *slog.Logger
	now    Clock

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPostgresStore(pool *pgxpool.Pool, feed *Feed, logger *slog.Logger) *PostgresStore {
	if feed == nil {
		feed = NewFeed(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, feed: feed, logger: logger, now: systemClock}
}

var _ server.PostStore = (*PostgresStore)(nil)

// Migrate creates the tasks table and its notify trigger.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Listen starts forwarding notifications to subscribers. It returns once the
// first LISTEN is in place; the listener reconnects until Close is called.
func (s *PostgresStore) Listen(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New("listener already running")
	}
	lctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	ready := make(chan struct{})
	var once sync.Once
	go s.listen(lctx, func() { once.Do(func() { close(ready) }) })

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.Close()
		return ctx.Err()
	}
}

// Close stops the listener. The pool is owned by the caller.
func (s *PostgresStore) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *PostgresStore) listen(ctx context.Context, ready func()) {
	defer close(s.done)
	for {
		err := s.listenOnce(ctx, ready)
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("tasks listener failed, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}

func (s *PostgresStore) listenOnce(ctx context.Context, ready func()) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	ready()
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.handleNotification(ctx, n.Payload)
	}
}

type taskNotification struct {
	Type model.ChangeType `json:"type"`
	Team string           `json:"team"`
	ID   string           `json:"id"`
}

func (s *PostgresStore) handleNotification(ctx context.Context, payload string) {
	var n taskNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		s.logger.Error("invalid tasks notification", "payload", payload, "error", err)
		return
	}
	now := s.now()
	switch n.Type {
	case model.ChangeDelete:
		s.feed.Publish(changeEvent(model.ChangeDelete, n.Team, &model.Post{ID: n.ID, Team: n.Team}, nil, now))
	case model.ChangeInsert, model.ChangeUpdate:
		p, err := s.GetPost(ctx, n.Team, n.ID)
		if errors.Is(err, server.ErrPostNotFound) {
			// deleted before we got to it; the DELETE notification follows
			return
		}
		if err != nil {
			s.logger.Error("load changed task", "id", n.ID, "error", err)
			return
		}
		s.feed.Publish(changeEvent(n.Type, n.Team, nil, &p, now))
	default:
		s.logger.Warn("unknown tasks notification type", "type", n.Type)
	}
}

func scanPost(row pgx.Row) (model.Post, error) {
	var (
		p        model.Post
		typ      string
		channels []string
	)
	err := row.Scan(&p.ID, &p.Team, &p.Title, &typ, &p.Datetime, &p.Time, &p.Owner, &channels,
		&p.Notes, &p.Copy, &p.Materials, &p.Done, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Post{}, err
	}
	p.Type = model.PostType(typ)
	p.Channels = make([]model.Channel, len(channels))
	for i, c := range channels {
		p.Channels[i] = model.Channel(c)
	}
	p.Datetime = p.Datetime.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func channelStrings(channels []model.Channel) []string {
	out := make([]string, len(channels))
	for i, c := range channels {
		out[i] = string(c)
	}
	return out
}

func (s *PostgresStore) ListPosts(ctx context.Context, team string, from, to time.Time) ([]model.Post, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE team = $1 AND datetime >= $2 AND datetime <= $3 ORDER BY datetime, id",
		team, from, to)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	posts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Post, error) {
		return scanPost(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	if posts == nil {
		posts = []model.Post{}
	}
	return posts, nil
}

func (s *PostgresStore) GetPost(ctx context.Context, team, id string) (model.Post, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE team = $1 AND id = $2", team, id)
	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Post{}, server.ErrPostNotFound
	}
	if err != nil {
		return model.Post{}, fmt.Errorf("get task: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) CreatePost(ctx context.Context, post model.Post) (model.Post, error) {
	p := prepareCreate(post, s.now())
	_, err := s.pool.Exec(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)",
		p.ID, p.Team, p.Title, string(p.Type), p.Datetime, p.Time, p.Owner, channelStrings(p.Channels),
		p.Notes, p.Copy, p.Materials, p.Done, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return model.Post{}, fmt.Errorf("insert task: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdatePost(ctx context.Context, team, id string, updateFn func(model.Post) (model.Post, error)) (model.Post, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Post{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE team = $1 AND id = $2 FOR UPDATE", team, id)
	current, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Post{}, server.ErrPostNotFound
	}
	if err != nil {
		return model.Post{}, fmt.Errorf("get task: %w", err)
	}

	updated, err := applyUpdate(current, updateFn, s.now())
	if err != nil {
		return model.Post{}, err
	}
	_, err = tx.Exec(ctx,
		`UPDATE tasks SET title = $3, type = $4, datetime = $5, time = $6, owner = $7, channels = $8,
			notes = $9, copy = $10, materials = $11, done = $12, updated_at = $13
		WHERE team = $1 AND id = $2`,
		team, id, updated.Title, string(updated.Type), updated.Datetime, updated.Time, updated.Owner,
		channelStrings(updated.Channels), updated.Notes, updated.Copy, updated.Materials, updated.Done, updated.UpdatedAt)
	if err != nil {
		return model.Post{}, fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Post{}, fmt.Errorf("commit task update: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeletePost(ctx context.Context, team, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM tasks WHERE team = $1 AND id = $2", team, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return server.ErrPostNotFound
	}
	return nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, team string) (server.Subscription, error) {
	return s.feed.Subscribe(ctx, team)
}
