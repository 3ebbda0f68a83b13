// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	sqlitedriver "modernc.org/sqlite"

	"github.com/fidde/codesnip/internal/storage/query"
	"github.com/fidde/codesnip/pkg/models"
)

//go:embed migrations/001_initial_schema.up.sql
var migrationSQL string

func init() {
	// sqlx does not know the modernc driver name.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	sqlitedriver.MustRegisterDeterministicScalarFunction("fold_case", 1, foldCase)
}

// foldCase lowers text with Unicode rules. SQLite's own lower() and LIKE only
// fold ASCII, which would make search disagree with the other backends.
func foldCase(_ *sqlitedriver.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// containsPattern builds a LIKE pattern that matches fold_case(column)
// containing search.
func containsPattern(search string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
}

var errClosed = errors.New("store is closed")

// Store is a SQLite-backed storage.
type Store struct {
	db *sqlx.DB

	// View counter batch writer
	writeCh   chan writeOp
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// writeOp is a view increment waiting to be batched.
type writeOp struct {
	snippetID string
	done      chan error
}

// Config holds SQLite store configuration.
type Config struct {
	DBPath        string
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns default SQLite configuration.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:        dbPath,
		BatchSize:     100,
		FlushInterval: 25 * time.Millisecond,
	}
}

var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"cache_size(-64000)", // 64MB cache
	"temp_store(MEMORY)",
	"busy_timeout(5000)",
	"foreign_keys(ON)",
}

// dsn applies the pragmas to every pooled connection and makes write
// transactions take the lock up front.
func dsn(path string) string {
	var b strings.Builder
	b.WriteString(path)
	b.WriteString("?_txlock=immediate")
	for _, p := range pragmas {
		b.WriteString("&_pragma=")
		b.WriteString(p)
	}
	return b.String()
}

// New creates a new SQLite store with the given configuration.
func New(cfg Config) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn(cfg.DBPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		// every connection would get its own database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(migrationSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 25 * time.Millisecond
	}

	store := &Store{
		db:      db,
		writeCh: make(chan writeOp, 1000),
		closeCh: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.batchWriter(cfg.BatchSize, cfg.FlushInterval)

	return store, nil
}

// batchWriter coalesces view increments into one transaction per flush.
func (s *Store) batchWriter(batchSize int, flushInterval time.Duration) {
	defer s.wg.Done()

	batch := make([]writeOp, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		missing, err := s.executeBatch(batch)
		for _, op := range batch {
			switch {
			case err != nil:
				op.done <- err
			case missing[op.snippetID]:
				op.done <- models.ErrSnippetNotFound
			default:
				op.done <- nil
			}
			close(op.done)
		}

		batch = batch[:0]
	}

	for {
		select {
		case op := <-s.writeCh:
			batch = append(batch, op)
			if len(batch) >= batchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-s.closeCh:
			for {
				select {
				case op := <-s.writeCh:
					batch = append(batch, op)
				default:
					flush()
					return
				}
			}
		}
	}
}

// executeBatch applies a batch of view increments in a single transaction and
// returns the ids that matched no snippet.
func (s *Store) executeBatch(batch []writeOp) (map[string]bool, error) {
	counts := make(map[string]int, len(batch))
	for _, op := range batch {
		counts[op.snippetID]++
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	missing := make(map[string]bool)
	for id, n := range counts {
		res, err := tx.Exec(`UPDATE snippets SET view_count = view_count + ? WHERE id = ?`, n, id)
		if err != nil {
			return nil, fmt.Errorf("incrementing views for %s: %w", id, err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			missing[id] = true
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return missing, nil
}

// Close stops the batch writer and closes the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUnique(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

// CreateUser stores a new user.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (id, email, display_name, username, photo_url, password_hash, created_at, snippet_count)
		VALUES (:id, :email, :display_name, :username, :photo_url, :password_hash, :created_at, :snippet_count)
	`, toUserRow(user))
	switch {
	case isUnique(err, "users.email"):
		return models.ErrEmailTaken
	case isUnique(err, "users.username"):
		return models.ErrUsernameTaken
	case err != nil:
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

const userColumns = `id, email, display_name, username, photo_url, password_hash, created_at, snippet_count`

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", username)
}

// GetUserByEmail retrieves a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *Store) getUser(ctx context.Context, column, value string) (*models.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return row.toModel(), nil
}

// CreateSnippet stores a new snippet and bumps the owner and tag counters.
func (s *Store) CreateSnippet(ctx context.Context, snippet *models.Snippet) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET snippet_count = snippet_count + 1 WHERE id = ?`, snippet.UserID)
		if err != nil {
			return fmt.Errorf("incrementing snippet count: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("snippet owner %s: %w", snippet.UserID, models.ErrUserNotFound)
		}

		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO snippets (
				id, title, slug, code, language, topic, user_id, user_display_name,
				username, complexity, is_public, created_at, updated_at, view_count
			) VALUES (
				:id, :title, :slug, :code, :language, :topic, :user_id, :user_display_name,
				:username, :complexity, :is_public, :created_at, :updated_at, :view_count
			)
		`, toSnippetRow(snippet))
		if isUnique(err, "snippets.slug") {
			return models.ErrSlugTaken
		}
		if err != nil {
			return fmt.Errorf("inserting snippet: %w", err)
		}

		refs := query.Refs(snippet.Tags)
		if err := insertSnippetTags(ctx, tx, snippet.ID, refs); err != nil {
			return err
		}
		return adjustTags(ctx, tx, refs, nil)
	})
}

func insertSnippetTags(ctx context.Context, tx *sqlx.Tx, snippetID string, refs []query.TagRef) error {
	for i, r := range refs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snippet_tags (snippet_id, tag_slug, name, position) VALUES (?, ?, ?, ?)
		`, snippetID, r.Slug, r.Name, i)
		if err != nil {
			return fmt.Errorf("inserting tag %s: %w", r.Slug, err)
		}
	}
	return nil
}

// adjustTags increments added tags and decrements removed ones, dropping tags
// whose count reaches zero.
func adjustTags(ctx context.Context, tx *sqlx.Tx, added, removed []query.TagRef) error {
	for _, r := range added {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tags (slug, name, count) VALUES (?, ?, 1)
			ON CONFLICT(slug) DO UPDATE SET count = count + 1
		`, r.Slug, r.Name)
		if err != nil {
			return fmt.Errorf("incrementing tag %s: %w", r.Slug, err)
		}
	}
	for _, r := range removed {
		if _, err := tx.ExecContext(ctx, `UPDATE tags SET count = count - 1 WHERE slug = ?`, r.Slug); err != nil {
			return fmt.Errorf("decrementing tag %s: %w", r.Slug, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE slug = ? AND count <= 0`, r.Slug); err != nil {
			return fmt.Errorf("removing tag %s: %w", r.Slug, err)
		}
	}
	return nil
}

const snippetColumns = `s.id, s.title, s.slug, s.code, s.language, s.topic, s.user_id, s.user_display_name,
	s.username, s.complexity, s.is_public, s.created_at, s.updated_at, s.view_count`

// GetSnippet retrieves a snippet by id.
func (s *Store) GetSnippet(ctx context.Context, id string) (*models.Snippet, error) {
	return s.getSnippet(ctx, "id", id)
}

// GetSnippetBySlug retrieves a snippet by slug.
func (s *Store) GetSnippetBySlug(ctx context.Context, slug string) (*models.Snippet, error) {
	return s.getSnippet(ctx, "slug", slug)
}

func (s *Store) getSnippet(ctx context.Context, column, value string) (*models.Snippet, error) {
	var row snippetRow
	err := s.db.GetContext(ctx, &row, `SELECT `+snippetColumns+` FROM snippets s WHERE s.`+column+` = ?`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSnippetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying snippet: %w", err)
	}

	snippets, err := s.withTags(ctx, s.db, []snippetRow{row})
	if err != nil {
		return nil, err
	}
	return snippets[0], nil
}

// withTags converts rows to snippets and attaches their tags in one query.
func (s *Store) withTags(ctx context.Context, q sqlx.QueryerContext, rows []snippetRow) ([]*models.Snippet, error) {
	out := make([]*models.Snippet, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]string, len(rows))
	index := make(map[string]*models.Snippet, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
		ids[i] = rows[i].ID
		index[rows[i].ID] = out[i]
	}

	stmt, args, err := sqlx.In(`
		SELECT snippet_id, name FROM snippet_tags
		WHERE snippet_id IN (?)
		ORDER BY snippet_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("building tag query: %w", err)
	}

	var tags []snippetTagRow
	if err := sqlx.SelectContext(ctx, q, &tags, s.db.Rebind(stmt), args...); err != nil {
		return nil, fmt.Errorf("querying snippet tags: %w", err)
	}
	for _, t := range tags {
		if sn, ok := index[t.SnippetID]; ok {
			sn.Tags = append(sn.Tags, t.Name)
		}
	}
	return out, nil
}

// UpdateSnippet replaces a snippet's content. Slug, owner, creation time and
// view count are kept.
func (s *Store) UpdateSnippet(ctx context.Context, snippet *models.Snippet) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var prev []string
		if err := tx.SelectContext(ctx, &prev, `SELECT name FROM snippet_tags WHERE snippet_id = ? ORDER BY position`, snippet.ID); err != nil {
			return fmt.Errorf("querying snippet tags: %w", err)
		}

		res, err := tx.NamedExecContext(ctx, `
			UPDATE snippets SET
				title = :title,
				code = :code,
				language = :language,
				topic = :topic,
				user_display_name = :user_display_name,
				username = :username,
				complexity = :complexity,
				is_public = :is_public,
				updated_at = :updated_at
			WHERE id = :id
		`, toSnippetRow(snippet))
		if err != nil {
			return fmt.Errorf("updating snippet: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrSnippetNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM snippet_tags WHERE snippet_id = ?`, snippet.ID); err != nil {
			return fmt.Errorf("clearing snippet tags: %w", err)
		}
		if err := insertSnippetTags(ctx, tx, snippet.ID, query.Refs(snippet.Tags)); err != nil {
			return err
		}

		added, removed := query.Diff(prev, snippet.Tags)
		return adjustTags(ctx, tx, added, removed)
	})
}

// DeleteSnippet removes a snippet and reverses its counter updates.
func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var owner string
		err := tx.GetContext(ctx, &owner, `SELECT user_id FROM snippets WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrSnippetNotFound
		}
		if err != nil {
			return fmt.Errorf("querying snippet: %w", err)
		}

		var tags []string
		if err := tx.SelectContext(ctx, &tags, `SELECT name FROM snippet_tags WHERE snippet_id = ? ORDER BY position`, id); err != nil {
			return fmt.Errorf("querying snippet tags: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting snippet: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET snippet_count = MAX(snippet_count - 1, 0) WHERE id = ?`, owner); err != nil {
			return fmt.Errorf("decrementing snippet count: %w", err)
		}
		return adjustTags(ctx, tx, nil, query.Refs(tags))
	})
}

var orderBy = map[string]string{
	models.SortNewest: "s.created_at DESC, s.id ASC",
	models.SortOldest: "s.created_at ASC, s.id ASC",
	models.SortViews:  "s.view_count DESC, s.created_at DESC, s.id ASC",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListSnippets returns one page of snippets matching opts.
func (s *Store) ListSnippets(ctx context.Context, opts models.ListOptions) (*models.SnippetPage, error) {
	opts.Normalize()

	where := []string{"1 = 1"}
	var args []any

	if opts.UserID != "" {
		where = append(where, "s.user_id = ?")
		args = append(args, opts.UserID)
	}
	if opts.IsPublic != nil {
		where = append(where, "s.is_public = ?")
		args = append(args, *opts.IsPublic)
	}
	if opts.Language != "" {
		where = append(where, "s.language = ? COLLATE NOCASE")
		args = append(args, opts.Language)
	}
	if opts.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM snippet_tags st WHERE st.snippet_id = s.id AND st.tag_slug = ?)")
		args = append(args, query.TagSlug(opts.Tag))
	}
	if opts.Search != "" {
		pattern := containsPattern(opts.Search)
		where = append(where, `(fold_case(s.title) LIKE ? ESCAPE '\' OR fold_case(s.code) LIKE ? ESCAPE '\' OR fold_case(s.topic) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	cond := strings.Join(where, " AND ")

	page := &models.SnippetPage{}
	if err := s.db.GetContext(ctx, &page.Total, `SELECT COUNT(*) FROM snippets s WHERE `+cond, args...); err != nil {
		return nil, fmt.Errorf("counting snippets: %w", err)
	}

	var rows []snippetRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+snippetColumns+` FROM snippets s WHERE `+cond+` ORDER BY `+orderBy[opts.Sort]+` LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("listing snippets: %w", err)
	}

	page.Snippets, err = s.withTags(ctx, s.db, rows)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// IncrementViewCount queues a view increment and waits for it to be written.
func (s *Store) IncrementViewCount(ctx context.Context, id string) error {
	done := make(chan error, 1)

	select {
	case s.writeCh <- writeOp{snippetID: id, done: done}:
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closeCh:
			return errClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closeCh:
		return errClosed
	}
}

// ListTags returns tags matching opts.
func (s *Store) ListTags(ctx context.Context, opts models.TagListOptions) ([]*models.Tag, error) {
	opts.Normalize()

	stmt := `SELECT slug, name, count FROM tags`
	var args []any
	if opts.Search != "" {
		stmt += ` WHERE fold_case(name) LIKE ? ESCAPE '\'`
		args = append(args, containsPattern(opts.Search))
	}
	if opts.Sort == models.TagSortName {
		stmt += ` ORDER BY name COLLATE NOCASE ASC, slug ASC`
	} else {
		stmt += ` ORDER BY count DESC, name COLLATE NOCASE ASC, slug ASC`
	}
	if opts.Limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	var rows []tagRow
	if err := s.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	tags := make([]*models.Tag, len(rows))
	for i := range rows {
		tags[i] = rows[i].toModel()
	}
	return tags, nil
}

// GetTagBySlug retrieves a tag by slug.
func (s *Store) GetTagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var row tagRow
	err := s.db.GetContext(ctx, &row, `SELECT slug, name, count FROM tags WHERE slug = ?`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tag: %w", err)
	}
	return row.toModel(), nil
}

// CreateSession stores a login session.
func (s *Store) CreateSession(ctx context.Context, session *models.AuthSession) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
		VALUES (:token_hash, :user_id, :created_at, :expires_at)
	`, toSessionRow(session))
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession retrieves a login session by token hash.
func (s *Store) GetSession(ctx context.Context, tokenHash string) (*models.AuthSession, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `SELECT token_hash, user_id, created_at, expires_at FROM sessions WHERE token_hash = ?`, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return row.toModel(), nil
}

// DeleteSession removes a login session.
func (s *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions expired at now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Snapshot returns all users, snippets and tags.
func (s *Store) Snapshot(ctx context.Context) (*models.Dataset, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var users []userRow
	if err := tx.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	var snippets []snippetRow
	if err := tx.SelectContext(ctx, &snippets, `SELECT `+snippetColumns+` FROM snippets s ORDER BY s.created_at, s.id`); err != nil {
		return nil, fmt.Errorf("querying snippets: %w", err)
	}
	var tags []tagRow
	if err := tx.SelectContext(ctx, &tags, `SELECT slug, name, count FROM tags ORDER BY name COLLATE NOCASE, slug`); err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}

	ds := &models.Dataset{
		Users: make([]*models.UserRecord, len(users)),
		Tags:  make([]*models.Tag, len(tags)),
	}
	for i := range users {
		ds.Users[i] = models.NewUserRecord(users[i].toModel())
	}
	for i := range tags {
		ds.Tags[i] = tags[i].toModel()
	}
	ds.Snippets, err = s.withTags(ctx, tx, snippets)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// Restore replaces all data with ds in one transaction.
func (s *Store) Restore(ctx context.Context, ds *models.Dataset) error {
	ds = query.Recount(ds)

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := clearTx(ctx, tx); err != nil {
			return err
		}

		for _, u := range ds.Users {
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO users (id, email, display_name, username, photo_url, password_hash, created_at, snippet_count)
				VALUES (:id, :email, :display_name, :username, :photo_url, :password_hash, :created_at, :snippet_count)
			`, toUserRow(u.User()))
			if err != nil {
				return fmt.Errorf("restoring user %s: %w", u.ID, err)
			}
		}

		for _, sn := range ds.Snippets {
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO snippets (
					id, title, slug, code, language, topic, user_id, user_display_name,
					username, complexity, is_public, created_at, updated_at, view_count
				) VALUES (
					:id, :title, :slug, :code, :language, :topic, :user_id, :user_display_name,
					:username, :complexity, :is_public, :created_at, :updated_at, :view_count
				)
			`, toSnippetRow(sn))
			if err != nil {
				return fmt.Errorf("restoring snippet %s: %w", sn.ID, err)
			}
			if err := insertSnippetTags(ctx, tx, sn.ID, query.Refs(sn.Tags)); err != nil {
				return err
			}
		}

		for _, t := range ds.Tags {
			_, err := tx.ExecContext(ctx, `INSERT INTO tags (slug, name, count) VALUES (?, ?, ?)`, t.Slug, t.Name, t.Count)
			if err != nil {
				return fmt.Errorf("restoring tag %s: %w", t.Slug, err)
			}
		}
		return nil
	})
}

// Clear removes all stored data.
func (s *Store) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return clearTx(ctx, tx)
	})
}

func clearTx(ctx context.Context, tx *sqlx.Tx) error {
	tables := []string{
		"sessions",
		"snippet_tags",
		"tags",
		"snippets",
		"users",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}
