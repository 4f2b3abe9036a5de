package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

const briefingTable = "briefings"

const schema = `
CREATE TABLE IF NOT EXISTS briefings (
	briefing_id       TEXT PRIMARY KEY,
	created_at        TIMESTAMPTZ NOT NULL,
	executive_summary TEXT NOT NULL,
	trends_count      INTEGER NOT NULL,
	payload           JSONB NOT NULL
)`

// Postgres 简报表存储，payload 为完整聚合的 jsonb
type Postgres struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	width  int
	mu     sync.Mutex
	latest atomic.Pointer[model.DailyBriefing]
}

// OpenPostgres 连接数据库并建表
func OpenPostgres(ctx context.Context, connStr string, summaryWidth int) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	p, err := NewPostgres(ctx, db, summaryWidth)
	if err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres 基于已有连接，调用方负责关闭 db
func NewPostgres(ctx context.Context, db *sql.DB, summaryWidth int) (*Postgres, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to init briefings table: %w", err)
	}
	return &Postgres{
		db:    db,
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		width: summaryWidth,
	}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Put(ctx context.Context, b *model.DailyBriefing) error {
	if b == nil || b.BriefingID == "" {
		return &PersistenceError{Op: "validate", Err: errors.New("briefing id is empty")}
	}
	snap := b.Clone()
	payload, err := json.Marshal(snap)
	if err != nil {
		return &PersistenceError{Op: "marshal", ID: snap.BriefingID, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	last, err := p.latestID(ctx)
	if err != nil {
		return &PersistenceError{Op: "query latest", ID: snap.BriefingID, Err: err}
	}
	if last != "" && snap.BriefingID <= last {
		return fmt.Errorf("%w: %s <= %s", ErrNotIncreasing, snap.BriefingID, last)
	}

	query, args, err := p.insertQuery(snap, payload)
	if err != nil {
		return &PersistenceError{Op: "build insert", ID: snap.BriefingID, Err: err}
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s already exists", ErrNotIncreasing, snap.BriefingID)
		}
		return &PersistenceError{Op: "insert", ID: snap.BriefingID, Err: err}
	}
	p.latest.Store(snap)
	return nil
}

func (p *Postgres) Latest(ctx context.Context) (*model.DailyBriefing, error) {
	if b := p.latest.Load(); b != nil {
		return b.Clone(), nil
	}
	query, args, err := p.sb.Select("payload").From(briefingTable).
		OrderBy("briefing_id DESC").Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	b, err := p.scanPayload(ctx, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("query latest briefing: %w", err)
	}
	p.latest.CompareAndSwap(nil, b)
	return b.Clone(), nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*model.DailyBriefing, error) {
	query, args, err := p.sb.Select("payload").From(briefingTable).
		Where(sq.Eq{"briefing_id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	b, err := p.scanPayload(ctx, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query briefing %s: %w", id, err)
	}
	return b, nil
}

func (p *Postgres) List(ctx context.Context) ([]model.BriefingListItem, error) {
	query, args, err := p.sb.Select("briefing_id", "created_at", "executive_summary", "trends_count").
		From(briefingTable).OrderBy("briefing_id DESC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query briefings: %w", err)
	}
	defer rows.Close()

	items := make([]model.BriefingListItem, 0)
	for rows.Next() {
		var it model.BriefingListItem
		if err := rows.Scan(&it.BriefingID, &it.Date, &it.ExecutiveSummary, &it.TrendsCount); err != nil {
			return nil, fmt.Errorf("scan briefing: %w", err)
		}
		it.Date = it.Date.UTC()
		it.ExecutiveSummary = Summarize(it.ExecutiveSummary, p.width)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (p *Postgres) latestID(ctx context.Context) (string, error) {
	query, args, err := p.sb.Select("COALESCE(MAX(briefing_id), '')").From(briefingTable).ToSql()
	if err != nil {
		return "", err
	}
	var id string
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) insertQuery(b *model.DailyBriefing, payload []byte) (string, []interface{}, error) {
	return p.sb.Insert(briefingTable).
		Columns("briefing_id", "created_at", "executive_summary", "trends_count", "payload").
		Values(b.BriefingID, b.Date.UTC().Truncate(time.Second), removeNullBytes(b.SynthesisResults.ExecutiveSummary),
			len(b.TrendAnalysis.Trends), string(payload)).
		ToSql()
}

func (p *Postgres) scanPayload(ctx context.Context, query string, args ...interface{}) (*model.DailyBriefing, error) {
	var raw []byte
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		return nil, err
	}
	var b model.DailyBriefing
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &b, nil
}

// isUniqueViolation 23505 unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// removeNullBytes PostgreSQL 文本字段不支持 NULL 字节
func removeNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
