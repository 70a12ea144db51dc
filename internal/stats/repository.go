package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/pkg/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Summary is the back-office dashboard header.
type Summary struct {
	TotalUsers         int `json:"totalUsers"`
	TotalOrganizations int `json:"totalOrganizations"`
	TotalEvents        int `json:"totalEvents"`
	RecentEvents       int `json:"recentEvents"`
	ActiveUsers        int `json:"activeUsers"`
}

// CategoryCount is the number of events in a category.
type CategoryCount struct {
	Category string `json:"category"`
	Color    string `json:"color"`
	Count    int    `json:"count"`
}

// Activity types.
const (
	ActivityUser         = "user"
	ActivityEvent        = "event"
	ActivityOrganization = "organization"
	ActivityMission      = "mission"
)

// Activity is one entry of the recent activity feed.
type Activity struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
}

// Repository runs the dashboard aggregates. Every query is narrowed by an access.Scope.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a stats repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) count(ctx context.Context, b sq.SelectBuilder) (int, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := r.db.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// scopedCount applies scope on column and counts; an empty scope counts zero without a query.
func (r *Repository) scopedCount(ctx context.Context, scope access.Scope, b sq.SelectBuilder, column string) (int, error) {
	b, ok := scope.Apply(b, column)
	if !ok {
		return 0, nil
	}
	return r.count(ctx, b)
}

// Summary counts users, organizations and events visible in scope. Recent and
// active figures cover the period after since.
func (r *Repository) Summary(ctx context.Context, scope access.Scope, since time.Time) (Summary, error) {
	var s Summary
	if scope.IsEmpty() {
		return s, nil
	}
	missions := psql.Select("COUNT(DISTINCT ue.user_id)").From("users_events ue").Join("events e ON e.id = ue.event_id")

	var err error
	if scope.IsAll() {
		s.TotalUsers, err = r.count(ctx, psql.Select("COUNT(*)").From("users"))
	} else {
		s.TotalUsers, err = r.scopedCount(ctx, scope, missions, "e.organization_id")
	}
	if err != nil {
		return s, fmt.Errorf("count users: %w", err)
	}
	if s.TotalOrganizations, err = r.scopedCount(ctx, scope, psql.Select("COUNT(*)").From("organizations o"), "o.id"); err != nil {
		return s, fmt.Errorf("count organizations: %w", err)
	}
	events := psql.Select("COUNT(*)").From("events e")
	if s.TotalEvents, err = r.scopedCount(ctx, scope, events, "e.organization_id"); err != nil {
		return s, fmt.Errorf("count events: %w", err)
	}
	if s.RecentEvents, err = r.scopedCount(ctx, scope, events.Where(sq.GtOrEq{"e.created_at": since}), "e.organization_id"); err != nil {
		return s, fmt.Errorf("count recent events: %w", err)
	}
	if s.ActiveUsers, err = r.scopedCount(ctx, scope, missions.Where(sq.GtOrEq{"ue.created_at": since}), "e.organization_id"); err != nil {
		return s, fmt.Errorf("count active users: %w", err)
	}
	return s, nil
}

// ByCategory counts the events of each category visible in scope, largest first.
func (r *Repository) ByCategory(ctx context.Context, scope access.Scope) ([]CategoryCount, error) {
	b := psql.Select("c.label", "c.color", "COUNT(e.id)").
		From("events e").
		Join("event_categories c ON c.id = e.event_category_id").
		GroupBy("c.id", "c.label", "c.color").
		OrderBy("COUNT(e.id) DESC", "c.label ASC")
	b, ok := scope.Apply(b, "e.organization_id")
	if !ok {
		return []CategoryCount{}, nil
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build categories: %w", err)
	}
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()
	list := []CategoryCount{}
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Color, &cc.Count); err != nil {
			return nil, err
		}
		list = append(list, cc)
	}
	return list, rows.Err()
}

// Activity returns the latest entries visible in scope, newest first. Only
// super admins see new users and organizations.
func (r *Repository) Activity(ctx context.Context, scope access.Scope, limit int) ([]Activity, error) {
	if scope.IsEmpty() {
		return []Activity{}, nil
	}
	type source struct {
		kind   string
		prefix string
		b      sq.SelectBuilder
		column string
	}
	sources := []source{
		{ActivityEvent, "Nova missão: ", psql.Select("e.title", "e.created_at").From("events e"), "e.organization_id"},
		{ActivityMission, "", psql.Select("u.name || ' aceitou: ' || e.title", "ue.created_at").
			From("users_events ue").
			Join("users u ON u.id = ue.user_id").
			Join("events e ON e.id = ue.event_id"), "e.organization_id"},
	}
	if scope.IsAll() {
		sources = append(sources,
			source{ActivityUser, "Novo usuário: ", psql.Select("name", "created_at").From("users"), ""},
			source{ActivityOrganization, "Nova organização: ", psql.Select("name", "created_at").From("organizations"), ""},
		)
	}

	var feeds [][]Activity
	for _, src := range sources {
		b := src.b
		if src.column != "" {
			b, _ = scope.Apply(b, src.column)
		}
		q, args, err := b.OrderBy("2 DESC").Limit(uint64(limit)).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build activity: %w", err)
		}
		rows, err := r.db.Query(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("load %s activity: %w", src.kind, err)
		}
		var feed []Activity
		for rows.Next() {
			a := Activity{Type: src.kind}
			var text string
			if err := rows.Scan(&text, &a.Date); err != nil {
				rows.Close()
				return nil, err
			}
			a.Description = src.prefix + text
			feed = append(feed, a)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	return MergeActivity(limit, feeds...), nil
}

// MergeActivity merges feeds newest first and keeps at most limit entries.
func MergeActivity(limit int, feeds ...[]Activity) []Activity {
	out := []Activity{}
	for _, f := range feeds {
		out = append(out, f...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
