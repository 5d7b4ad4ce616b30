package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/spigell/roommate-matcher/internal/matcherr"
	"github.com/spigell/roommate-matcher/internal/profile"
)

const (
	profilesTable = "profiles"
	blocksTable   = "user_blocks"
	bansTable     = "banned_users"
)

var profileColumns = []string{
	"user_email",
	"name",
	"gender",
	"room_with_different_gender",
	"housing_region",
	"housing_cities",
	"start_date",
	"end_date",
	"desired_roommates",
	"min_budget",
	"max_budget",
	"preferences",
	"additional_notes",
	"company",
	"is_submitted",
	"is_draft",
	"is_test",
}

// preferencesColumn stores preferences as JSONB.
type preferencesColumn []profile.Preference

func (p *preferencesColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("preferences: expected []byte, got %T", src)
	}
}

func (p preferencesColumn) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]profile.Preference(p))
}

type profileRow struct {
	UserEmail               string            `db:"user_email"`
	Name                    sql.NullString    `db:"name"`
	Gender                  string            `db:"gender"`
	RoomWithDifferentGender bool              `db:"room_with_different_gender"`
	HousingRegion           string            `db:"housing_region"`
	HousingCities           pq.StringArray    `db:"housing_cities"`
	StartDate               time.Time         `db:"start_date"`
	EndDate                 time.Time         `db:"end_date"`
	DesiredRoommates        string            `db:"desired_roommates"`
	MinBudget               int               `db:"min_budget"`
	MaxBudget               int               `db:"max_budget"`
	Preferences             preferencesColumn `db:"preferences"`
	AdditionalNotes         sql.NullString    `db:"additional_notes"`
	Company                 sql.NullString    `db:"company"`
	IsSubmitted             bool              `db:"is_submitted"`
	IsDraft                 bool              `db:"is_draft"`
	IsTest                  bool              `db:"is_test"`
}

func (r *profileRow) toProfile() *profile.Profile {
	p := &profile.Profile{
		UserEmail:               r.UserEmail,
		Name:                    r.Name.String,
		Gender:                  r.Gender,
		RoomWithDifferentGender: r.RoomWithDifferentGender,
		HousingRegion:           r.HousingRegion,
		HousingCities:           []string(r.HousingCities),
		StartDate:               r.StartDate,
		EndDate:                 r.EndDate,
		DesiredRoommates:        profile.RoommateCount(r.DesiredRoommates),
		MinBudget:               r.MinBudget,
		MaxBudget:               r.MaxBudget,
		Preferences:             []profile.Preference(r.Preferences),
		AdditionalNotes:         r.AdditionalNotes.String,
		Company:                 r.Company.String,
		IsSubmitted:             r.IsSubmitted,
		IsDraft:                 r.IsDraft,
		IsTest:                  r.IsTest,
	}
	profile.Normalize(p)
	return p
}

// Postgres reads profiles and block lists from PostgreSQL.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Connect opens and pings a PostgreSQL connection pool.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}

func (r *Postgres) GetProfile(ctx context.Context, id string) (*profile.Profile, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(profileColumns...)
	sb.From(profilesTable)
	sb.Where(sb.Equal("user_email", key(id)))

	query, args := sb.Build()
	var row profileRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, matcherr.ProfileNotFound(id)
		}
		return nil, fmt.Errorf("get profile %q: %w", id, err)
	}

	return row.toProfile(), nil
}

func (r *Postgres) ListEligibleProfiles(ctx context.Context, filter ListFilter) ([]*profile.Profile, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(profileColumns...)
	sb.From(profilesTable)

	where := []string{
		sb.Equal("is_submitted", true),
		sb.Equal("is_draft", false),
	}
	if !filter.IncludeTestPool {
		where = append(where, sb.Equal("is_test", false))
	}
	if region := strings.TrimSpace(filter.Region); region != "" {
		where = append(where, sb.Equal("housing_region", region))
	}
	sb.Where(where...)
	sb.OrderBy("user_email")

	query, args := sb.Build()
	var rows []profileRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list eligible profiles: %w", err)
	}

	result := make([]*profile.Profile, 0, len(rows))
	for idx := range rows {
		result = append(result, rows[idx].toProfile())
	}
	return result, nil
}

func (r *Postgres) IsBlocked(ctx context.Context, target, by string) (bool, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("1")
	if strings.TrimSpace(by) == "" {
		sb.From(bansTable)
		sb.Where(sb.Equal("user_email", key(target)))
	} else {
		sb.From(blocksTable)
		sb.Where(
			sb.Equal("blocker_email", key(by)),
			sb.Equal("blocked_email", key(target)),
		)
	}
	sb.Limit(1)

	query, args := sb.Build()
	var found int
	if err := r.db.GetContext(ctx, &found, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check block for %q: %w", target, err)
	}
	return true, nil
}

// SaveProfile upserts a normalized copy of p.
func (r *Postgres) SaveProfile(ctx context.Context, p *profile.Profile) error {
	stored := cloneProfile(p)
	profile.Normalize(stored)

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(profilesTable)
	ib.Cols(profileColumns...)
	ib.Values(
		stored.UserEmail,
		stored.Name,
		stored.Gender,
		stored.RoomWithDifferentGender,
		stored.HousingRegion,
		pq.StringArray(stored.HousingCities),
		stored.StartDate,
		stored.EndDate,
		string(stored.DesiredRoommates),
		stored.MinBudget,
		stored.MaxBudget,
		preferencesColumn(stored.Preferences),
		stored.AdditionalNotes,
		stored.Company,
		stored.IsSubmitted,
		stored.IsDraft,
		stored.IsTest,
	)

	query, args := ib.Build()
	updates := make([]string, 0, len(profileColumns)-1)
	for _, col := range profileColumns[1:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	query += " ON CONFLICT (user_email) DO UPDATE SET " + strings.Join(updates, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save profile %q: %w", stored.UserEmail, err)
	}
	return nil
}

// Ban hides id system-wide.
func (r *Postgres) Ban(ctx context.Context, id string) error {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(bansTable)
	ib.Cols("user_email")
	ib.Values(key(id))

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query+" ON CONFLICT DO NOTHING", args...); err != nil {
		return fmt.Errorf("ban %q: %w", id, err)
	}
	return nil
}

// Block records that by has blocked target.
func (r *Postgres) Block(ctx context.Context, target, by string) error {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(blocksTable)
	ib.Cols("blocker_email", "blocked_email")
	ib.Values(key(by), key(target))

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query+" ON CONFLICT DO NOTHING", args...); err != nil {
		return fmt.Errorf("block %q by %q: %w", target, by, err)
	}
	return nil
}
