package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type members struct {
	repo repository.Repository[*Member]
	db   *bun.DB
}

var _ MemberStore = (*members)(nil)

// NewMembersRepository returns a MemberStore over the members table
func NewMembersRepository(db *bun.DB) MemberStore {
	repo := repository.NewRepository[*Member](db, repository.ModelHandlers[*Member]{
		NewRecord: func() *Member { return &Member{} },
		GetID: func(m *Member) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *Member, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &members{repo: repo, db: db}
}

func (r *members) FindByEmail(ctx context.Context, email string) (*Member, error) {
	record, err := r.repo.GetByIdentifierTx(ctx, r.db, normalizeEmail(email))
	if err != nil {
		return nil, r.notFound(err)
	}
	return record, nil
}

func (r *members) FindByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	if id == uuid.Nil {
		return nil, ErrRecordNotFound
	}
	record, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, r.notFound(err)
	}
	return record, nil
}

// FindByEmailAndPassword is an exact match on both columns
func (r *members) FindByEmailAndPassword(ctx context.Context, email, password string) (*Member, error) {
	if password == "" {
		return nil, ErrRecordNotFound
	}

	record := &Member{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Where("?TableAlias.password = ?", password).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, r.notFound(err)
	}

	return record, nil
}

// Save upserts by id. The refresh token column is left untouched.
func (r *members) Save(ctx context.Context, member *Member) (*Member, error) {
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}

	member.Email = normalizeEmail(member.Email)

	now := time.Now()
	if member.CreatedAt == nil {
		member.CreatedAt = &now
	}
	member.UpdatedAt = &now

	_, err := r.db.NewInsert().
		Model(member).
		ExcludeColumn("refresh_token").
		On("CONFLICT (id) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("password = EXCLUDED.password").
		Set("is_active = EXCLUDED.is_active").
		Set("platform = EXCLUDED.platform").
		Set("provider = EXCLUDED.provider").
		Set("provider_user_id = EXCLUDED.provider_user_id").
		Set("nickname = EXCLUDED.nickname").
		Set("name = EXCLUDED.name").
		Set("phone_number = EXCLUDED.phone_number").
		Set("birth_date = EXCLUDED.birth_date").
		Set("gender = EXCLUDED.gender").
		Set("address = EXCLUDED.address").
		Set("area_interests = EXCLUDED.area_interests").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return member, nil
}

// List returns every member, oldest first
func (r *members) List(ctx context.Context) ([]*Member, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Limit(0)
		}),
		repository.SelectOrderAsc("created_at"),
		repository.SelectOrderAsc("email"),
	)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *members) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*Member)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// SwapRefreshToken is a single conditional UPDATE, the row count tells
// whether the expected token was still in place.
func (r *members) SwapRefreshToken(ctx context.Context, id uuid.UUID, expected, next string) error {
	q := r.db.NewUpdate().
		Table("members").
		Set("refresh_token = ?", nullString(next)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id)

	if expected == "" {
		q = q.Where("refresh_token IS NULL")
	} else {
		q = q.Where("refresh_token = ?", expected)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return ErrRefreshTokenConflict
	}

	return nil
}

func (r *members) notFound(err error) error {
	if IsRecordNotFound(err) {
		return ErrRecordNotFound
	}
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
