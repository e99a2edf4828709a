package auth

import (
	"context"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	Members() MemberStore
	Verifications() VerificationStore
	CreateSchema(ctx context.Context) error
}

type mngr struct {
	db            *bun.DB
	members       MemberStore
	verifications VerificationStore
}

// NewRepositoryManager builds the bun backed stores. Pass a non nil
// verifications store to keep attempts elsewhere, e.g. redis.
func NewRepositoryManager(db *bun.DB, verifications VerificationStore) RepositoryManager {
	if verifications == nil {
		verifications = NewVerificationsRepository(db)
	}
	return &mngr{
		db:            db,
		members:       NewMembersRepository(db),
		verifications: verifications,
	}
}

func (m mngr) Validate() error {
	if m.members == nil {
		return errors.New("repository members should be initialized")
	}

	if m.verifications == nil {
		return errors.New("repository verifications should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) Members() MemberStore {
	return m.members
}

func (m mngr) Verifications() VerificationStore {
	return m.verifications
}

// CreateSchema creates the members and email_verifications tables if missing
func (m mngr) CreateSchema(ctx context.Context) error {
	return CreateSchema(ctx, m.db)
}

// CreateSchema creates the tables used by the bun stores
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*Member)(nil),
		(*VerificationAttempt)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
