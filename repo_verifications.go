package auth

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type verifications struct {
	db *bun.DB
}

var _ VerificationStore = (*verifications)(nil)

// NewVerificationsRepository returns a VerificationStore over the
// email_verifications table, one row per email.
func NewVerificationsRepository(db *bun.DB) VerificationStore {
	return &verifications{db: db}
}

func (r *verifications) FindByEmailAndStatus(ctx context.Context, email string, status VerificationStatus) (*VerificationAttempt, error) {
	record := &VerificationAttempt{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Where("?TableAlias.status = ?", status).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return record, nil
}

// Save upserts on email so a newer attempt replaces the previous one
func (r *verifications) Save(ctx context.Context, attempt *VerificationAttempt) error {
	attempt.Email = normalizeEmail(attempt.Email)
	if attempt.UpdatedAt == nil {
		now := time.Now()
		attempt.UpdatedAt = &now
	}

	_, err := r.db.NewInsert().
		Model(attempt).
		On("CONFLICT (email) DO UPDATE").
		Set("attempt_id = EXCLUDED.attempt_id").
		Set("code = EXCLUDED.code").
		Set("status = EXCLUDED.status").
		Set("issued_at = EXCLUDED.issued_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

// Transition is a conditional UPDATE on email, attempt_id and status
func (r *verifications) Transition(ctx context.Context, from VerificationStatus, next *VerificationAttempt) error {
	updatedAt := time.Now()
	if next.UpdatedAt != nil {
		updatedAt = *next.UpdatedAt
	}

	res, err := r.db.NewUpdate().
		Table("email_verifications").
		Set("status = ?", next.Status).
		Set("updated_at = ?", updatedAt).
		Where("email = ?", normalizeEmail(next.Email)).
		Where("attempt_id = ?", next.AttemptID).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return ErrVerificationConflict
	}

	return nil
}

func (r *verifications) Delete(ctx context.Context, email string) error {
	_, err := r.db.NewDelete().
		Model((*VerificationAttempt)(nil)).
		Where("email = ?", normalizeEmail(email)).
		Exec(ctx)
	return err
}
