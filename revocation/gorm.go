package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// revokedCredential maps the revoked_credentials table created by the
// database migrations.
type revokedCredential struct {
	Digest     string    `gorm:"primaryKey;size:64"`
	Credential string    `gorm:"type:text;not null"`
	RevokedAt  time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

func (revokedCredential) TableName() string { return "revoked_credentials" }

type GormStore struct {
	db   *gorm.DB
	opts options
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	return &GormStore{db: db, opts: buildOptions(opts)}
}

// Revoke prunes and inserts in one transaction. Revoking twice keeps the
// first record.
func (s *GormStore) Revoke(ctx context.Context, credential string) error {
	now := s.opts.now()
	rec, err := newRecord(credential, now)
	if err != nil {
		return err
	}
	row := revokedCredential{
		Digest:     Digest(credential),
		Credential: rec.Credential,
		RevokedAt:  rec.RevokedAt,
		ExpiresAt:  rec.ExpiresAt,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expires_at <= ?", now.UTC()).Delete(&revokedCredential{}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("revocation: revoke: %w", err)
	}
	return nil
}

func (s *GormStore) IsRevoked(ctx context.Context, credential string) (bool, error) {
	var row revokedCredential
	err := s.db.WithContext(ctx).Select("digest").Where("digest = ?", Digest(credential)).Take(&row).Error
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("revocation: lookup: %w", err)
	}
}

func (s *GormStore) Compact(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.opts.now().UTC()).Delete(&revokedCredential{})
	if res.Error != nil {
		return 0, fmt.Errorf("revocation: compact: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *GormStore) Records(ctx context.Context) ([]Record, error) {
	var rows []revokedCredential
	if err := s.db.WithContext(ctx).Order("revoked_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("revocation: list: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{Credential: r.Credential, RevokedAt: r.RevokedAt.UTC(), ExpiresAt: r.ExpiresAt.UTC()})
	}
	return out, nil
}
