package repo

import (
	"context"

	"github.com/devlog-hq/devlog/internal/modules/model"
	"gorm.io/gorm"
)

type UserRepo interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByDeveloperTag(ctx context.Context, tag string) (*model.User, error)
	GetByEmailHash(ctx context.Context, hash string) (*model.User, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*model.User, error)
	UpdateCredentials(ctx context.Context, id uint, fields map[string]any) error
	ScanLegacy(ctx context.Context, batchSize int, fn func(users []*model.User) error) error
	ApplyCredentialUpdates(ctx context.Context, updates []CredentialUpdate) error
	MigrationStatus(ctx context.Context) (*MigrationCounts, error)
}

// CredentialUpdate is one user's worth of migrated columns.
type CredentialUpdate struct {
	UserID uint
	Fields map[string]any
}

type MigrationCounts struct {
	TotalUsers         int64 `json:"total_users"`
	MissingEmailHash   int64 `json:"missing_email_hash"`
	PlaintextAPIKeys   int64 `json:"plaintext_api_keys"`
	LegacyEmailColumns int64 `json:"legacy_email_columns"`
}

type userRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) UserRepo {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepo) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) getBy(ctx context.Context, column, value string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).
		Where(column+" = ?", value).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByDeveloperTag(ctx context.Context, tag string) (*model.User, error) {
	return r.getBy(ctx, "developer_tag", tag)
}

func (r *userRepo) GetByEmailHash(ctx context.Context, hash string) (*model.User, error) {
	return r.getBy(ctx, "email_hash", hash)
}

func (r *userRepo) GetByAPIKeyHash(ctx context.Context, hash string) (*model.User, error) {
	return r.getBy(ctx, "api_key_hash", hash)
}

func (r *userRepo) UpdateCredentials(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ScanLegacy visits users that still carry a generation-1 email or API key
// without the matching digest, batchSize rows at a time in primary key order.
func (r *userRepo) ScanLegacy(ctx context.Context, batchSize int, fn func(users []*model.User) error) error {
	if batchSize <= 0 {
		batchSize = 200
	}
	var batch []*model.User
	return r.db.WithContext(ctx).
		Where("(email IS NOT NULL AND email_hash IS NULL) OR api_key IS NOT NULL").
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}

func (r *userRepo) ApplyCredentialUpdates(ctx context.Context, updates []CredentialUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if err := tx.Model(&model.User{}).Where("id = ?", u.UserID).Updates(u.Fields).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *userRepo) MigrationStatus(ctx context.Context) (*MigrationCounts, error) {
	out := &MigrationCounts{}
	db := r.db.WithContext(ctx)

	if err := db.Model(&model.User{}).Count(&out.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.User{}).Where("email_hash IS NULL").Count(&out.MissingEmailHash).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.User{}).Where("api_key IS NOT NULL").Count(&out.PlaintextAPIKeys).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.User{}).Where("email IS NOT NULL").Count(&out.LegacyEmailColumns).Error; err != nil {
		return nil, err
	}
	return out, nil
}
