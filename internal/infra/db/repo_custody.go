package db

import (
	"context"
	"strconv"
	"time"

	"keyward/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustodyStore persists private keys and API keys in postgres. Key id
// allocation for an identity is serialised with a transaction-scoped
// advisory lock.
type CustodyStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCustodyStore(db *gorm.DB) *CustodyStore {
	return &CustodyStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *CustodyStore) CountPrivateKeys(ctx context.Context, identity domain.Identity) (int, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	return countPrivateKeys(r.db.WithContext(ctx), identity)
}

func (r *CustodyStore) NextKeyID(ctx context.Context, identity domain.Identity) (string, error) {
	n, err := r.CountPrivateKeys(ctx, identity)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(n), nil
}

func (r *CustodyStore) SetPrivateKey(ctx context.Context, identity domain.Identity, keyID, keyHex string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := CustodyPrivateKeyModel{
			Identity:   string(identity),
			KeyID:      keyID,
			PrivateKey: keyHex,
			CreatedAt:  r.now(),
		}
		return translateCustodyError(tx.Create(&model).Error, identity, keyID)
	})
}

func (r *CustodyStore) GetPrivateKey(ctx context.Context, identity domain.Identity, keyID string) (string, error) {
	if r.db == nil {
		return "", errDBUnavailable
	}
	var model CustodyPrivateKeyModel
	err := r.db.WithContext(ctx).
		Where("identity = ? AND key_id = ?", string(identity), keyID).
		First(&model).Error
	if err != nil {
		return "", translateCustodyError(err, identity, keyID)
	}
	return model.PrivateKey, nil
}

func (r *CustodyStore) AddPrivateKey(ctx context.Context, identity domain.Identity, keyHex string) (string, error) {
	if r.db == nil {
		return "", errDBUnavailable
	}
	var keyID string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", string(identity)).Error; err != nil {
			return err
		}
		n, err := countPrivateKeys(tx, identity)
		if err != nil {
			return err
		}
		keyID = strconv.Itoa(n)
		model := CustodyPrivateKeyModel{
			Identity:   string(identity),
			KeyID:      keyID,
			PrivateKey: keyHex,
			CreatedAt:  r.now(),
		}
		return translateCustodyError(tx.Create(&model).Error, identity, keyID)
	})
	if err != nil {
		return "", err
	}
	return keyID, nil
}

func (r *CustodyStore) SetAPIKey(ctx context.Context, identity domain.Identity, apiKey string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := r.now()
	model := CustodyAPIKeyModel{
		Identity:  string(identity),
		APIKey:    apiKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity"}},
			DoUpdates: clause.AssignmentColumns([]string{"api_key", "updated_at"}),
		}).Create(&model).Error
	})
}

// GetAPIKeyOwner returns the earliest registered identity whose current API
// key equals apiKey.
func (r *CustodyStore) GetAPIKeyOwner(ctx context.Context, apiKey string) (domain.Identity, bool, error) {
	if r.db == nil {
		return "", false, errDBUnavailable
	}
	var models []CustodyAPIKeyModel
	err := r.db.WithContext(ctx).
		Where("api_key = ?", apiKey).
		Order("id ASC").
		Limit(1).
		Find(&models).Error
	if err != nil {
		return "", false, err
	}
	if len(models) == 0 {
		return "", false, nil
	}
	return domain.Identity(models[0].Identity), true, nil
}

func countPrivateKeys(tx *gorm.DB, identity domain.Identity) (int, error) {
	var n int64
	if err := tx.Model(&CustodyPrivateKeyModel{}).Where("identity = ?", string(identity)).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}
