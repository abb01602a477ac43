package db

import "time"

type CustodyPrivateKeyModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Identity   string    `gorm:"not null;uniqueIndex:idx_custody_identity_key"`
	KeyID      string    `gorm:"not null;uniqueIndex:idx_custody_identity_key"`
	PrivateKey string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (CustodyPrivateKeyModel) TableName() string {
	return "custody_private_keys"
}

// CustodyAPIKeyModel keeps one API key per identity. ID preserves the order
// in which identities first registered a key.
type CustodyAPIKeyModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Identity  string    `gorm:"not null;uniqueIndex"`
	APIKey    string    `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (CustodyAPIKeyModel) TableName() string {
	return "custody_api_keys"
}
