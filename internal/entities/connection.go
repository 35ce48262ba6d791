package entities

import (
	"time"
)

// Provider identifies a third-party nutrition-tracking service.
type Provider string

const (
	ProviderMyFitnessPal Provider = "myfitnesspal"
	ProviderCronometer   Provider = "cronometer"
	ProviderLoseIt       Provider = "loseit"
	ProviderFatSecret    Provider = "fatsecret"
)

// KnownProviders lists every provider the sync service can talk to.
var KnownProviders = []Provider{
	ProviderMyFitnessPal,
	ProviderCronometer,
	ProviderLoseIt,
	ProviderFatSecret,
}

// IsValid reports whether p is one of the known providers.
func (p Provider) IsValid() bool {
	for _, known := range KnownProviders {
		if p == known {
			return true
		}
	}
	return false
}

// DisplayName returns a human-readable provider name for UI surfaces.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderMyFitnessPal:
		return "MyFitnessPal"
	case ProviderCronometer:
		return "Cronometer"
	case ProviderLoseIt:
		return "Lose It!"
	case ProviderFatSecret:
		return "FatSecret"
	default:
		return string(p)
	}
}

// ProviderConnection links one user to one provider. Connections are
// deactivated rather than deleted on disconnect so that exported/imported
// record markers and sync history keep a valid parent.
type ProviderConnection struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID   uint     `gorm:"not null;uniqueIndex:idx_user_provider" json:"user_id"`
	Provider Provider `gorm:"type:varchar(50);not null;uniqueIndex:idx_user_provider" json:"provider"`
	IsActive bool     `json:"is_active"`

	// AccessToken and RefreshToken are stored as base64-encoded
	// AES-256-GCM ciphertext and never serialized.
	AccessToken  string     `gorm:"type:text" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	TokenExpiry  *time.Time `json:"token_expiry,omitempty"`

	ErrorCount int        `json:"error_count"`
	LastError  string     `gorm:"type:text" json:"last_error,omitempty"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

func (ProviderConnection) TableName() string {
	return "health_app_connections"
}

// TokenExpired reports whether the stored access token has expired.
// Connections without an expiry never expire.
func (c *ProviderConnection) TokenExpired() bool {
	if c.TokenExpiry == nil {
		return false
	}
	return time.Now().After(*c.TokenExpiry)
}
