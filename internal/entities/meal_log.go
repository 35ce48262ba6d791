package entities

import (
	"time"
)

type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

// EntrySource marks where a meal record originated.
type EntrySource string

const (
	EntrySourceLocal    EntrySource = "local"
	EntrySourceProvider EntrySource = "provider"
)

// MealLog is a single logged meal with its nutrition snapshot.
// Macros are stored per logged portion, not per serving.
type MealLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID   uint     `gorm:"not null;index" json:"user_id"`
	FoodName string   `gorm:"size:255;not null" json:"food_name"`
	MealType MealType `gorm:"size:20" json:"meal_type"`

	Calories float64 `json:"calories"`
	Carbs    float64 `json:"carbs"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber,omitempty"`
	Sugar    float64 `json:"sugar,omitempty"`
	Sodium   float64 `json:"sodium,omitempty"`

	ServingSize string  `gorm:"size:100" json:"serving_size,omitempty"`
	Servings    float64 `json:"servings,omitempty"`

	// ConsumedAt is when the meal was eaten, distinct from CreatedAt.
	ConsumedAt time.Time `gorm:"index" json:"consumed_at"`

	Source EntrySource `gorm:"size:20;default:local" json:"source"`

	// ExternalID is set when the meal was imported from a provider.
	ExternalID string `gorm:"size:255" json:"external_id,omitempty"`
}

func (MealLog) TableName() string {
	return "meal_logs"
}
