package entities

import (
	"time"
)

// NutritionEntry is the transient in-memory representation of one meal as it
// moves through a sync pass. Local meal logs and provider records are both
// converted to this shape before being compared, exported, or imported.
type NutritionEntry struct {
	ID       string      `json:"id,omitempty"`
	FoodName string      `json:"food_name"`
	MealType MealType    `json:"meal_type"`
	Calories float64     `json:"calories"`
	Carbs    float64     `json:"carbs"`
	Protein  float64     `json:"protein"`
	Fat      float64     `json:"fat"`
	Fiber    float64     `json:"fiber,omitempty"`
	Sugar    float64     `json:"sugar,omitempty"`
	Sodium   float64     `json:"sodium,omitempty"`
	ServingSize string   `json:"serving_size,omitempty"`
	Servings    float64  `json:"servings,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Source      EntrySource `json:"source"`
	ExternalID  string      `json:"external_id,omitempty"`
}

// FromMealLog converts a persisted meal log to its sync representation.
func FromMealLog(m *MealLog) NutritionEntry {
	return NutritionEntry{
		FoodName:    m.FoodName,
		MealType:    m.MealType,
		Calories:    m.Calories,
		Carbs:       m.Carbs,
		Protein:     m.Protein,
		Fat:         m.Fat,
		Fiber:       m.Fiber,
		Sugar:       m.Sugar,
		Sodium:      m.Sodium,
		ServingSize: m.ServingSize,
		Servings:    m.Servings,
		Timestamp:   m.ConsumedAt,
		Source:      m.Source,
		ExternalID:  m.ExternalID,
	}
}

// ToMealLog converts a sync entry into a persistable meal log for the user.
func (e NutritionEntry) ToMealLog(userID uint) MealLog {
	return MealLog{
		UserID:      userID,
		FoodName:    e.FoodName,
		MealType:    e.MealType,
		Calories:    e.Calories,
		Carbs:       e.Carbs,
		Protein:     e.Protein,
		Fat:         e.Fat,
		Fiber:       e.Fiber,
		Sugar:       e.Sugar,
		Sodium:      e.Sodium,
		ServingSize: e.ServingSize,
		Servings:    e.Servings,
		ConsumedAt:  e.Timestamp,
		Source:      e.Source,
		ExternalID:  e.ExternalID,
	}
}
