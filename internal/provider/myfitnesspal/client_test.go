package myfitnesspal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/provider"
)

func TestClient_FetchMeals(t *testing.T) {
	loggedAt := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("types"); got != "diary_meal" {
			t.Errorf("expected types=diary_meal, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(diaryResponse{
			Items: []diaryEntry{
				{
					ID:            "mfp-1",
					Description:   "Oatmeal with berries",
					MealName:      "Breakfast",
					Energy:        nutrient{Value: 320, Unit: "calories"},
					Carbohydrates: 54,
					Protein:       10,
					Fat:           6,
					LoggedAt:      loggedAt,
				},
			},
		})
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	creds := provider.Credentials{AccessToken: "test-token"}

	records, err := client.FetchMeals(context.Background(), creds, loggedAt.Add(-time.Hour), loggedAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("FetchMeals failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.ExternalID != "mfp-1" {
		t.Errorf("expected external id mfp-1, got %s", got.ExternalID)
	}
	if got.FoodName != "Oatmeal with berries" {
		t.Errorf("unexpected food name %q", got.FoodName)
	}
	if got.MealType != entities.MealTypeBreakfast {
		t.Errorf("expected breakfast, got %s", got.MealType)
	}
	if got.Calories != 320 {
		t.Errorf("expected 320 calories, got %f", got.Calories)
	}
	if !got.Timestamp.Equal(loggedAt) {
		t.Errorf("expected timestamp %v, got %v", loggedAt, got.Timestamp)
	}
}

func TestClient_FetchMeals_InvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	_, err := client.FetchMeals(context.Background(), provider.Credentials{AccessToken: "bad"}, time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, provider.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestClient_FetchMeals_RateLimitRetry(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if requestCount < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(diaryResponse{Items: []diaryEntry{{ID: "mfp-1"}}})
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	records, err := client.FetchMeals(context.Background(), provider.Credentials{AccessToken: "tok"}, time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record after retry, got %d", len(records))
	}
	if requestCount != 2 {
		t.Errorf("expected 2 requests, got %d", requestCount)
	}
}

func TestClient_SendMeal(t *testing.T) {
	var received createEntryRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createEntryResponse{ID: "mfp-created-9"})
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	entry := entities.NutritionEntry{
		FoodName:  "Grilled Chicken",
		MealType:  entities.MealTypeDinner,
		Calories:  450,
		Carbs:     5,
		Protein:   52,
		Fat:       22,
		Timestamp: time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC),
	}

	id, err := client.SendMeal(context.Background(), provider.Credentials{AccessToken: "tok"}, entry)
	if err != nil {
		t.Fatalf("SendMeal failed: %v", err)
	}
	if id != "mfp-created-9" {
		t.Errorf("expected id mfp-created-9, got %s", id)
	}
	if received.Description != "Grilled Chicken" {
		t.Errorf("unexpected description %q", received.Description)
	}
	if received.MealName != "Dinner" {
		t.Errorf("expected meal name Dinner, got %s", received.MealName)
	}
	if received.Energy.Value != 450 {
		t.Errorf("expected 450 calories, got %f", received.Energy.Value)
	}
}

func TestClient_SendMeal_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	_, err := client.SendMeal(context.Background(), provider.Credentials{AccessToken: "tok"}, entities.NutritionEntry{FoodName: "Toast"})

	var serverErr *provider.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if serverErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", serverErr.StatusCode)
	}
}

func TestCalculateRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{10, maxRetryDelay}, // capped
	}

	for _, tt := range tests {
		if got := calculateRetryDelay(tt.attempt); got != tt.want {
			t.Errorf("calculateRetryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{provider.ErrRateLimited, true},
		{&provider.ServerError{StatusCode: 500}, true},
		{provider.ErrInvalidToken, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := isRetryableError(tt.err); got != tt.want {
			t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestMealTypeMapping(t *testing.T) {
	for _, mealType := range []entities.MealType{
		entities.MealTypeBreakfast,
		entities.MealTypeLunch,
		entities.MealTypeDinner,
		entities.MealTypeSnack,
	} {
		if got := mealTypeFor(mealNameFor(mealType)); got != mealType {
			t.Errorf("round trip for %s gave %s", mealType, got)
		}
	}
}
