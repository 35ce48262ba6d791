// Package cronometer implements the provider adapter for the Cronometer
// export API.
package cronometer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/JustinD79/diaguard/internal/entities"
	"github.com/JustinD79/diaguard/internal/provider"
)

const (
	defaultBaseURL = "https://api.cronometer.com/v1"
	defaultTimeout = 30 * time.Second
	pageSize       = 100
)

// Client interfaces with the Cronometer export API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ provider.Adapter = (*Client)(nil)

// NewClient creates a new Cronometer API client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint (tests).
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

// servingsPage is the wire format of GET /servings.
type servingsPage struct {
	Servings   []serving `json:"servings"`
	NextCursor string    `json:"next_cursor"`
}

// serving is one logged food in Cronometer's export format. Timestamps are
// unix epoch seconds; nutrient amounts are keyed by nutrient name.
type serving struct {
	ID        string             `json:"id"`
	FoodName  string             `json:"food_name"`
	Category  string             `json:"category"`
	Nutrients map[string]float64 `json:"nutrients"`
	Grams     float64            `json:"grams"`
	Quantity  float64            `json:"quantity"`
	LoggedAt  int64              `json:"logged_at"`
}

type addServingRequest struct {
	FoodName  string             `json:"food_name"`
	Category  string             `json:"category"`
	Nutrients map[string]float64 `json:"nutrients"`
	Quantity  float64            `json:"quantity,omitempty"`
	LoggedAt  int64              `json:"logged_at"`
}

type addServingResponse struct {
	ID string `json:"id"`
}

// FetchMeals returns all servings logged within [start, end], paginating
// through the export cursor.
func (c *Client) FetchMeals(ctx context.Context, creds provider.Credentials, start, end time.Time) ([]provider.Record, error) {
	var records []provider.Record
	var cursor string

	for {
		page, err := c.fetchPage(ctx, creds.AccessToken, start, end, cursor)
		if err != nil {
			return nil, err
		}

		for _, s := range page.Servings {
			records = append(records, convertServing(s))
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return records, nil
}

// SendMeal logs one serving and returns its id.
func (c *Client) SendMeal(ctx context.Context, creds provider.Credentials, entry entities.NutritionEntry) (string, error) {
	payload := addServingRequest{
		FoodName: entry.FoodName,
		Category: categoryFor(entry.MealType),
		Nutrients: map[string]float64{
			"energy":  entry.Calories,
			"carbs":   entry.Carbs,
			"protein": entry.Protein,
			"fat":     entry.Fat,
			"fiber":   entry.Fiber,
			"sugars":  entry.Sugar,
			"sodium":  entry.Sodium,
		},
		Quantity: entry.Servings,
		LoggedAt: entry.Timestamp.Unix(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode serving: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/servings", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var added addServingResponse
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return added.ID, nil
}

func (c *Client) fetchPage(ctx context.Context, token string, start, end time.Time, cursor string) (*servingsPage, error) {
	u, err := url.Parse(c.baseURL + "/servings")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("from", fmt.Sprintf("%d", start.Unix()))
	q.Set("to", fmt.Sprintf("%d", end.Unix()))
	q.Set("limit", fmt.Sprintf("%d", pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var page servingsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &page, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return provider.ErrInvalidToken
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.ErrRateLimited
	case resp.StatusCode >= 500:
		return &provider.ServerError{Provider: entities.ProviderCronometer, StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func convertServing(s serving) provider.Record {
	return provider.Record{
		ExternalID: s.ID,
		FoodName:   s.FoodName,
		MealType:   mealTypeFor(s.Category),
		Calories:   s.Nutrients["energy"],
		Carbs:      s.Nutrients["carbs"],
		Protein:    s.Nutrients["protein"],
		Fat:        s.Nutrients["fat"],
		Fiber:      s.Nutrients["fiber"],
		Sugar:      s.Nutrients["sugars"],
		Sodium:     s.Nutrients["sodium"],
		ServingSize: func() string {
			if s.Grams > 0 {
				return fmt.Sprintf("%.0f g", s.Grams)
			}
			return ""
		}(),
		Servings:  s.Quantity,
		Timestamp: time.Unix(s.LoggedAt, 0).UTC(),
	}
}

func mealTypeFor(category string) entities.MealType {
	switch category {
	case "breakfast":
		return entities.MealTypeBreakfast
	case "lunch":
		return entities.MealTypeLunch
	case "dinner":
		return entities.MealTypeDinner
	default:
		return entities.MealTypeSnack
	}
}

func categoryFor(mealType entities.MealType) string {
	if mealType == "" {
		return "uncategorized"
	}
	return string(mealType)
}
