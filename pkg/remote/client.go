package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"call-review/pkg/models"

	"github.com/google/uuid"
)

// Client talks to the scoring backend: transcript supply, checklist supply
// and score confirmation. The engine only sees the supplier interfaces.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type wireSegment struct {
	ID      string  `json:"id"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

type transcriptResponse struct {
	Segments []wireSegment `json:"segments"`
}

// Transcript fetches the ordered segment list for one analyzed call.
func (c *Client) Transcript(ctx context.Context, analysisID string) ([]models.Segment, error) {
	var resp transcriptResponse
	path := fmt.Sprintf("/api/v1/analysis/%s/transcript", url.PathEscape(analysisID))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}

	segments := make([]models.Segment, 0, len(resp.Segments))
	for _, ws := range resp.Segments {
		id := ws.ID
		if id == "" {
			id = uuid.New().String()
		}
		segments = append(segments, models.Segment{
			ID:        id,
			Speaker:   models.NormalizeSpeaker(ws.Speaker),
			Text:      ws.Text,
			StartTime: ws.Start,
			EndTime:   ws.End,
		})
	}
	return segments, nil
}

type wireCriterion struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Required bool   `json:"required"`
}

type wireCategory struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Criteria []wireCriterion `json:"criteria"`
}

type checklistResponse struct {
	Categories []wireCategory `json:"categories"`
}

// Checklist fetches the category/criterion tree for a checklist.
func (c *Client) Checklist(ctx context.Context, checklistID string) ([]models.Category, error) {
	var resp checklistResponse
	path := fmt.Sprintf("/api/v1/checklists/%s", url.PathEscape(checklistID))
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return buildCategories(resp.Categories), nil
}

type confirmRequest struct {
	CategoryID  string  `json:"category_id"`
	CriterionID string  `json:"criterion_id"`
	Score       string  `json:"score"`
	Comment     *string `json:"comment,omitempty"`
}

type confirmResponse struct {
	Score   string  `json:"score"`
	Comment *string `json:"comment,omitempty"`
}

// ConfirmScore sends one criterion edit for server-side confirmation and
// returns the acknowledged values, which may differ from what was sent.
func (c *Client) ConfirmScore(ctx context.Context, analysisID, categoryID, criterionID string, score models.Score, comment *string) (models.Score, *string, error) {
	body := confirmRequest{
		CategoryID:  categoryID,
		CriterionID: criterionID,
		Score:       string(score),
		Comment:     comment,
	}
	var resp confirmResponse
	path := fmt.Sprintf("/api/v1/analysis/%s/scores", url.PathEscape(analysisID))
	if err := c.postJSON(ctx, path, body, &resp); err != nil {
		return models.ScoreUnscored, nil, err
	}

	confirmed := models.Score(resp.Score)
	if !confirmed.Valid() || !confirmed.Scored() {
		return models.ScoreUnscored, nil, fmt.Errorf("backend returned unknown score token %q", resp.Score)
	}
	return confirmed, resp.Comment, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend error %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func buildCategories(wire []wireCategory) []models.Category {
	categories := make([]models.Category, 0, len(wire))
	for _, wc := range wire {
		cat := models.Category{ID: wc.ID, Name: wc.Name}
		for _, crit := range wc.Criteria {
			cat.Criteria = append(cat.Criteria, models.Criterion{
				ID:         crit.ID,
				CategoryID: wc.ID,
				Text:       crit.Text,
				Required:   crit.Required,
			})
		}
		categories = append(categories, cat)
	}
	return categories
}
