package opentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-party-service/internal/domain"
)

// DefaultBaseURL is the public Open Trivia DB endpoint.
const DefaultBaseURL = "https://opentdb.com"

// Response codes documented by the Open Trivia DB API.
const (
	codeSuccess       = 0
	codeNoResults     = 1
	codeInvalidParam  = 2
	codeTokenNotFound = 3
	codeTokenEmpty    = 4
	codeRateLimit     = 5
)

// Client fetches questions and categories from an Open Trivia DB compatible API.
type Client struct {
	baseURL       string
	http          *http.Client
	categoriesTTL time.Duration
	clock         func() time.Time
	sf            singleflight.Group

	mu         sync.RWMutex
	categories []domain.Category
	expiresAt  time.Time
}

func NewClient(baseURL string, timeout, categoriesTTL time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		http:          &http.Client{Timeout: timeout},
		categoriesTTL: categoriesTTL,
		clock:         time.Now,
	}
}

type questionsResponse struct {
	ResponseCode int                  `json:"response_code"`
	Results      []domain.RawQuestion `json:"results"`
}

type categoriesResponse struct {
	TriviaCategories []domain.Category `json:"trivia_categories"`
}

// FetchQuestions requests opts.Amount questions matching the options.
// Category may be a numeric id or a category name; unknown names are treated as unspecified.
func (c *Client) FetchQuestions(ctx context.Context, opts domain.QuizOptions) ([]domain.RawQuestion, error) {
	params := url.Values{}
	params.Set("amount", strconv.Itoa(opts.Amount))
	params.Set("encode", "url3986")
	if opts.Category != "" {
		if id, ok := c.categoryID(ctx, opts.Category); ok {
			params.Set("category", strconv.Itoa(id))
		}
	}
	if opts.Difficulty != "" {
		params.Set("difficulty", opts.Difficulty)
	}
	if opts.Type != "" {
		params.Set("type", opts.Type)
	}

	var body questionsResponse
	if err := c.getJSON(ctx, "/api.php?"+params.Encode(), &body); err != nil {
		return nil, err
	}

	switch body.ResponseCode {
	case codeSuccess:
	case codeNoResults:
		return nil, domain.ErrNoQuestions
	case codeInvalidParam:
		return nil, domain.ErrInvalidOptions
	case codeRateLimit:
		return nil, domain.ErrRateLimited
	case codeTokenNotFound, codeTokenEmpty:
		return nil, fmt.Errorf("%w: session token rejected (code %d)", domain.ErrProviderUnavailable, body.ResponseCode)
	default:
		return nil, fmt.Errorf("%w: response code %d", domain.ErrProviderUnavailable, body.ResponseCode)
	}

	questions := make([]domain.RawQuestion, 0, len(body.Results))
	for _, r := range body.Results {
		q, err := decodeQuestion(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// Categories returns the category list, cached for categoriesTTL.
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	now := c.clock()
	c.mu.RLock()
	if c.categories != nil && c.expiresAt.After(now) {
		cached := c.categories
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("categories", func() (interface{}, error) {
		var body categoriesResponse
		if err := c.getJSON(ctx, "/api_category.php", &body); err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.categories = body.TriviaCategories
		c.expiresAt = c.clock().Add(c.categoriesTTL)
		c.mu.Unlock()
		return body.TriviaCategories, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Category), nil
}

func (c *Client) categoryID(ctx context.Context, category string) (int, bool) {
	if id, err := strconv.Atoi(category); err == nil {
		return id, id > 0
	}
	categories, err := c.Categories(ctx)
	if err != nil {
		return 0, false
	}
	for _, cat := range categories {
		if strings.EqualFold(cat.Name, category) {
			return cat.ID, true
		}
	}
	return 0, false
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrProviderUnavailable, err)
	}
	return nil
}

// decodeQuestion undoes the url3986 encoding applied to every text field.
func decodeQuestion(r domain.RawQuestion) (domain.RawQuestion, error) {
	var err error
	unescape := func(s string) string {
		if err != nil {
			return ""
		}
		var out string
		out, err = url.PathUnescape(s)
		return out
	}

	q := domain.RawQuestion{
		Category:      unescape(r.Category),
		Type:          unescape(r.Type),
		Difficulty:    unescape(r.Difficulty),
		Question:      unescape(r.Question),
		CorrectAnswer: unescape(r.CorrectAnswer),
	}
	q.IncorrectAnswers = make([]string, 0, len(r.IncorrectAnswers))
	for _, a := range r.IncorrectAnswers {
		q.IncorrectAnswers = append(q.IncorrectAnswers, unescape(a))
	}
	if err != nil {
		return domain.RawQuestion{}, err
	}
	return q, nil
}
