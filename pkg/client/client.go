package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skillbridge/review-engine/internal/models"
)

// Client is a Go SDK for the review-engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new review-engine client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error response from the review-engine API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("review-engine: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// apiEnvelope mirrors the server's response envelope
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ListReviewsResponse is the payload of the list endpoint
type ListReviewsResponse struct {
	Reviews []*models.ReviewRequest `json:"reviews"`
	Total   int                     `json:"total"`
}

// ResolveMentors returns the mentors a student may share a document with
func (c *Client) ResolveMentors(ctx context.Context, studentID string, docType models.DocumentType, docID string) (*models.Resolution, error) {
	path := fmt.Sprintf("/api/v1/students/%s/documents/%s/%s/mentors",
		url.PathEscape(studentID), url.PathEscape(string(docType)), url.PathEscape(docID))

	var res models.Resolution
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}

	return &res, nil
}

// ShareDocument shares a document with a mentor, creating a pending
// review request
func (c *Client) ShareDocument(ctx context.Context, studentID string, docType models.DocumentType, docID, mentorID string) (*models.ReviewRequest, error) {
	path := fmt.Sprintf("/api/v1/students/%s/documents/%s/%s/share",
		url.PathEscape(studentID), url.PathEscape(string(docType)), url.PathEscape(docID))

	var review models.ReviewRequest
	if err := c.doRequest(ctx, http.MethodPost, path, models.ShareRequest{MentorID: mentorID}, &review); err != nil {
		return nil, err
	}

	return &review, nil
}

// GetReview returns a review request by ID
func (c *Client) GetReview(ctx context.Context, reviewID string) (*models.ReviewRequest, error) {
	var review models.ReviewRequest
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/reviews/"+url.PathEscape(reviewID), nil, &review); err != nil {
		return nil, err
	}

	return &review, nil
}

// ListReviews returns review requests matching filters
func (c *Client) ListReviews(ctx context.Context, filters models.ReviewFilters) (*ListReviewsResponse, error) {
	query := url.Values{}
	if filters.StudentID != "" {
		query.Set("student_id", filters.StudentID)
	}
	if filters.MentorID != "" {
		query.Set("mentor_id", filters.MentorID)
	}
	if filters.Status != "" {
		query.Set("status", string(filters.Status))
	}
	if filters.Limit > 0 {
		query.Set("limit", strconv.Itoa(filters.Limit))
	}
	if filters.Offset > 0 {
		query.Set("offset", strconv.Itoa(filters.Offset))
	}

	path := "/api/v1/reviews"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp ListReviewsResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// SubmitVerdict records a mentor's verdict on a pending review
func (c *Client) SubmitVerdict(ctx context.Context, reviewID string, verdict models.VerdictRequest) (*models.ReviewRequest, error) {
	var review models.ReviewRequest
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/reviews/"+url.PathEscape(reviewID)+"/verdict", verdict, &review); err != nil {
		return nil, err
	}

	return &review, nil
}

// ReleaseReview removes a pending review request, reopening the document.
// Requires a key with the reviews:admin permission.
func (c *Client) ReleaseReview(ctx context.Context, reviewID string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/v1/reviews/"+url.PathEscape(reviewID), nil, nil)
}

// doRequest performs an API call and decodes the response envelope
func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response (http %d): %w", resp.StatusCode, err)
	}

	if !envelope.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}
