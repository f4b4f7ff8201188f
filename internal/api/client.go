// Package api is a thin client for the learning platform's REST API.
// Each call issues exactly one request; nothing is retried or cached.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pavelanni/galaxy-admin/internal/model"
)

const (
	subjectsPath = "/api/v1/admin/subjects"
	lessonsPath  = "/api/v1/admin/lessons"
	uploadPath   = "/api/v1/upload/image"
	generatePath = "/api/v1/ai/generate"

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 10 << 20
)

// Client calls the platform API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets an overall per-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

// New creates a client for the API rooted at baseURL, e.g. "https://backend.example.com".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// ListSubjects returns every subject.
func (c *Client) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	var subjects []model.Subject
	if err := c.doJSON(ctx, "list subjects", http.MethodGet, subjectsPath, nil, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// CreateSubject creates a subject and returns it as stored by the platform.
func (c *Client) CreateSubject(ctx context.Context, req model.SubjectRequest) (*model.Subject, error) {
	var subject model.Subject
	if err := c.doJSON(ctx, "create subject", http.MethodPost, subjectsPath, req, &subject); err != nil {
		return nil, err
	}
	return &subject, nil
}

// CreateLesson submits a lesson draft.
func (c *Client) CreateLesson(ctx context.Context, req model.LessonRequest) (*model.Lesson, error) {
	var lesson model.Lesson
	if err := c.doJSON(ctx, "create lesson", http.MethodPost, lessonsPath, req, &lesson); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// UploadImage sends an image as multipart field "image" and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	const op = "upload image"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", &RemoteCallError{Op: op, Err: fmt.Errorf("create form file: %w", err)}
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", &RemoteCallError{Op: op, Err: fmt.Errorf("read image: %w", err)}
	}
	if err := mw.Close(); err != nil {
		return "", &RemoteCallError{Op: op, Err: fmt.Errorf("close multipart: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, &buf)
	if err != nil {
		return "", &RemoteCallError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out model.ImageUpload
	if err := c.do(op, req, &out); err != nil {
		return "", err
	}
	if out.ImageURL == "" {
		return "", &RemoteCallError{Op: op, Message: "response has no imageUrl"}
	}
	return out.ImageURL, nil
}

// GenerateLessonContent asks the platform's AI endpoint for a lesson on a topic.
func (c *Client) GenerateLessonContent(ctx context.Context, req model.GenerateRequest) (*model.GeneratedLesson, error) {
	var out model.GeneratedLesson
	if err := c.doJSON(ctx, "generate lesson content", http.MethodPost, generatePath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &RemoteCallError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &RemoteCallError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Debug("remote call failed", "op", op, "url", req.URL.String(), "error", err)
		return &RemoteCallError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &RemoteCallError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	slog.Debug("remote call",
		"op", op,
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteCallError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    messageFromBody(data),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RemoteCallError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
