// Package image is a client for OpenAI-style image generation and editing
// endpoints.
package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/renatogalera/ai-chat/pkg/httpx"
)

const (
	DefaultModel = "gpt-image-1"
	DefaultSize  = "1024x1024"
)

// Data is one generated image, delivered either by URL or inline base64.
type Data struct {
	URL     string `json:"url,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
}

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// Client talks to an OpenAI-style images API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpx.NewDefaultClient(),
	}
}

// Generate requests n new images for the prompt.
func (c *Client) Generate(ctx context.Context, model, prompt string, n int, size, responseFormat string) ([]Data, error) {
	payload, err := json.Marshal(generateRequest{
		Model:          model,
		Prompt:         prompt,
		N:              n,
		Size:           size,
		ResponseFormat: responseFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image request: %w", err)
	}
	url := c.baseURL + "/images/generations"
	log.Debug().Str("url", url).Str("model", model).Msg("requesting image generation")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

// Edit requests edited variants of an existing image. maskPath is optional.
func (c *Client) Edit(ctx context.Context, model, prompt string, n int, size, responseFormat, imagePath, maskPath string) ([]Data, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	form.WriteField("model", model)
	form.WriteField("prompt", prompt)
	form.WriteField("n", strconv.Itoa(n))
	form.WriteField("size", size)
	if responseFormat != "" {
		form.WriteField("response_format", responseFormat)
	}
	if err := attachFile(form, "image", imagePath); err != nil {
		return nil, err
	}
	if maskPath != "" {
		if err := attachFile(form, "mask", maskPath); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart form: %w", err)
	}
	url := c.baseURL + "/images/edits"
	log.Debug().Str("url", url).Str("model", model).Msg("requesting image edit")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", form.FormDataContentType())
	return c.send(req)
}

func attachFile(form *multipart.Writer, field, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s file %s: %w", field, path, err)
	}
	part, err := form.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to attach %s file: %w", field, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to attach %s file: %w", field, err)
	}
	return nil
}

func (c *Client) send(req *http.Request) ([]Data, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send image request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("images API error (%d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Data []Data `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("invalid images API response: %w", err)
	}
	// Some gateways put errors in a 200 body.
	if envelope.Error != nil {
		msg := envelope.Error.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, fmt.Errorf("images API error: %s", msg)
	}
	if envelope.Data == nil {
		return nil, errors.New("images API response missing data")
	}
	return envelope.Data, nil
}

// Save writes one image to path, downloading the URL form when the payload
// is not inline.
func (c *Client) Save(ctx context.Context, item Data, path string) error {
	switch {
	case item.B64JSON != "":
		raw, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return fmt.Errorf("failed to decode image payload: %w", err)
		}
		return os.WriteFile(path, raw, 0o644)
	case item.URL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
		if err != nil {
			return fmt.Errorf("failed to build image download request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to download image: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to download image: status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to download image: %w", err)
		}
		return os.WriteFile(path, data, 0o644)
	default:
		return errors.New("image has neither url nor b64_json")
	}
}

// SaveAll writes every image under dir with a timestamped name and returns
// the written paths.
func (c *Client) SaveAll(ctx context.Context, items []Data, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	paths := make([]string, 0, len(items))
	for i, item := range items {
		path := filepath.Join(dir, fmt.Sprintf("image-%s-%d.png", stamp, i+1))
		if err := c.Save(ctx, item, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
