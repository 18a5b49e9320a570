// Package hub downloads pretrained model artifacts from the HuggingFace Hub.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const downloadConcurrency = 4

// Client fetches model metadata and files from the HuggingFace API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a Hub client. token may be empty for public models.
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		baseURL:    "https://huggingface.co",
		token:      token,
	}
}

// NewClientWithBaseURL overrides the API endpoint. Used by tests.
func NewClientWithBaseURL(baseURL, token string) *Client {
	c := NewClient(token)
	c.baseURL = baseURL
	return c
}

// modelResponse is the subset of the /api/models response we need.
type modelResponse struct {
	Siblings []struct {
		Rfilename string `json:"rfilename"`
	} `json:"siblings"`
}

// artifactFiles filters the repo file list down to what the serving
// container needs: config, tokenizer assets, and one set of weights.
func artifactFiles(all []string) []string {
	wanted := map[string]bool{
		"config.json":             true,
		"tokenizer.json":          true,
		"tokenizer_config.json":   true,
		"special_tokens_map.json": true,
		"vocab.txt":               true,
		"merges.txt":              true,
		"vocab.json":              true,
	}

	var files []string
	hasSafetensors := false
	for _, f := range all {
		if f == "model.safetensors" {
			hasSafetensors = true
		}
	}
	for _, f := range all {
		switch {
		case wanted[f]:
			files = append(files, f)
		case f == "model.safetensors":
			files = append(files, f)
		case f == "pytorch_model.bin" && !hasSafetensors:
			files = append(files, f)
		}
	}
	return files
}

// ListFiles returns the artifact file names for a model repo.
func (c *Client) ListFiles(ctx context.Context, modelID string) ([]string, error) {
	url := fmt.Sprintf("%s/api/models/%s", c.baseURL, modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch model metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch model metadata: %s returned %d", modelID, resp.StatusCode)
	}

	var mr modelResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode model metadata: %w", err)
	}

	all := make([]string, 0, len(mr.Siblings))
	for _, s := range mr.Siblings {
		all = append(all, s.Rfilename)
	}

	files := artifactFiles(all)
	if len(files) == 0 {
		return nil, fmt.Errorf("model %s lists no artifact files", modelID)
	}
	return files, nil
}

// Download fetches the model's artifact files into destDir, up to four at
// a time, and returns the downloaded file names.
func (c *Client) Download(ctx context.Context, modelID, destDir string) ([]string, error) {
	files, err := c.ListFiles(ctx, modelID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for _, f := range files {
		f := f
		g.Go(func() error {
			return c.downloadFile(gctx, modelID, f, destDir)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Client) downloadFile(ctx context.Context, modelID, name, destDir string) error {
	url := fmt.Sprintf("%s/%s/resolve/main/%s", c.baseURL, modelID, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", name, resp.StatusCode)
	}

	// Write to a temp name and rename so a partial download never looks
	// like a complete artifact.
	dest := filepath.Join(destDir, filepath.FromSlash(name))
	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" && !strings.HasPrefix(c.token, "Bearer ") {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
}
