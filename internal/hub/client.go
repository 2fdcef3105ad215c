package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"codeberg.org/snonux/bn2en/internal"
)

// DefaultEndpoint is the public Hugging Face hub
const DefaultEndpoint = "https://huggingface.co"

var (
	// ErrNotFound is returned when the repository, revision or file does not exist
	ErrNotFound = errors.New("not found on model hub")
	// ErrUnauthorized is returned when the hub rejects the credential (private or gated repository)
	ErrUnauthorized = errors.New("access denied by model hub")
	// ErrInvalidFilename is returned for repository files that would escape the local directory
	ErrInvalidFilename = errors.New("invalid repository filename")
)

// Config holds hub client settings
type Config struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Token          string        `mapstructure:"token"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	RetryWait      time.Duration `mapstructure:"retry_wait"`
	MaxFailures    uint32        `mapstructure:"max_failures"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

// DefaultConfig returns default configuration. Timeout is zero because model
// weights can take arbitrarily long to download.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:       DefaultEndpoint,
		RetryCount:     3,
		RetryWait:      2 * time.Second,
		MaxFailures:    5,
		BreakerTimeout: 30 * time.Second,
	}
}

// Sibling is one file of a repository revision
type Sibling struct {
	Filename string   `json:"rfilename"`
	Size     int64    `json:"size,omitempty"`
	LFS      *LFSInfo `json:"lfs,omitempty"`
}

// LFSInfo describes a file stored in git LFS
type LFSInfo struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// FileSize returns the expected size in bytes, or 0 when the hub did not report one
func (s Sibling) FileSize() int64 {
	if s.LFS != nil && s.LFS.Size > 0 {
		return s.LFS.Size
	}
	return s.Size
}

// RepoInfo is the subset of the hub's model info we use
type RepoInfo struct {
	ID       string    `json:"id"`
	SHA      string    `json:"sha"`
	Private  bool      `json:"private"`
	Siblings []Sibling `json:"siblings"`
}

// Client talks to the model hub
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	config  *Config
	log     zerolog.Logger
}

// NewClient creates a hub client
func NewClient(config *Config, log zerolog.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	endpoint := strings.TrimRight(config.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	httpClient := resty.New().
		SetBaseURL(endpoint).
		SetHeader("User-Agent", "bn2en/"+internal.Version).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(config.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	if config.Timeout > 0 {
		httpClient.SetTimeout(config.Timeout)
	}
	if config.Token != "" {
		httpClient.SetAuthToken(config.Token)
	}

	maxFailures := config.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "model-hub",
		Timeout: config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// a missing repo or a bad token says nothing about hub health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &Client{
		http:    httpClient,
		breaker: breaker,
		config:  config,
		log:     log,
	}
}

// Info fetches repository metadata, including the file list with sizes
func (c *Client) Info(ctx context.Context, repoID, revision string) (*RepoInfo, error) {
	if revision == "" {
		revision = "main"
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var info RepoInfo
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("blobs", "true").
			SetResult(&info).
			Get(fmt.Sprintf("/api/models/%s/revision/%s", repoID, url.PathEscape(revision)))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch repository info for %s: %w", repoID, err)
		}
		if resp.IsError() {
			return nil, statusError(resp.StatusCode(), "repository "+repoID+"@"+revision)
		}
		return &info, nil
	})
	if err != nil {
		return nil, c.wrapBreaker(err)
	}

	return result.(*RepoInfo), nil
}

// ListFiles returns the files of a repository revision
func (c *Client) ListFiles(ctx context.Context, repoID, revision string) ([]Sibling, error) {
	info, err := c.Info(ctx, repoID, revision)
	if err != nil {
		return nil, err
	}
	return info.Siblings, nil
}

// Snapshot mirrors every file of the repository revision into localDir and
// returns localDir. Files already present with the expected size are kept.
func (c *Client) Snapshot(ctx context.Context, repoID, revision, localDir string) (string, error) {
	info, err := c.Info(ctx, repoID, revision)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(localDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	if revision == "" {
		revision = "main"
	}

	downloaded, skipped := 0, 0
	for _, sibling := range info.Siblings {
		dest, err := localPath(localDir, sibling.Filename)
		if err != nil {
			return "", err
		}

		if isComplete(dest, sibling.FileSize()) {
			skipped++
			c.log.Debug().Str("file", sibling.Filename).Msg("already present, skipping")
			continue
		}

		c.log.Info().Str("repo", repoID).Str("file", sibling.Filename).Int64("bytes", sibling.FileSize()).Msg("downloading")
		if err := c.DownloadFile(ctx, repoID, revision, sibling.Filename, dest); err != nil {
			return "", err
		}
		downloaded++
	}

	c.log.Info().
		Str("repo", repoID).
		Str("revision", revision).
		Int("downloaded", downloaded).
		Int("skipped", skipped).
		Msg("snapshot complete")

	return localDir, nil
}

// DownloadFile fetches a single repository file to dest. The body goes to a
// temporary file first so an interrupted download never looks complete.
func (c *Client) DownloadFile(ctx context.Context, repoID, revision, filename, dest string) error {
	if revision == "" {
		revision = "main"
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := dest + ".incomplete"
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetOutput(tmp).
			Get(fmt.Sprintf("/%s/resolve/%s/%s", repoID, url.PathEscape(revision), escapePath(filename)))
		if err != nil {
			os.Remove(tmp)
			return nil, fmt.Errorf("failed to download %s: %w", filename, err)
		}
		if resp.IsError() {
			os.Remove(tmp)
			return nil, statusError(resp.StatusCode(), "file "+filename)
		}
		return nil, nil
	})
	if err != nil {
		return c.wrapBreaker(err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", filename, err)
	}
	return nil
}

func (c *Client) wrapBreaker(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("model hub unavailable, giving up after repeated failures: %w", err)
	}
	return err
}

func statusError(code int, what string) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w (status %d, check the access token)", what, ErrUnauthorized, code)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	default:
		return fmt.Errorf("%s: unexpected status %d", what, code)
	}
}

// localPath joins a repository filename onto dir, rejecting names that escape it
func localPath(dir, filename string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(filename))
	if filename == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return filepath.Join(dir, clean), nil
}

func escapePath(filename string) string {
	parts := strings.Split(filename, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func isComplete(path string, size int64) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return size <= 0 || info.Size() == size
}
