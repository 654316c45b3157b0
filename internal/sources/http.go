package sources

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/utils"
)

const (
	acceptHTML      = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	acceptJSON      = "application/json"
	contentEncoding = "gzip"
	maxBodySize     = 10 << 20
)

// errForbidden marks a source that blocks automated access.
var errForbidden = errors.New("access forbidden")

type response struct {
	body   []byte
	header http.Header
}

// get performs a GET with the rotated identity, jittered delay and retries
// for transient failures. Any status other than 200 is an error.
func (b *Base) get(ctx context.Context, rawURL string, q url.Values, accept string) (*response, error) {
	if err := b.pause(ctx); err != nil {
		return nil, err
	}

	if q != nil {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
		}
		query := u.Query()
		for k, vs := range q {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
		u.RawQuery = query.Encode()
		rawURL = u.String()
	}

	return utils.Retry(ctx, b.retry, func(ctx context.Context) (*response, error) {
		return b.request(ctx, rawURL, accept)
	})
}

func (b *Base) request(ctx context.Context, rawURL, accept string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, utils.NewFatalError(err)
	}
	b.setHeaders(req, accept)

	b.logger.Debug("make request", zap.String("url", rawURL))
	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return nil, utils.NewTransientError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, utils.NewFatalError(fmt.Errorf("%w: %s", errForbidden, resp.Status))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, utils.ClassifyStatus(resp.StatusCode, fmt.Errorf("bad status: %s", resp.Status))
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, utils.NewFatalError(err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxBodySize))
	if err != nil {
		return nil, utils.NewTransientError(err)
	}

	return &response{body: data, header: resp.Header}, nil
}

func (b *Base) setHeaders(req *http.Request, accept string) {
	req.Header.Set("User-Agent", b.UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", contentEncoding)
}

// getJSON fetches rawURL and decodes the body into target.
func (b *Base) getJSON(ctx context.Context, rawURL string, q url.Values, target any) error {
	resp, err := b.get(ctx, rawURL, q, acceptJSON)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.body, target); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

func isRetryable(err error) bool {
	return utils.IsTransient(err)
}
