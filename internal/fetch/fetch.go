// Package fetch downloads registered datasets into the local data
// directory. Shapefile distributions arrive as ZIP archives and are
// extracted in place; already-downloaded files are never re-fetched, so
// a rerun after a network failure only pulls what is missing.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/carceral-ecologies/pfas-cli/internal/registry"
	"github.com/carceral-ecologies/pfas-cli/internal/resilience"
)

// Fetcher downloads registry sources into a data directory, one
// subdirectory per source key.
type Fetcher struct {
	dataDir    string
	client     *http.Client
	ftpTimeout time.Duration
	retry      resilience.RetryConfig
	log        *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client (used in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRetry overrides the retry policy for HTTP downloads.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(f *Fetcher) { f.retry = cfg }
}

// WithFTPTimeout overrides the FTP dial timeout.
func WithFTPTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.ftpTimeout = d }
}

// New creates a Fetcher rooted at dataDir.
func New(dataDir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		dataDir:    dataDir,
		client:     &http.Client{Timeout: 10 * time.Minute},
		ftpTimeout: 30 * time.Second,
		retry:      resilience.DefaultRetryConfig(),
		log:        zap.L().With(zap.String("component", "fetch")),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch ensures the source's dataset is present locally and returns the
// path to its payload file. Sources without a URL are assumed to be
// pre-provisioned at their configured path.
func (f *Fetcher) Fetch(ctx context.Context, src registry.Source) (string, error) {
	if src.URL == "" {
		if src.Path == "" {
			return "", eris.Errorf("fetch: source %s has neither url nor path", src.Key)
		}
		local := filepath.Join(f.dataDir, src.Path)
		if _, err := os.Stat(local); err != nil {
			return "", eris.Wrapf(err, "fetch: source %s not found locally and has no url", src.Key)
		}
		return local, nil
	}

	destDir := filepath.Join(f.dataDir, src.Key)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "fetch: create dir for %s", src.Key)
	}

	name, err := fileNameFromURL(src.URL)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: source %s", src.Key)
	}
	destPath := filepath.Join(destDir, name)

	log := f.log.With(zap.String("source", src.Key), zap.String("url", src.URL))

	if info, statErr := os.Stat(destPath); statErr == nil && info.Size() > 0 {
		log.Debug("already downloaded, skipping", zap.String("path", destPath))
	} else {
		log.Info("downloading dataset")
		if err := f.download(ctx, src.URL, destPath); err != nil {
			return "", eris.Wrapf(err, "fetch: download %s", src.Key)
		}
	}

	if strings.EqualFold(filepath.Ext(destPath), ".zip") {
		extractDir := filepath.Join(destDir, strings.TrimSuffix(name, filepath.Ext(name)))
		if err := os.MkdirAll(extractDir, 0o755); err != nil {
			return "", eris.Wrapf(err, "fetch: create extract dir for %s", src.Key)
		}
		if err := ExtractZIP(destPath, extractDir); err != nil {
			return "", eris.Wrapf(err, "fetch: extract %s", src.Key)
		}
		payload, err := findFileByExt(extractDir, payloadExt(src.Format))
		if err != nil {
			return "", eris.Wrapf(err, "fetch: locate payload for %s", src.Key)
		}
		return payload, nil
	}

	return destPath, nil
}

// download dispatches on URL scheme: FTP mirrors for the federal
// datasets that still only publish there, HTTP for everything else.
func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrap(err, "parse url")
	}
	if u.Scheme == "ftp" {
		return f.downloadFTP(ctx, rawURL, dest)
	}
	return f.downloadHTTP(ctx, rawURL, dest)
}

func (f *Fetcher) downloadHTTP(ctx context.Context, rawURL, dest string) error {
	return resilience.Do(ctx, f.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return eris.Wrap(err, "build request")
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "download"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("download returned status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(err, resp.StatusCode)
			}
			return err
		}

		out, err := os.Create(dest)
		if err != nil {
			return eris.Wrap(err, "create file")
		}
		defer out.Close() //nolint:errcheck

		if _, err := io.Copy(out, resp.Body); err != nil {
			// A partial file must not satisfy the skip-if-exists check.
			os.Remove(dest) //nolint:errcheck
			return resilience.NewTransientError(eris.Wrap(err, "write file"), 0)
		}
		return nil
	})
}

// payloadExt maps a source format to the file extension extracted
// archives are searched for.
func payloadExt(format registry.Format) string {
	switch format {
	case registry.FormatCSV:
		return ".csv"
	case registry.FormatXLSX:
		return ".xlsx"
	default:
		return ".shp"
	}
}

// fileNameFromURL derives a local file name from the URL path.
func fileNameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "parse url")
	}
	name := filepath.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", eris.Errorf("cannot derive file name from %s", rawURL)
	}
	return name, nil
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
