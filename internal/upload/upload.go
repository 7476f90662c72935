// Package upload moves artifacts that are too large for the chat channel to
// an external host and returns a temporary link.
package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuongbtq/courtbot/internal/domain"
)

// Uploader stores a file and returns a URL where it can be downloaded.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// HTTPUploader posts the file as multipart form data to a temporary file
// host whose response body is the download URL.
type HTTPUploader struct {
	endpoint  string
	fieldName string
	client    *http.Client
}

// DefaultHTTPEndpoint is a public host keeping files for 48 hours.
const DefaultHTTPEndpoint = "https://uguu.se/upload.php?output=text"

// NewHTTPUploader creates an uploader posting to endpoint.
func NewHTTPUploader(endpoint, fieldName string, timeout time.Duration) *HTTPUploader {
	if endpoint == "" {
		endpoint = DefaultHTTPEndpoint
	}
	if fieldName == "" {
		fieldName = "files[]"
	}
	return &HTTPUploader{
		endpoint:  endpoint,
		fieldName: fieldName,
		client:    &http.Client{Timeout: timeout},
	}
}

func (u *HTTPUploader) Upload(ctx context.Context, path string) (string, error) {
	url, err := u.upload(ctx, path)
	if err != nil {
		return "", &domain.UploadError{Path: path, Err: err}
	}
	return url, nil
}

func (u *HTTPUploader) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile(u.fieldName, filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, pr)
	if err != nil {
		pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := u.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("upload host http %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	link := strings.TrimSpace(string(body))
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return "", fmt.Errorf("upload host returned no link: %q", link)
	}
	return link, nil
}
