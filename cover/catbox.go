package cover

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	catboxEndpoint = "https://catbox.moe/user/api.php"
	// catboxMaxBytes is the host's upload cap.
	catboxMaxBytes = 20 << 20
	// catboxMaxURLLen guards against a junk body being taken for a URL.
	catboxMaxURLLen = 500
)

// Catbox uploads images anonymously to catbox.moe.
type Catbox struct {
	endpoint string
	http     *http.Client
}

// NewCatbox creates the uploader with a bounded request timeout.
func NewCatbox() *Catbox {
	return &Catbox{
		endpoint: catboxEndpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload posts the image as a multipart fileupload request and validates
// that the response body is a plausible public URL. The key is unused;
// catbox names uploads itself.
func (c *Catbox) Upload(ctx context.Context, _ string, data []byte) (string, error) {
	if len(data) > catboxMaxBytes {
		return "", fmt.Errorf("catbox: image is %d bytes, cap is %d", len(data), catboxMaxBytes)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("reqtype", "fileupload"); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("fileToUpload", "cover.jpg")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("catbox: upload status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, catboxMaxURLLen+1))
	if err != nil {
		return "", err
	}
	link := strings.TrimSpace(string(raw))
	if err := validateCatboxURL(link); err != nil {
		return "", err
	}
	return link, nil
}

func validateCatboxURL(link string) error {
	if link == "" || len(link) > catboxMaxURLLen {
		return fmt.Errorf("catbox: implausible response body")
	}
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("catbox: response is not a URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("catbox: unexpected scheme %q", u.Scheme)
	}
	if !strings.Contains(u.Host, "catbox.moe") {
		return fmt.Errorf("catbox: unexpected host %q", u.Host)
	}
	return nil
}

var _ Uploader = (*Catbox)(nil)
