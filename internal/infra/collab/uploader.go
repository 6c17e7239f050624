package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
)

// Uploader posts media files to an object-storage gateway that answers with
// the public URL of the stored object.
type Uploader struct {
	endpoint string
	client   *http.Client
}

func NewUploader(endpoint string, timeout time.Duration) *Uploader {
	return &Uploader{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

var _ app.MediaUploader = (*Uploader)(nil)

func (u *Uploader) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		header.Set("Content-Type", contentType)
		part, err := form.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, pr)
	if err != nil {
		pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("upload %s: status %d", filename, resp.StatusCode)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.URL == "" {
		return "", errors.New("upload response carried no url")
	}
	return out.URL, nil
}
