package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/q-controller/mediarelay/src/pkg/utils"
)

// Client uploads assets to a running relay.
type Client struct {
	server string
	secret string
	http   *http.Client
}

func NewClient(server, secret string, httpClient *http.Client) (*Client, error) {
	if !utils.IsHTTP(server) {
		return nil, fmt.Errorf("invalid server address %q", server)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		server: server,
		secret: secret,
		http:   httpClient,
	}, nil
}

// Upload streams r as a multipart file named filename and returns the URL
// the relay assigned to it.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, partErr := mw.CreateFormFile("file", filepath.Base(filename))
		if partErr != nil {
			pw.CloseWithError(partErr)
			return
		}
		if _, copyErr := io.Copy(part, r); copyErr != nil {
			pw.CloseWithError(copyErr)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, utils.JoinURL(c.server, UploadPath), pr)
	if reqErr != nil {
		pr.CloseWithError(reqErr)
		return "", reqErr
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", c.secret)

	resp, respErr := c.http.Do(req)
	if respErr != nil {
		return "", respErr
	}
	body, readErr := readBody(resp)
	if readErr != nil {
		return "", readErr
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload failed: %s: %s", resp.Status, body)
	}
	return body, nil
}

// Download copies the asset served under name into w.
func (c *Client) Download(ctx context.Context, name string, w io.Writer) (retErr error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, utils.JoinURL(c.server, "i", name), nil)
	if reqErr != nil {
		return reqErr
	}

	resp, respErr := c.http.Do(req)
	if respErr != nil {
		return respErr
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			retErr = errors.Join(retErr, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}
	_, copyErr := io.Copy(w, resp.Body)
	return copyErr
}

func readBody(resp *http.Response) (_ string, retErr error) {
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			retErr = errors.Join(retErr, closeErr)
		}
	}()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
