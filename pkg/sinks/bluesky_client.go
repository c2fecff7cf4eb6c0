package sinks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/go-resty/resty/v2"
)

var errUnauthorized = errors.New("unauthorized")

// BlueskyClient is a minimal AT Protocol client for posting images.
type BlueskyClient struct {
	pds  string
	http *resty.Client

	// populated after Login
	accessJwt string
	did       string
}

// NewBlueskyClient creates a client for pds; empty pds means https://bsky.social.
func NewBlueskyClient(pds string, timeout time.Duration) *BlueskyClient {
	if pds == "" {
		pds = blueskyDefaultPDS
	}
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetJSONMarshaler(json.Marshal)
	c.SetJSONUnmarshaler(json.Unmarshal)
	return &BlueskyClient{pds: pds, http: c}
}

// Login authenticates with the PDS and stores the session token.
func (c *BlueskyClient) Login(ctx context.Context, identifier, password string) error {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	var resp createSessionResponse
	if err := c.post(ctx, "/xrpc/com.atproto.server.createSession", body, &resp); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if resp.AccessJwt == "" || resp.DID == "" {
		return fmt.Errorf("create session: empty session in response")
	}

	c.accessJwt = resp.AccessJwt
	c.did = resp.DID
	return nil
}

// Authenticated reports whether Login succeeded earlier.
func (c *BlueskyClient) Authenticated() bool {
	return c.accessJwt != ""
}

// BlobRef represents an AT Protocol blob reference for uploaded content.
type BlobRef struct {
	Type string `json:"$type"`
	Ref  struct {
		Link string `json:"$link"`
	} `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// UploadBlob uploads raw image bytes and returns a reference to them.
func (c *BlueskyClient) UploadBlob(ctx context.Context, data []byte, mimeType string) (*BlobRef, error) {
	if c.accessJwt == "" {
		return nil, fmt.Errorf("not authenticated: call Login first")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", mimeType).
		SetAuthToken(c.accessJwt).
		SetBody(data).
		Post(c.pds + "/xrpc/com.atproto.repo.uploadBlob")
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if err := apiError(resp); err != nil {
		return nil, err
	}

	var result uploadBlobResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &result.Blob, nil
}

// CreateImagePost publishes an app.bsky.feed.post record with one image.
func (c *BlueskyClient) CreateImagePost(ctx context.Context, text string, image *BlobRef, alt string) error {
	if c.accessJwt == "" {
		return fmt.Errorf("not authenticated: call Login first")
	}

	record := postRecord{
		Type:      "app.bsky.feed.post",
		Text:      text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Embed: &imagesEmbed{
			Type:   "app.bsky.embed.images",
			Images: []embedImage{{Alt: alt, Image: image}},
		},
	}
	body := createRecordRequest{
		Repo:       c.did,
		Collection: "app.bsky.feed.post",
		Record:     record,
	}

	if err := c.post(ctx, "/xrpc/com.atproto.repo.createRecord", body, nil); err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

func (c *BlueskyClient) post(ctx context.Context, path string, body any, result any) error {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if c.accessJwt != "" {
		req.SetAuthToken(c.accessJwt)
	}

	resp, err := req.Post(c.pds + path)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	if err := apiError(resp); err != nil {
		return err
	}

	if result != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// xrpcError is the error body returned by AT Protocol servers.
type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// apiError maps a failed response to an error. A 401, or a 4xx carrying
// ExpiredToken or InvalidToken, means the session must be renewed.
func apiError(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	err := fmt.Errorf("API error (status %d): %s", resp.StatusCode(), readBodySnippet(resp.Body()))
	if resp.StatusCode() == http.StatusUnauthorized || sessionExpired(resp) {
		return errors.Join(errUnauthorized, err)
	}
	return err
}

func sessionExpired(resp *resty.Response) bool {
	if resp.StatusCode() < 400 || resp.StatusCode() >= 500 {
		return false
	}
	var body xrpcError
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return false
	}
	switch body.Error {
	case "ExpiredToken", "InvalidToken":
		return true
	}
	return false
}

type createSessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

type uploadBlobResponse struct {
	Blob BlobRef `json:"blob"`
}

type createRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	Record     any    `json:"record"`
}

type postRecord struct {
	Type      string       `json:"$type"`
	Text      string       `json:"text"`
	CreatedAt string       `json:"createdAt"`
	Embed     *imagesEmbed `json:"embed,omitempty"`
}

type imagesEmbed struct {
	Type   string       `json:"$type"`
	Images []embedImage `json:"images"`
}

type embedImage struct {
	Alt   string   `json:"alt"`
	Image *BlobRef `json:"image"`
}
