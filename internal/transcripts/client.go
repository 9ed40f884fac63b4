// Package transcripts calls the transcript endpoints the ingestion workflow
// needs: major extraction, upload URL issue and the parse handoff.
package transcripts

import (
	"context"
	"fmt"
	"net/http"

	"saintplus-client/internal/gateway"
	"saintplus-client/internal/ingestion"
)

const basePath = "/api/v1/transcripts"

type uploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

type uploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	FileKey   string `json:"fileKey"`
}

type parseRequest struct {
	FileKey string `json:"fileKey"`
	Major1  string `json:"major1"`
	Major2  string `json:"major2,omitempty"`
	Major3  string `json:"major3,omitempty"`
}

// Client implements ingestion.Backend over the session gateway.
type Client struct {
	gw *gateway.Gateway
}

func NewClient(gw *gateway.Gateway) *Client {
	return &Client{gw: gw}
}

// ExtractMajors uploads the file and returns the majors found in it, in order.
func (c *Client) ExtractMajors(ctx context.Context, file ingestion.SourceFile) ([]string, error) {
	resp, err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   basePath + "/extract-majors",
		Multipart: &gateway.Multipart{
			FieldName:   "file",
			FileName:    file.Name,
			ContentType: file.ContentType,
			Content:     file.Content,
		},
	})
	if err != nil {
		return nil, err
	}
	var majors []string
	if err := resp.DecodeJSON(&majors); err != nil {
		return nil, err
	}
	if majors == nil {
		majors = []string{}
	}
	return majors, nil
}

// RequestUploadURL asks for a pre-signed destination for the file.
func (c *Client) RequestUploadURL(ctx context.Context, fileName, contentType string) (ingestion.Destination, error) {
	resp, err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   basePath + "/upload-url",
		JSON:   uploadURLRequest{Filename: fileName, ContentType: contentType},
	})
	if err != nil {
		return ingestion.Destination{}, err
	}
	var body uploadURLResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return ingestion.Destination{}, err
	}
	if body.UploadURL == "" || body.FileKey == "" {
		return ingestion.Destination{}, fmt.Errorf("upload-url response missing uploadUrl or fileKey")
	}
	return ingestion.Destination{URL: body.UploadURL, Key: body.FileKey}, nil
}

// NotifyUploaded hands the stored file to the backend for parsing. Parsing
// happens asynchronously; a 2xx only acknowledges the handoff.
func (c *Client) NotifyUploaded(ctx context.Context, storageKey string, majors ingestion.Majors) error {
	_, err := c.gw.Send(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   basePath + "/parse",
		JSON: parseRequest{
			FileKey: storageKey,
			Major1:  majors.Primary,
			Major2:  majors.Secondary,
			Major3:  majors.Tertiary,
		},
	})
	return err
}

var _ ingestion.Backend = (*Client)(nil)
