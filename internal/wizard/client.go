package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// HTTPClient posts wizard submissions to the leads API as multipart forms.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type createResponse struct {
	Success     bool   `json:"success"`
	ReferenceID string `json:"referenceId"`
	Error       string `json:"error"`
	Message     string `json:"message"`
}

func (c *HTTPClient) CreateLead(ctx context.Context, submission Submission) (string, error) {
	body, contentType, err := encodeMultipart(submission)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/leads", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed createResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !parsed.Success {
		return "", serverError(parsed, resp.StatusCode)
	}
	return parsed.ReferenceID, nil
}

func (c *HTTPClient) UpdateLead(ctx context.Context, reference string, submission Submission) error {
	body, contentType, err := encodeMultipart(submission)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/leads/"+reference, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var parsed createResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !parsed.Success {
		return serverError(parsed, resp.StatusCode)
	}
	return nil
}

func serverError(parsed createResponse, status int) error {
	message := parsed.Error
	if message == "" {
		message = parsed.Message
	}
	if message == "" {
		message = fmt.Sprintf("server returned status %d", status)
	}
	return fmt.Errorf("%s", message)
}

func encodeMultipart(submission Submission) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range submission.Fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}

	for _, file := range submission.Files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
		header.Set("Content-Type", file.ContentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		reader, err := file.Open()
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, reader); err != nil {
			reader.Close()
			return nil, "", err
		}
		reader.Close()
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
