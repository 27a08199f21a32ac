package uploading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// VideoMeta carries the delivery metadata attached to a chunk.
type VideoMeta struct {
	Caption           string
	Width             int
	Height            int
	DurationSeconds   int
	SupportsStreaming bool
}

// Transport delivers one chunk file to a chat. Any failure is treated as
// transient for the item; the pipeline does not classify error subtypes.
type Transport interface {
	SendVideo(ctx context.Context, chatID int64, filePath string, meta VideoMeta) error
}

// TelegramTransport implements Transport against the Telegram Bot API.
type TelegramTransport struct {
	apiBase    string
	botToken   string
	httpClient *http.Client
}

// NewTelegramTransport creates a new Bot API transport.
func NewTelegramTransport(botToken string, timeout time.Duration) *TelegramTransport {
	return &TelegramTransport{
		apiBase:  "https://api.telegram.org",
		botToken: botToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewTelegramTransportWithBase creates a transport against a custom API
// base URL, used by tests and local bot API servers.
func NewTelegramTransportWithBase(apiBase, botToken string, timeout time.Duration) *TelegramTransport {
	t := NewTelegramTransport(botToken, timeout)
	t.apiBase = apiBase
	return t
}

// apiResponse is the envelope every Bot API call returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// SendVideo uploads the chunk file via the sendVideo method.
func (t *TelegramTransport) SendVideo(ctx context.Context, chatID int64, filePath string, meta VideoMeta) error {
	videoData, err := os.ReadFile(filePath)
	if err != nil {
		return NewTransportError(0, "failed to read chunk file", err)
	}

	// Build multipart form
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"chat_id":  strconv.FormatInt(chatID, 10),
		"caption":  meta.Caption,
		"width":    strconv.Itoa(meta.Width),
		"height":   strconv.Itoa(meta.Height),
		"duration": strconv.Itoa(meta.DurationSeconds),
	}
	if meta.SupportsStreaming {
		fields["supports_streaming"] = "true"
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return NewTransportError(0, fmt.Sprintf("failed to write %s field", key), err)
		}
	}

	part, err := writer.CreateFormFile("video", filepath.Base(filePath))
	if err != nil {
		return NewTransportError(0, "failed to create form file", err)
	}
	if _, err := part.Write(videoData); err != nil {
		return NewTransportError(0, "failed to write video data", err)
	}
	if err := writer.Close(); err != nil {
		return NewTransportError(0, "failed to close multipart writer", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendVideo", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, &buf)
	if err != nil {
		return NewTransportError(0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return NewTransportError(0, "failed to make request", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return NewTransportError(resp.StatusCode, fmt.Sprintf("unparseable response: %s", string(body)), err)
	}
	if !apiResp.OK {
		return NewTransportError(resp.StatusCode, apiResp.Description, nil)
	}

	return nil
}
