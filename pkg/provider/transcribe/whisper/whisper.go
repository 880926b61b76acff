// Package whisper provides a [transcribe.Transcriber] backed by a running
// whisper.cpp server (the whisper-server binary), which exposes
// POST /inference.
//
//	c, err := whisper.New("http://localhost:8080", whisper.WithLanguage("de"))
//	text, err := c.Transcribe(ctx, wav, "")
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/glossa/pkg/knowledge"
	"github.com/MrWong99/glossa/pkg/provider/transcribe"
)

const (
	defaultLanguage   = "de"
	defaultSampleRate = 16000
	defaultTimeout    = 120 * time.Second

	// maxErrorBody bounds how much of a failed response is kept for the
	// error message.
	maxErrorBody = 512
)

var _ transcribe.Transcriber = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel sets the model identifier forwarded to the server. When empty
// the server uses whichever model it was started with.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithLanguage sets the language used when a call passes none.
// Defaults to "de".
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithSampleRate sets the sample rate assumed for raw PCM input that has no
// WAV header. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(c *Client) { c.sampleRate = rate }
}

// WithHTTPClient replaces the HTTP client. The default has a 120 s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client talks to a whisper.cpp server. It is safe for concurrent use.
type Client struct {
	serverURL  string
	model      string
	language   string
	sampleRate int
	httpClient *http.Client
}

// New creates a Client for the server at serverURL
// (e.g. "http://localhost:8080").
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: server URL must not be empty")
	}
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Transcribe uploads audio to /inference and returns the trimmed text.
// Input without a RIFF header is treated as 16-bit mono PCM and wrapped in
// a WAV container first.
func (c *Client) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("whisper: %w: empty audio", knowledge.ErrTranscriptionFailed)
	}
	if language == "" {
		language = c.language
	}
	if !isWAV(audio) {
		audio = encodeWAV(audio, c.sampleRate, 1)
	}

	body, contentType, err := c.form(audio, language)
	if err != nil {
		return "", fmt.Errorf("whisper: %w: %w", knowledge.ErrTranscriptionFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/inference", body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: %w: %w", knowledge.ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("whisper: %w: server returned HTTP %d: %s",
			knowledge.ErrTranscriptionFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: %w: parse response: %w", knowledge.ErrTranscriptionFailed, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("whisper: %w: %s", knowledge.ErrTranscriptionFailed, result.Error)
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", fmt.Errorf("whisper: %w: no speech recognised", knowledge.ErrTranscriptionFailed)
	}
	return text, nil
}

// form builds the multipart upload.
func (c *Client) form(wav []byte, language string) (io.Reader, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, "", fmt.Errorf("write wav data: %w", err)
	}
	fields := [][2]string{
		{"response_format", "json"},
		{"temperature", "0.0"},
		{"language", language},
		{"model", c.model},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

func isWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

// encodeWAV wraps 16-bit signed little-endian PCM in a RIFF/WAV container.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bps = 16
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bps)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)
	return buf
}
