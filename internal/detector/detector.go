// Package detector wraps the external object-detection service. Frames are
// posted as JPEG multipart to /predict and come back as labeled scored boxes.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"

	"github.com/Capitan-Parrot/site-safety-monitor/internal/models"
	"github.com/samber/lo"
)

// InferenceError classifies a failed inference. Transient failures (the
// service is briefly overloaded or unreachable) are retried per-frame by the
// pipeline; fatal ones halt the stream.
type InferenceError struct {
	Transient bool
	Err       error
}

func (e *InferenceError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("inference failed (%s): %v", kind, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Client вызывает сервис детекции по HTTP
type Client struct {
	URL        string
	HTTPClient *http.Client

	// globalThreshold is applied to every label without an entry in
	// labelThresholds; detections below threshold are dropped before return.
	globalThreshold float64
	labelThresholds map[string]float64
}

// NewClient creates a detection client against baseURL. The thresholds are
// the configured confidence floors (global plus optional per-label).
func NewClient(baseURL string, globalThreshold float64, labelThresholds map[string]float64) *Client {
	return &Client{
		URL:             baseURL,
		HTTPClient:      http.DefaultClient,
		globalThreshold: globalThreshold,
		labelThresholds: labelThresholds,
	}
}

func (c *Client) threshold(label models.Label) float64 {
	if t, ok := c.labelThresholds[string(label)]; ok {
		return t
	}
	return c.globalThreshold
}

// Infer отправляет кадр JPEG байтами на /predict и возвращает детекции.
// The ctx carries the per-frame inference deadline; exceeding it surfaces
// as a transient InferenceError so the pipeline can skip ahead.
func (c *Client) Infer(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, &InferenceError{Err: fmt.Errorf("create form part: %w", err)}
	}
	if _, err := part.Write(frame.Data); err != nil {
		return nil, &InferenceError{Err: fmt.Errorf("write image data: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return nil, &InferenceError{Err: fmt.Errorf("close writer: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/predict", &buf)
	if err != nil {
		return nil, &InferenceError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Deadline, cancellation and network errors may all clear on the
		// next frame.
		return nil, &InferenceError{Transient: true, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("bad status: %s, error: %s", resp.Status, bodyBytes)
		return nil, &InferenceError{Transient: transientStatus(resp.StatusCode), Err: err}
	}

	var detections []models.Detection
	if err := json.NewDecoder(resp.Body).Decode(&detections); err != nil {
		// The service answered 200 with garbage; retrying the same weights
		// will not help.
		return nil, &InferenceError{Err: fmt.Errorf("decode detections: %w", err)}
	}

	return lo.Filter(detections, func(d models.Detection, _ int) bool {
		return d.Score >= c.threshold(d.Label)
	}), nil
}

// transientStatus reports whether the status code indicates resource
// exhaustion rather than a broken model.
func transientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable,
		http.StatusGatewayTimeout, http.StatusInsufficientStorage:
		return true
	}
	return false
}

// IsTransient reports whether err is a transient inference failure.
func IsTransient(err error) bool {
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie.Transient
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
