package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AnTengye/contractwatch/config"
	"github.com/AnTengye/contractwatch/pkg/logger"
	"github.com/AnTengye/contractwatch/prompt"
)

var (
	// ErrInvalidChecksum is returned for callbacks whose checksum does not verify
	ErrInvalidChecksum = errors.New("invalid callback checksum")
	// ErrUnknownTask is returned for callbacks no running OCR job is waiting for
	ErrUnknownTask = errors.New("no OCR job waiting for task")
)

// Task states reported by MinerU
const (
	MineruStateDone   = "done"
	MineruStateFailed = "failed"
)

// ObjectStorage is where source PDFs are put so MinerU can fetch them
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	GetPresignedURL(ctx context.Context, objectName string) (string, error)
}

// MineruService runs OCR through the MinerU document extraction API
type MineruService struct {
	config     *config.MineruConfig
	httpClient *http.Client
	storage    ObjectStorage

	mu      sync.Mutex
	waiters map[string]chan MineruCallbackContent // keyed by data_id
}

// MineruTaskRequest represents the request to create an extraction task
type MineruTaskRequest struct {
	URL          string `json:"url"`
	ModelVersion string `json:"model_version"`
	Callback     string `json:"callback,omitempty"`
	Seed         string `json:"seed,omitempty"`
	DataID       string `json:"data_id,omitempty"`
}

// MineruTaskResponse represents the response from task creation
type MineruTaskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

// MineruTaskStatusResponse represents the task status query response
type MineruTaskStatusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	TraceID string `json:"trace_id"`
	Data    struct {
		TaskID          string `json:"task_id"`
		DataID          string `json:"data_id"`
		State           string `json:"state"` // pending, running, done, failed, converting
		FullZipURL      string `json:"full_zip_url,omitempty"`
		ErrorMsg        string `json:"err_msg,omitempty"`
		ExtractProgress struct {
			ExtractedPages int `json:"extracted_pages"`
			TotalPages     int `json:"total_pages"`
		} `json:"extract_progress,omitempty"`
	} `json:"data"`
}

// MineruCallbackPayload represents the callback payload from MinerU
type MineruCallbackPayload struct {
	Checksum string `json:"checksum"`
	Content  string `json:"content"`
}

// MineruCallbackContent is the JSON document carried in MineruCallbackPayload.Content
type MineruCallbackContent struct {
	TaskID     string `json:"task_id"`
	DataID     string `json:"data_id"`
	State      string `json:"state"`
	FullZipURL string `json:"full_zip_url,omitempty"`
	ErrorMsg   string `json:"err_msg,omitempty"`
}

// NewMineruService creates a MinerU client. storage may be nil when only the task API is used.
func NewMineruService(cfg *config.MineruConfig, storage ObjectStorage) *MineruService {
	return &MineruService{
		config:  cfg,
		storage: storage,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		waiters: make(map[string]chan MineruCallbackContent),
	}
}

// ExtractText uploads the PDF, runs a MinerU task on it and returns the recognized text
func (s *MineruService) ExtractText(ctx context.Context, contractID, dataURI string) (string, error) {
	if s.storage == nil {
		return "", errors.New("mineru: no object storage configured")
	}
	mimeType, data, err := prompt.ParseDataURI(dataURI)
	if err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("ocr/%s/source.pdf", contractID)
	if err := s.storage.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		return "", err
	}
	pdfURL, err := s.storage.GetPresignedURL(ctx, objectName)
	if err != nil {
		return "", err
	}

	callbacks := s.register(contractID)
	defer s.unregister(contractID)

	resp, err := s.CreateTask(ctx, pdfURL, contractID)
	if err != nil {
		return "", err
	}
	logger.Info(ctx, "mineru task created", "task_id", resp.Data.TaskID)

	zipURL, err := s.waitForResult(ctx, resp.Data.TaskID, callbacks)
	if err != nil {
		return "", err
	}
	return s.FetchZipText(ctx, zipURL)
}

// waitForResult polls the task until it finishes, returning early on a callback
func (s *MineruService) waitForResult(ctx context.Context, taskID string, callbacks <-chan MineruCallbackContent) (string, error) {
	interval := s.config.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < s.config.MaxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case cb := <-callbacks:
			switch {
			case cb.State == MineruStateFailed:
				return "", fmt.Errorf("mineru task failed: %s", cb.ErrorMsg)
			case cb.State == MineruStateDone && cb.FullZipURL != "":
				return cb.FullZipURL, nil
			}
			// Callback without a result URL: fall through to the next poll
		case <-ticker.C:
			status, err := s.GetTaskStatus(ctx, taskID)
			if err != nil {
				logger.Warn(ctx, "mineru poll failed", "attempt", i+1, "error", err)
				continue
			}
			switch status.Data.State {
			case MineruStateDone:
				if status.Data.FullZipURL == "" {
					return "", errors.New("mineru task finished without a result archive")
				}
				return status.Data.FullZipURL, nil
			case MineruStateFailed:
				return "", fmt.Errorf("mineru task failed: %s", status.Data.ErrorMsg)
			case "running":
				logger.Debug(ctx, "mineru progress",
					"extracted_pages", status.Data.ExtractProgress.ExtractedPages,
					"total_pages", status.Data.ExtractProgress.TotalPages)
			}
		}
	}
	return "", fmt.Errorf("mineru task %s: polling timeout", taskID)
}

func (s *MineruService) register(dataID string) <-chan MineruCallbackContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan MineruCallbackContent, 1)
	s.waiters[dataID] = ch
	return ch
}

func (s *MineruService) unregister(dataID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, dataID)
}

// HandleCallback verifies a callback and hands it to the OCR job waiting for it
func (s *MineruService) HandleCallback(payload MineruCallbackPayload) (*MineruCallbackContent, error) {
	if s.config.Seed != "" && !s.VerifyCallback(payload.Checksum, payload.Content, s.config.UID) {
		return nil, ErrInvalidChecksum
	}

	var content MineruCallbackContent
	if err := json.Unmarshal([]byte(payload.Content), &content); err != nil {
		return nil, fmt.Errorf("invalid callback content: %w", err)
	}

	s.mu.Lock()
	ch, ok := s.waiters[content.DataID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, content.DataID)
	}

	select {
	case ch <- content:
	default:
		// A callback for this job is already pending
	}
	return &content, nil
}

// CreateTask creates a new extraction task
func (s *MineruService) CreateTask(ctx context.Context, pdfURL, dataID string) (*MineruTaskResponse, error) {
	reqBody := MineruTaskRequest{
		URL:          pdfURL,
		ModelVersion: s.config.ModelVersion,
		DataID:       dataID,
	}

	if s.config.CallbackURL != "" {
		reqBody.Callback = s.config.CallbackURL
		reqBody.Seed = s.config.Seed
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/extract/task", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	var result MineruTaskResponse
	if err := s.do(req, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("MinerU API error: %s", result.Message)
	}

	return &result, nil
}

// GetTaskStatus queries the status of a task
func (s *MineruService) GetTaskStatus(ctx context.Context, taskID string) (*MineruTaskStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/extract/task/%s", s.config.APIURL, taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Accept", "*/*")

	var result MineruTaskStatusResponse
	if err := s.do(req, &result); err != nil {
		return nil, err
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("MinerU API error: %s", result.Message)
	}

	return &result, nil
}

func (s *MineruService) do(req *http.Request, out any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}
	return nil
}

// VerifyCallback verifies the callback checksum
func (s *MineruService) VerifyCallback(checksum, content string, uid string) bool {
	// Checksum = SHA256(uid + seed + content)
	data := uid + s.config.Seed + content
	hash := sha256.Sum256([]byte(data))
	expected := hex.EncodeToString(hash[:])
	return checksum == expected
}

// FetchZipText downloads the result archive and returns the document text.
// full.md is preferred; otherwise the text blocks of content_list.json are joined.
func (s *MineruService) FetchZipText(ctx context.Context, zipURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, zipURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download ZIP: %w", err)
	}
	defer resp.Body.Close()

	zipData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ZIP: %w", err)
	}

	zipReader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return "", fmt.Errorf("failed to open ZIP: %w", err)
	}

	if content, ok := readZipFile(zipReader, "full.md"); ok {
		return string(content), nil
	}

	if content, ok := readZipFile(zipReader, "content_list.json"); ok {
		var blocks []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(content, &blocks); err != nil {
			return "", fmt.Errorf("failed to parse content_list.json: %w", err)
		}
		var parts []string
		for _, b := range blocks {
			if strings.TrimSpace(b.Text) != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n\n"), nil
	}

	return "", fmt.Errorf("no document text found in ZIP")
}

func readZipFile(r *zip.Reader, suffix string) ([]byte, bool) {
	for _, file := range r.File {
		if !strings.HasSuffix(file.Name, suffix) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		return content, true
	}
	return nil, false
}
