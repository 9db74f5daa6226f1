package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// JobResponse — job из API.
type JobResponse struct {
	ID              string   `json:"id"`
	OrganizationID  string   `json:"organizationId"`
	ConfigurationID string   `json:"configurationId"`
	Status          string   `json:"status"`
	FileName        string   `json:"fileName"`
	ConversionType  string   `json:"conversionType,omitempty"`
	Progress        int      `json:"progress"`
	DownloadURL     string   `json:"downloadUrl,omitempty"`
	Error           string   `json:"error,omitempty"`
	ExecutionLog    []string `json:"executionLog,omitempty"`
	CreatedAt       string   `json:"createdAt"`
	StartedAt       string   `json:"startedAt,omitempty"`
	CompletedAt     string   `json:"completedAt,omitempty"`
}

// ConfigurationResponse — конфигурация из API.
type ConfigurationResponse struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	Name           string          `json:"name"`
	Version        int             `json:"version"`
	Rules          json.RawMessage `json:"rules"`
	OutputFormat   string          `json:"outputFormat"`
	WebhookID      string          `json:"webhookId,omitempty"`
	CallbackURL    string          `json:"callbackUrl,omitempty"`
	CreatedAt      string          `json:"createdAt"`
}

// DeliveryResponse — webhook delivery из API.
type DeliveryResponse struct {
	ID             string `json:"id"`
	WebhookID      string `json:"webhookId,omitempty"`
	JobID          string `json:"jobId"`
	URL            string `json:"url"`
	EventType      string `json:"eventType"`
	Status         string `json:"status"`
	Attempts       int    `json:"attempts"`
	LastAttemptAt  string `json:"lastAttemptAt,omitempty"`
	NextAttemptAt  string `json:"nextAttemptAt,omitempty"`
	ResponseStatus int    `json:"responseStatus,omitempty"`
	Error          string `json:"error,omitempty"`
	PayloadHash    string `json:"payloadHash"`
	CreatedAt      string `json:"createdAt"`
}

// WebhookResponse — webhook-endpoint из API.
type WebhookResponse struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	IsActive       bool   `json:"isActive"`
	LastUsedAt     string `json:"lastUsedAt,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

// --- Request types ---

// CreateJobRequest — создание job. FileData — base64 содержимого файла.
type CreateJobRequest struct {
	OrganizationID  string         `json:"organizationId"`
	ConfigurationID string         `json:"configurationId"`
	FileName        string         `json:"fileName"`
	FileData        string         `json:"fileData"`
	ConversionType  string         `json:"conversionType,omitempty"`
	CallbackURL     string         `json:"callbackUrl,omitempty"`
	Options         map[string]any `json:"options,omitempty"`
}

// CreateConfigurationRequest — создание версии конфигурации.
type CreateConfigurationRequest struct {
	OrganizationID string          `json:"organizationId"`
	Name           string          `json:"name"`
	Rules          json.RawMessage `json:"rules"`
	OutputFormat   string          `json:"outputFormat"`
	WebhookID      string          `json:"webhookId,omitempty"`
	CallbackURL    string          `json:"callbackUrl,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Mutate API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Jobs ---

// CreateJob отправляет файл на трансформацию.
func (c *Client) CreateJob(req CreateJobRequest) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs", req, &job)
	return &job, err
}

// GetJob возвращает job по ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// --- Configurations ---

// CreateConfiguration создаёт новую версию конфигурации.
func (c *Client) CreateConfiguration(req CreateConfigurationRequest) (*ConfigurationResponse, error) {
	var cfg ConfigurationResponse
	err := c.post("/api/v1/configurations", req, &cfg)
	return &cfg, err
}

// GetConfiguration возвращает конфигурацию (version=0 — последняя).
func (c *Client) GetConfiguration(id string, version int) (*ConfigurationResponse, error) {
	path := "/api/v1/configurations/" + id
	if version > 0 {
		path += fmt.Sprintf("?version=%d", version)
	}
	var cfg ConfigurationResponse
	err := c.get(path, &cfg)
	return &cfg, err
}

// --- Webhooks ---

// ListWebhooks возвращает webhook-endpoint'ы организации.
func (c *Client) ListWebhooks(orgID string) ([]WebhookResponse, error) {
	var webhooks []WebhookResponse
	err := c.list("/api/v1/organizations/"+orgID+"/webhooks", nil, &webhooks)
	return webhooks, err
}

// --- Deliveries ---

// ListDeadDeliveries возвращает dead-letter deliveries.
func (c *Client) ListDeadDeliveries(limit int) ([]DeliveryResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var deliveries []DeliveryResponse
	err := c.list("/api/v1/deliveries/dead", params, &deliveries)
	return deliveries, err
}

// GetDelivery возвращает delivery по ID.
func (c *Client) GetDelivery(id string) (*DeliveryResponse, error) {
	var delivery DeliveryResponse
	err := c.get("/api/v1/deliveries/"+id, &delivery)
	return &delivery, err
}

// ReplayDelivery повторно запускает доставку.
func (c *Client) ReplayDelivery(id string) (*DeliveryResponse, error) {
	var delivery DeliveryResponse
	err := c.post("/api/v1/deliveries/"+id+"/replay", nil, &delivery)
	return &delivery, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
