package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fleetpulse/internal/models"
)

// Client is a thin wrapper over the FleetPulse REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) ListAlerts(status, tenant string) ([]models.Alert, error) {
	url := c.baseURL + "/api/v1/alerts"
	sep := "?"
	if status != "" {
		url += sep + "status=" + status
		sep = "&"
	}
	if tenant != "" {
		url += sep + "tenant=" + tenant
	}

	var alerts []models.Alert
	if err := c.get(url, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (c *Client) Acknowledge(alertID uint, actor, notes string) (*models.Alert, error) {
	url := fmt.Sprintf("%s/api/v1/alerts/%d/acknowledge", c.baseURL, alertID)
	body := map[string]string{"actor": actor, "notes": notes}

	var alert models.Alert
	if err := c.post(url, body, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (c *Client) Dashboard() (map[string]interface{}, error) {
	var dashboard map[string]interface{}
	if err := c.get(c.baseURL+"/api/v1/dashboard", &dashboard); err != nil {
		return nil, err
	}
	return dashboard, nil
}

func (c *Client) ListProjects(tenant string) ([]models.Project, error) {
	url := c.baseURL + "/api/v1/projects"
	if tenant != "" {
		url += "?tenant=" + tenant
	}

	var projects []models.Project
	if err := c.get(url, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) CreateProject(tenantID uint, name, description string, milestones []string, actor string) (*models.Project, error) {
	body := map[string]interface{}{
		"tenant_id":   tenantID,
		"name":        name,
		"description": description,
		"milestones":  milestones,
		"actor":       actor,
	}

	var project models.Project
	if err := c.post(c.baseURL+"/api/v1/projects", body, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) UpdateProject(projectID uint, status string, progress *int, note, actor string) (*models.Project, error) {
	url := fmt.Sprintf("%s/api/v1/projects/%d", c.baseURL, projectID)
	body := map[string]interface{}{"note": note, "actor": actor}
	if status != "" {
		body["status"] = status
	}
	if progress != nil {
		body["progress"] = *progress
	}

	var project models.Project
	if err := c.put(url, body, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) get(url string, out interface{}) error {
	resp, err := c.http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *Client) post(url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *Client) put(url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func decode(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
