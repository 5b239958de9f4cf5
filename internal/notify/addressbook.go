package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPAddressBook asks the user directory service for a user's email.
type HTTPAddressBook struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPAddressBook(endpoint string) *HTTPAddressBook {
	return &HTTPAddressBook{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (b *HTTPAddressBook) EmailFor(ctx context.Context, userID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.Endpoint+"/users/"+userID, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user directory status %d for %s", resp.StatusCode, userID)
	}
	var out struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Email == "" {
		return "", fmt.Errorf("user %s has no email on file", userID)
	}
	return out.Email, nil
}
