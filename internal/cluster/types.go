package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Node is a worker (data node) known to the coordinator.
// The integer ID is the node's identity; fragments reference it.
type Node struct {
	Address string `json:"data_node_address" yaml:"data_node_address"`
	ID      int    `json:"data_node_id" yaml:"data_node_id"`
}

// URL returns the base URL commands are posted to.
func (n Node) URL() string {
	return BaseURL(n.Address)
}

// BaseURL prefixes a bare host:port address with http://.
// Addresses that already carry a scheme are returned unchanged.
func BaseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	return "http://" + addr
}

// HostPort strips a scheme and trailing slash so node addresses can be
// compared regardless of how a caller spelled them.
func HostPort(addr string) string {
	if i := strings.Index(addr, "//"); i >= 0 {
		addr = addr[i+2:]
	}
	return strings.TrimRight(addr, "/")
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

func PostJSON(ctx context.Context, url string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Client posts named commands to data nodes. Data nodes recognise a
// command by the single top-level key of the request body, so every
// payload travels wrapped as {"<name>": payload}.
type Client struct{}

// Send posts the named command to the node at addr and decodes the reply
// into out when out is non-nil.
func (Client) Send(ctx context.Context, addr, name string, payload any, out any) error {
	envelope := map[string]any{name: payload}
	if err := PostJSON(ctx, BaseURL(addr), envelope, out); err != nil {
		return fmt.Errorf("send %s to %s: %w", name, addr, err)
	}
	return nil
}
