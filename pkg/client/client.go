package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battcap/pkg/capacity"
)

// Client is a struct for communicating with a running recorder
type Client struct {
	addr       string
	httpClient *http.Client

	// streamClient has no timeout, for long-lived event streams.
	streamClient *http.Client
}

// NewClient is a constructor for creating a new Client. addr is host:port.
func NewClient(addr string) *Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, address)
			if err != nil {
				if errors.Is(err, syscall.ECONNREFUSED) {
					return nil, ErrRecorderNotRunning
				}
				logrus.Errorf("failed to connect to %s: %v", address, err)
				return nil, err
			}
			return conn, nil
		},
	}
	return &Client{
		addr: addr,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		streamClient: &http.Client{
			Transport: transport,
		},
	}
}

// Send is a method for sending a request to the recorder
func (c *Client) Send(method string, path string, data string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"data":   data,
		"addr":   c.addr,
	}).Debug("sending request")

	var resp *http.Response
	var err error
	url := "http://" + c.addr + path

	switch method {
	case "GET":
		resp, err = c.httpClient.Get(url)
	case "POST":
		resp, err = c.httpClient.Post(url, "application/octet-stream", strings.NewReader(data))
	default:
		return "", fmt.Errorf("unknown method: %s", method)
	}

	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	body := string(b)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrNotFound, body)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return "", capacity.ErrNoValidPoints
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("got %d: %s", resp.StatusCode, body)
	}

	return body, nil
}

// Get is a method for sending a GET request to the recorder
func (c *Client) Get(path string) (string, error) {
	return c.Send("GET", path, "")
}

// Post is a method for sending a POST request to the recorder
func (c *Client) Post(path string, data string) (string, error) {
	return c.Send("POST", path, data)
}
