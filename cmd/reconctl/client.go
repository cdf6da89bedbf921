package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type clientOptions struct {
	Server string
	Token  string
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(opts clientOptions) *client {
	return &client{
		base:  strings.TrimRight(opts.Server, "/"),
		token: opts.Token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

// printJSON performs the request and pretty-prints the response body.
// Non-2xx responses become errors carrying the server's detail.
func (c *client) printJSON(ctx context.Context, method, path string, body []byte, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &e) == nil && e.Detail != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Detail)
		}
		return fmt.Errorf("%s %s: %d", method, path, resp.StatusCode)
	}

	if len(data) == 0 {
		return nil
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		_, err = os.Stdout.Write(data)
		return err
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(os.Stdout)
	return err
}

func signatureHeader(secret string, body []byte) map[string]string {
	if secret == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return map[string]string{"X-Soundbox-Signature": hex.EncodeToString(mac.Sum(nil))}
}
