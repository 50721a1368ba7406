package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	prefetch "github.com/bragbook2/brag-book-gallery-sub005"
)

// maxBodyBytes bounds a detail response; detail views are a few hundred KB at most.
const maxBodyBytes = 4 << 20

// DefaultProxyAction is the proxy action name that returns a case detail view.
const DefaultProxyAction = "brag_book_gallery_load_case"

// Common transport errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrRejected         = errors.New("request rejected by proxy")
	ErrEmptyBaseURL     = errors.New("base url cannot be empty")
)

// Direct fetches case details from the backend API with GET {base}/cases/{id}.
type Direct struct {
	baseURL string
	client  *http.Client
}

var _ prefetch.ITransport[string] = (*Direct)(nil)

// NewDirect creates the primary transport. A nil client uses a client with timeout.
func NewDirect(baseURL string, client *http.Client, timeout time.Duration) (*Direct, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrEmptyBaseURL
	}

	return &Direct{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  clientOrDefault(client, timeout),
	}, nil
}

// FetchDetail implements prefetch.ITransport.
func (d *Direct) FetchDetail(ctx context.Context, id string) (prefetch.Payload, error) {
	endpoint := d.baseURL + "/cases/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return prefetch.Payload{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var body directResponse
	if err := do(d.client, req, &body); err != nil {
		return prefetch.Payload{}, err
	}

	return prefetch.Payload{HTML: body.HTML, Title: body.Title, Description: body.Description}, nil
}

type directResponse struct {
	HTML        string `json:"html"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Proxy fetches case details through a same-origin proxy endpoint using a form post
// authenticated with the session nonce.
type Proxy struct {
	endpoint string
	action   string
	nonce    string
	client   *http.Client
}

var _ prefetch.ITransport[string] = (*Proxy)(nil)

// NewProxy creates the fallback transport. An empty action uses DefaultProxyAction.
func NewProxy(endpoint, action, nonce string, client *http.Client, timeout time.Duration) (*Proxy, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, ErrEmptyBaseURL
	}

	if action == "" {
		action = DefaultProxyAction
	}

	return &Proxy{
		endpoint: endpoint,
		action:   action,
		nonce:    nonce,
		client:   clientOrDefault(client, timeout),
	}, nil
}

// FetchDetail implements prefetch.ITransport.
func (p *Proxy) FetchDetail(ctx context.Context, id string) (prefetch.Payload, error) {
	form := url.Values{}
	form.Set("action", p.action)
	form.Set("case_id", id)
	form.Set("nonce", p.nonce)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return prefetch.Payload{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var envelope proxyResponse
	if err := do(p.client, req, &envelope); err != nil {
		return prefetch.Payload{}, err
	}

	if !envelope.Success {
		msg := envelope.Data.Message
		if msg == "" {
			msg = "no message"
		}

		return prefetch.Payload{}, fmt.Errorf("%w: %s", ErrRejected, msg)
	}

	return prefetch.Payload{
		HTML:        envelope.Data.HTML,
		Title:       envelope.Data.SEO.Title,
		Description: envelope.Data.SEO.Description,
	}, nil
}

type proxyResponse struct {
	Success bool `json:"success"`
	Data    struct {
		HTML    string `json:"html"`
		Message string `json:"message"`
		SEO     struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"seoData"`
	} `json:"data"`
}

func do(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func clientOrDefault(client *http.Client, timeout time.Duration) *http.Client {
	if client != nil {
		return client
	}

	return &http.Client{Timeout: timeout}
}
