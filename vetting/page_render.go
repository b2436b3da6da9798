package vetting

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"

	"phishguard/scoring"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// PageFindings is what the rendered page revealed.
type PageFindings struct {
	FinalURL        string   `json:"final_url"`
	Title           string   `json:"title,omitempty"`
	PasswordFields  int      `json:"password_fields"`
	Forms           int      `json:"forms"`
	ExternalActions []string `json:"external_actions,omitempty"`
	RenderedBy      string   `json:"rendered_by"`
}

// PageRender loads the page and looks for credential forms. A plain HTTP
// fetch runs first; headless Chrome then renders the page unless
// SkipBrowser is set, so script-built forms are seen too.
type PageRender struct {
	Client      *http.Client
	SkipBrowser bool
	ChromePath  string
}

func (s *PageRender) Name() string { return scoring.SourcePageRender }

func (s *PageRender) Analyze(ctx context.Context, a Artifact) (scoring.Signal, error) {
	u, ok := ParseHTTPURL(a.URL)
	if !ok {
		return scoring.Signal{}, ErrNotApplicable
	}

	doc, finalURL, httpErr := s.fetch(ctx, u.String())
	renderedBy := "http"
	if !s.SkipBrowser {
		if rendered, loc, err := s.render(ctx, u.String()); err == nil {
			doc, finalURL, renderedBy = rendered, loc, "chromedp"
		} else {
			log.Printf("[PageRender] chromedp failed for %s: %v", u, err)
		}
	}
	if doc == "" {
		if httpErr == nil {
			httpErr = fmt.Errorf("page-render: empty document")
		}
		return scoring.Signal{}, httpErr
	}

	base, err := url.Parse(finalURL)
	if err != nil {
		base = u
	}
	f := InspectPage(doc, base)
	f.RenderedBy = renderedBy

	sig := scoring.Signal{Source: s.Name(), Confidence: 0.8, Details: f}
	if f.PasswordFields > 0 {
		sig.Score += 0.5
		sig.Factors = append(sig.Factors, "Page asks for a password")
	}
	if len(f.ExternalActions) > 0 {
		sig.Score += 0.5
		sig.ThreatTypes = []string{"CREDENTIAL_HARVESTING"}
		for _, host := range f.ExternalActions {
			sig.Factors = append(sig.Factors, fmt.Sprintf("Form submits credentials to another domain (%s)", host))
		}
	}
	return sig, nil
}

func (s *PageRender) fetch(ctx context.Context, target string) (string, string, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("page-render: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", "", &StatusError{Service: "page-render", Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", err
	}
	return string(body), resp.Request.URL.String(), nil
}

func (s *PageRender) render(ctx context.Context, target string) (string, string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.UserAgent(browserUserAgent),
	)
	if s.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(s.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var doc, loc string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body"),
		chromedp.Sleep(time.Second),
		chromedp.Location(&loc),
		chromedp.OuterHTML("html", &doc),
	)
	if err != nil {
		return "", "", err
	}
	return doc, loc, nil
}

// InspectPage counts password inputs and forms whose action leaves the page's site.
func InspectPage(doc string, base *url.URL) PageFindings {
	f := PageFindings{FinalURL: base.String()}
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return f
	}
	site := RegistrableDomain(base.Hostname())
	if site == "" {
		site = strings.ToLower(base.Hostname())
	}
	seen := map[string]bool{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && f.Title == "" {
					f.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "input":
				if strings.EqualFold(attr(n, "type"), "password") {
					f.PasswordFields++
				}
			case "form":
				f.Forms++
				if action := strings.TrimSpace(attr(n, "action")); action != "" {
					if ref, err := base.Parse(action); err == nil && ref.Hostname() != "" {
						host := strings.ToLower(ref.Hostname())
						target := RegistrableDomain(host)
						if target == "" {
							target = host
						}
						if target != site && !seen[host] {
							seen[host] = true
							f.ExternalActions = append(f.ExternalActions, host)
						}
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return f
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
