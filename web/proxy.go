// ABOUTME: Read-only page proxy used to embed external pages
// ABOUTME: Passes GET responses through and pins relative links with a base element
package web

import (
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultProxyUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120 Safari/537.36"
	maxProxyHTMLBytes     = 10 << 20
)

var (
	baseTagPattern = regexp.MustCompile(`(?i)<base\s+`)
	headTagPattern = regexp.MustCompile(`(?i)<head([^>]*)>`)
)

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	target := r.URL.Query().Get("url")
	parsed, err := url.Parse(target)
	if target == "" || err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Provide a valid ?url=https://example.com"})
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, parsed.String(), nil)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Provide a valid ?url=https://example.com"})
		return
	}
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		ua = defaultProxyUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("proxy upstream fetch failed", "host", parsed.Host, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Upstream fetch failed"})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := w.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Cache-Control", "public, max-age=300")

	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		header.Set("Content-Type", contentType)
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyHTMLBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Upstream fetch failed"})
		return
	}
	if len(body) > maxProxyHTMLBytes {
		header.Del("Cache-Control")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Upstream page too large"})
		return
	}

	page := injectBase(string(body), parsed.String())
	header.Set("Content-Type", "text/html; charset=utf-8")
	header.Set("Content-Length", strconv.Itoa(len(page)))
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, page)
}

// injectBase adds <base href> after the first <head> unless the page has one.
func injectBase(page, target string) string {
	if baseTagPattern.MatchString(page) {
		return page
	}
	loc := headTagPattern.FindStringIndex(page)
	if loc == nil {
		return page
	}
	return page[:loc[1]] + `<base href="` + html.EscapeString(target) + `">` + page[loc[1]:]
}
