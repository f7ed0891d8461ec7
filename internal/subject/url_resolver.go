package subject

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"campaign-server/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	maxPageBytes = 2 << 20
	maxRedirects = 5
)

// errHostNotAllowed - хост страницы не входит в список разрешенных платформ.
var errHostNotAllowed = errors.New("host is not an allowed platform")

// URLResolver извлекает название и описание события со страницы по OpenGraph-тегам,
// с откатом на <title> и meta description. Загружаются только страницы разрешенных хостов,
// в том числе после редиректов.
type URLResolver struct {
	client    *http.Client
	hosts     []string
	userAgent string
	logger    *zap.Logger
}

// NewURLResolver создает resolver страниц. allowedHosts - домены платформ; домен разрешает
// и свои поддомены. Пустой список запрещает любые URL.
func NewURLResolver(timeout time.Duration, allowedHosts []string, logger *zap.Logger) *URLResolver {
	r := &URLResolver{
		userAgent: "campaign-server/1.0 (+subject-resolver)",
		logger:    logger.Named("URLResolver"),
	}
	for _, h := range allowedHosts {
		h = strings.Trim(strings.ToLower(strings.TrimSpace(h)), ".")
		if h != "" {
			r.hosts = append(r.hosts, h)
		}
	}
	r.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if !r.Allowed(req.URL) {
				return fmt.Errorf("%w: redirect to %s", errHostNotAllowed, req.URL.Hostname())
			}
			return nil
		},
	}
	return r
}

// Allowed проверяет схему и хост URL по списку платформ.
func (r *URLResolver) Allowed(u *url.URL) bool {
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return false
	}
	for _, allowed := range r.hosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func (r *URLResolver) Resolve(ctx context.Context, ref string) (domain.Subject, error) {
	u, err := url.Parse(ref)
	if err != nil || !r.Allowed(u) {
		r.logger.Warn("Rejected subject URL outside allowed platforms", zap.String("url", ref))
		return domain.Subject{}, fmt.Errorf("%w: %s is not an allowed platform url", ErrNotFound, ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return domain.Subject{}, fmt.Errorf("build request for %s: %w", ref, err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, errHostNotAllowed) {
			r.logger.Warn("Subject page redirected outside allowed platforms", zap.String("url", ref), zap.Error(err))
			return domain.Subject{}, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		r.logger.Warn("Failed to fetch subject page", zap.String("url", ref), zap.Error(err))
		return domain.Subject{}, fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return domain.Subject{}, fmt.Errorf("%w: %s returned %d", ErrNotFound, ref, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Subject{}, fmt.Errorf("fetch %s: unexpected status %d", ref, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return domain.Subject{}, fmt.Errorf("parse %s: %w", ref, err)
	}

	subj := ExtractSubject(doc)
	subj.Ref = ref
	subj.SourceURL = ref
	if subj.Name == "" && subj.Description == "" {
		return domain.Subject{}, fmt.Errorf("%w: %s", ErrEmptyContent, ref)
	}
	r.logger.Debug("Subject resolved from page", zap.String("url", ref), zap.String("name", subj.Name))
	return subj, nil
}

// ExtractSubject читает поля субъекта из HTML-документа.
func ExtractSubject(doc *goquery.Document) domain.Subject {
	meta := func(selectors ...string) string {
		for _, sel := range selectors {
			if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
				return collapseSpace(v)
			}
		}
		return ""
	}

	name := meta(`meta[property="og:title"]`, `meta[name="twitter:title"]`)
	if name == "" {
		name = collapseSpace(doc.Find("title").First().Text())
	}
	if name == "" {
		name = collapseSpace(doc.Find("h1").First().Text())
	}

	return domain.Subject{
		Name:        name,
		Description: meta(`meta[property="og:description"]`, `meta[name="description"]`, `meta[name="twitter:description"]`),
		Venue:       meta(`meta[property="event:location"]`, `meta[property="og:site_name"]`),
		StartsAt:    meta(`meta[property="event:start_time"]`),
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
