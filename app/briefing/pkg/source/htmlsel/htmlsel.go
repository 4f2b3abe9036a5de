package htmlsel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source"
)

// 选择器 key
const (
	SelPosts   = "posts"
	SelTitle   = "title"
	SelContent = "content"
	SelDate    = "date"
	SelAuthor  = "author"
	SelLink    = "link"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
	"2006.01.02.",
	"2006.01.02",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// Fetcher 基于 CSS 选择器的页面采集策略，适用于 Naver 这类列表页
type Fetcher struct {
	client *http.Client
	now    func() time.Time
}

var _ source.Fetcher = (*Fetcher)(nil)

// New client 为空时使用 20s 超时的默认客户端
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{client: client, now: time.Now}
}

// Strategy 注册名
func (f *Fetcher) Strategy() string {
	return "html"
}

// Fetch 依次抓取每个 URL；部分 URL 失败或未命中只记录日志，全部 URL 都没有产出才返回错误
func (f *Fetcher) Fetch(ctx context.Context, d source.Descriptor) ([]model.ScrapedPost, error) {
	if len(d.URLs) == 0 {
		return nil, fmt.Errorf("no urls provided for source %s", d.Name)
	}
	if d.Selectors[SelPosts] == "" || d.Selectors[SelTitle] == "" {
		return nil, fmt.Errorf("source %s: posts and title selectors are required", d.Name)
	}

	var limiter *rate.Limiter
	if d.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(d.RatePerSecond), 1)
	}

	var posts []model.ScrapedPost
	var errs []error
	for _, pageURL := range d.URLs {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		doc, err := f.fetchDocument(ctx, pageURL)
		if err != nil {
			logger.Log.WithField("source", d.Name).Warnf("页面抓取失败 [%s]: %v", pageURL, err)
			errs = append(errs, err)
			continue
		}
		found := f.extract(doc, pageURL, d)
		if len(found) == 0 {
			// 页面正常返回但选择器没命中，多半是页面改版
			logger.Log.WithField("source", d.Name).Warnf("选择器未匹配到内容 [%s]", pageURL)
			errs = append(errs, fmt.Errorf("%s: selectors matched nothing", pageURL))
			continue
		}
		posts = append(posts, found...)
		if d.MaxPosts > 0 && len(posts) >= d.MaxPosts {
			posts = posts[:d.MaxPosts]
			break
		}
	}

	if len(posts) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return posts, nil
}

func (f *Fetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	res, err := source.Get(ctx, f.client, pageURL)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func (f *Fetcher) extract(doc *goquery.Document, pageURL string, d source.Descriptor) []model.ScrapedPost {
	base, _ := url.Parse(pageURL)
	fetchedAt := f.now()

	var posts []model.ScrapedPost
	doc.Find(d.Selectors[SelPosts]).Each(func(_ int, sel *goquery.Selection) {
		titleSel := sel.Find(d.Selectors[SelTitle]).First()
		title := cleanText(titleSel.Text())
		if title == "" {
			return
		}

		link, _ := titleSel.Attr("href")
		if s := d.Selectors[SelLink]; s != "" {
			if href, ok := sel.Find(s).First().Attr("href"); ok {
				link = href
			}
		}

		published := fetchedAt
		if s := d.Selectors[SelDate]; s != "" {
			if t, ok := parseDate(cleanText(sel.Find(s).First().Text())); ok {
				published = t
			}
		}

		posts = append(posts, model.ScrapedPost{
			Title:       title,
			Body:        cleanText(textOf(sel, d.Selectors[SelContent])),
			Author:      cleanText(textOf(sel, d.Selectors[SelAuthor])),
			PublishedAt: published,
			SourceName:  d.Name,
			URL:         resolve(base, link),
		})
	})
	return posts
}

func textOf(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return sel.Find(selector).First().Text()
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
