package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/logger"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/source"
)

// Fetcher RSS/Atom 采集策略，也用于 YouTube 频道的 videos.xml
type Fetcher struct {
	client *http.Client
	now    func() time.Time
}

var _ source.Fetcher = (*Fetcher)(nil)

// New 创建 RSS 采集器
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{client: client, now: time.Now}
}

// Strategy 注册名
func (f *Fetcher) Strategy() string {
	return "rss"
}

// Fetch 解析每个 feed，跳过失败的 feed
func (f *Fetcher) Fetch(ctx context.Context, d source.Descriptor) ([]model.ScrapedPost, error) {
	if len(d.URLs) == 0 {
		return nil, fmt.Errorf("no feed urls provided for source %s", d.Name)
	}

	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = source.UserAgent

	var posts []model.ScrapedPost
	var errs []error
	for _, feedURL := range d.URLs {
		feed, err := parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			logger.Log.WithField("source", d.Name).Warnf("feed 解析失败 [%s]: %v", feedURL, err)
			errs = append(errs, fmt.Errorf("%s: %w", feedURL, err))
			continue
		}
		for _, item := range feed.Items {
			posts = append(posts, f.toPost(item, d.Name))
			if d.MaxPosts > 0 && len(posts) >= d.MaxPosts {
				return posts, nil
			}
		}
	}

	if len(posts) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return posts, nil
}

func (f *Fetcher) toPost(item *gofeed.Item, sourceName string) model.ScrapedPost {
	body := item.Content
	if body == "" {
		body = item.Description
	}
	if body == "" {
		body = mediaDescription(item)
	}

	published := f.now()
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	var author string
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0].Name
	}

	return model.ScrapedPost{
		Title:       strings.TrimSpace(item.Title),
		Body:        stripHTML(body),
		Author:      author,
		PublishedAt: published,
		SourceName:  sourceName,
		URL:         item.Link,
	}
}

// mediaDescription YouTube feed 把简介放在 media:group/media:description
func mediaDescription(item *gofeed.Item) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	for _, group := range media["group"] {
		for _, desc := range group.Children["description"] {
			if desc.Value != "" {
				return desc.Value
			}
		}
	}
	return ""
}

func stripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
