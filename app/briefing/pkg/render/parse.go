package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Header 从 Markdown 产物读回的元信息
type Header struct {
	BriefingID    string
	Date          time.Time
	PostsAnalyzed int
	TrendsCount   int
}

// ParseMarkdownHeader 元信息只取标题下的第一个段落，趋势数只取 "## Trend Analysis" 下的第一个段落，
// 正文里出现同名 "Label: value" 不会覆盖
func ParseMarkdownHeader(src []byte) (*Header, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var fields, trendFields map[string]string
	section := ""
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Heading:
			if n.Level == 2 {
				section = strings.TrimSpace(inlineText(n, src))
			}
		case *ast.Paragraph:
			switch {
			case fields == nil && section == "":
				fields = labels(n, src)
			case trendFields == nil && section == "Trend Analysis":
				trendFields = labels(n, src)
			}
		}
	}

	h := &Header{BriefingID: fields["Briefing ID"]}
	if h.BriefingID == "" {
		return nil, fmt.Errorf("briefing id not found in markdown")
	}
	if v, ok := fields["Date"]; ok {
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", v, time.UTC); err == nil {
			h.Date = t
		}
	}
	if v, ok := fields["Posts Analyzed"]; ok {
		h.PostsAnalyzed, _ = strconv.Atoi(v)
	}
	v, ok := trendFields["Total Trends Identified"]
	if !ok {
		return nil, fmt.Errorf("trend count not found in markdown")
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid trend count %q: %w", v, err)
	}
	h.TrendsCount = n
	return h, nil
}

// labels 解析段落中逐行的 "Label: value"，同名取第一个
func labels(n ast.Node, src []byte) map[string]string {
	fields := map[string]string{}
	for _, line := range strings.Split(inlineText(n, src), "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label = strings.TrimSpace(label)
		if _, seen := fields[label]; !seen {
			fields[label] = strings.TrimSpace(value)
		}
	}
	return fields
}

// inlineText 拼接段落下的文本节点，换行处插入 \n
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
