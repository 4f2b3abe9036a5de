package briefing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iWorld-y/trend_briefing/app/briefing/pkg/model"
)

// ErrInvalidInput 输入结构不合法，属于调用方错误
var ErrInvalidInput = errors.New("invalid briefing input")

const (
	idPrefix = "briefing_"
	idLayout = "20060102_150405"
)

// Input 组装所需的全部数据
type Input struct {
	Analysis          model.TrendAnalysis
	Synthesis         model.SynthesisResults
	ScrapedPostsCount int
	// PreviousID 上一份简报 id，新 id 必须严格大于它
	PreviousID string
}

// Assembler 纯组装，无 I/O
type Assembler struct {
	now func() time.Time
}

// NewAssembler 创建组装器
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// Assemble 生成 DailyBriefing，返回值与输入不共享切片
func (a *Assembler) Assemble(in Input) (*model.DailyBriefing, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	ts := a.now().UTC().Truncate(time.Second)
	if in.PreviousID != "" {
		prev, err := ParseID(in.PreviousID)
		if err != nil {
			return nil, fmt.Errorf("%w: previous id: %v", ErrInvalidInput, err)
		}
		if !ts.After(prev) {
			ts = prev.Add(time.Second)
		}
	}

	b := &model.DailyBriefing{
		BriefingID:        FormatID(ts),
		Date:              ts,
		ScrapedPostsCount: in.ScrapedPostsCount,
		TrendAnalysis:     in.Analysis,
		SynthesisResults:  in.Synthesis,
	}
	return b.Clone(), nil
}

// FormatID briefing_<UTC 秒级时间戳>
func FormatID(t time.Time) string {
	return idPrefix + t.UTC().Format(idLayout)
}

// ParseID 解析 briefing id 中的时间
func ParseID(id string) (time.Time, error) {
	if !strings.HasPrefix(id, idPrefix) {
		return time.Time{}, fmt.Errorf("malformed briefing id %q", id)
	}
	return time.ParseInLocation(idLayout, strings.TrimPrefix(id, idPrefix), time.UTC)
}

func validate(in Input) error {
	if strings.TrimSpace(in.Synthesis.ExecutiveSummary) == "" {
		return fmt.Errorf("%w: executive summary is required", ErrInvalidInput)
	}
	if in.ScrapedPostsCount < 0 {
		return fmt.Errorf("%w: negative scraped posts count", ErrInvalidInput)
	}

	ids := make(map[string]bool, len(in.Analysis.Trends))
	for i, t := range in.Analysis.Trends {
		if t.ID == "" || t.Title == "" {
			return fmt.Errorf("%w: trend %d missing id or title", ErrInvalidInput, i)
		}
		if ids[t.ID] {
			return fmt.Errorf("%w: duplicate trend id %s", ErrInvalidInput, t.ID)
		}
		ids[t.ID] = true
	}

	for _, p := range in.Analysis.PriorityTrends {
		if !ids[p.TrendID] {
			return fmt.Errorf("%w: priority trend references unknown trend %s", ErrInvalidInput, p.TrendID)
		}
	}
	for _, o := range in.Analysis.MarketOpportunities {
		if !ids[o.TrendID] {
			return fmt.Errorf("%w: opportunity references unknown trend %s", ErrInvalidInput, o.TrendID)
		}
	}
	for _, r := range in.Analysis.RiskFactors {
		if !ids[r.TrendID] {
			return fmt.Errorf("%w: risk references unknown trend %s", ErrInvalidInput, r.TrendID)
		}
	}
	return nil
}
