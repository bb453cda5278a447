// Package prompt assembles LLM prompts from retrieved passages: task-specific
// Korean instruction templates, reference-tagged context blocks, and a rune
// budget that drops whole passages from the bottom of the ranking.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ainova/newsrag/internal/domain"
)

// System prompts per task.
const (
	systemAnswer = "당신은 뉴스 데이터 기반 질의응답 AI 비서입니다. 제공된 뉴스 기사 정보를 바탕으로 사용자 질문에 정확하게 답변해 주세요. " +
		"제공된 뉴스 정보에 없는 내용은 '제공된 뉴스에서 관련 정보를 찾을 수 없습니다'라고 답변하세요. 사실과 다른 내용을 생성하거나 추측하지 마세요."
	systemSummarize = "당신은 뉴스 분석 전문가입니다. 제공된 여러 뉴스 기사를 종합하여 핵심 내용을 간결하고 명확하게 요약해 주세요."
	systemTimeline  = "당신은 뉴스 기반 타임라인 생성 전문가입니다. 제공된 뉴스 기사들을 시간 순서대로 정렬하여 사건의 흐름을 타임라인 형식으로 정리해 주세요."
	systemReport    = "당신은 뉴스 분석 리포트 작성 전문가입니다. 제공된 뉴스 기사들을 종합 분석하여 배경, 현황, 쟁점, 전망을 갖춘 리포트를 작성해 주세요."
)

// citationRule tells the model how to mark sources. The marker format is part
// of the wire contract with the citation resolver.
const citationRule = "답변에서 근거로 사용한 기사는 [기사 ref번호] 형식으로 표시해주세요 (예: [기사 ref1])."

// Config bounds prompt size.
type Config struct {
	ContextBudget int // max runes across all passage blocks
	MaxPassages   int // max passages regardless of budget
}

// Builder assembles prompts from retrieval results.
type Builder struct {
	cfg Config
}

// New creates a prompt builder. Zero config fields fall back to defaults.
func New(cfg Config) *Builder {
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = 6000
	}
	if cfg.MaxPassages <= 0 {
		cfg.MaxPassages = 10
	}
	return &Builder{cfg: cfg}
}

// Build assembles the prompt for the given task. Passages enter in rank
// order; when the rune budget runs out, remaining passages are dropped whole,
// never truncated mid-passage. Timeline prompts re-order the surviving
// passages by publication date.
func (b *Builder) Build(task domain.TaskType, variant domain.SummaryVariant, rr domain.RetrievalResult) (domain.Prompt, error) {
	if strings.TrimSpace(rr.Query) == "" {
		return domain.Prompt{}, domain.ErrEmptyQuery
	}

	passages := b.pack(rr.References)
	if task == domain.TaskTimeline {
		sort.SliceStable(passages, func(i, j int) bool {
			return passages[i].PublishedAt.Before(passages[j].PublishedAt)
		})
	}

	p := domain.Prompt{
		Task:     task,
		Variant:  variant,
		Query:    rr.Query,
		Passages: passages,
	}

	switch task {
	case domain.TaskAnswer:
		p.System = systemAnswer
		p.User = answerUserPrompt(rr.Query, passages)
	case domain.TaskSummarize:
		p.System, p.User = summarizePrompt(rr.Query, variant, passages)
	case domain.TaskTimeline:
		p.System = systemTimeline
		p.User = timelineUserPrompt(rr.Query, passages)
	case domain.TaskReport:
		p.System = systemReport
		p.User = reportUserPrompt(rr.Query, passages)
	default:
		return domain.Prompt{}, fmt.Errorf("unknown task type %q", task)
	}

	return p, nil
}

// pack selects the highest-ranked passages that fit the rune budget.
func (b *Builder) pack(refs []domain.Reference) []domain.Passage {
	var passages []domain.Passage
	remaining := b.cfg.ContextBudget

	for _, ref := range refs {
		if len(passages) >= b.cfg.MaxPassages {
			break
		}
		p := domain.Passage{
			RefID:       ref.RefID,
			Title:       ref.Title,
			Text:        ref.Chunk.Text,
			Provider:    ref.Provider,
			PublishedAt: ref.PublishedAt,
		}
		cost := len([]rune(formatPassage(p)))
		if cost > remaining {
			break
		}
		remaining -= cost
		passages = append(passages, p)
	}
	return passages
}

// formatPassage renders one context block. The [기사 refN] header is what the
// model is told to cite.
func formatPassage(p domain.Passage) string {
	var sb strings.Builder
	sb.WriteString("[기사 ")
	sb.WriteString(p.RefID)
	sb.WriteString("]")
	if !p.PublishedAt.IsZero() {
		sb.WriteString(" (")
		if p.Provider != "" {
			sb.WriteString(p.Provider)
			sb.WriteString(", ")
		}
		sb.WriteString(p.PublishedAt.Format("2006-01-02"))
		sb.WriteString(")")
	} else if p.Provider != "" {
		sb.WriteString(" (")
		sb.WriteString(p.Provider)
		sb.WriteString(")")
	}
	sb.WriteString(" ")
	sb.WriteString(p.Title)
	sb.WriteString("\n")
	sb.WriteString(p.Text)
	sb.WriteString("\n")
	return sb.String()
}

func contextSection(passages []domain.Passage) string {
	if len(passages) == 0 {
		return "(관련 기사를 찾지 못했습니다.)\n"
	}
	blocks := make([]string, len(passages))
	for i, p := range passages {
		blocks[i] = formatPassage(p)
	}
	return strings.Join(blocks, "\n")
}

func answerUserPrompt(query string, passages []domain.Passage) string {
	return fmt.Sprintf(`질문: %s

다음은 질문과 관련된 뉴스 기사 정보입니다:

%s

위 뉴스 정보를 바탕으로 질문에 답변해주세요. %s 제공된 뉴스 정보에 없는 내용은 추측하지 말고 '제공된 뉴스에서 관련 정보를 찾을 수 없습니다'라고 답변하세요.`,
		query, contextSection(passages), citationRule)
}

func summarizePrompt(query string, variant domain.SummaryVariant, passages []domain.Passage) (system, user string) {
	ctx := contextSection(passages)

	switch variant {
	case domain.SummaryQuote:
		system = systemSummarize + " 주요 인용문과 발언을 중심으로 요약해주세요."
		user = fmt.Sprintf(`'%s' 주제와 관련된 다음 뉴스 기사들에서 주요 인용문을 중심으로 요약해주세요.

%s

요구사항:
1. 중요한 인용문과 발언자 식별
2. 발언의 맥락과 의미 분석
3. %s
4. JSON 형태로 응답: {"title": "인용 중심 요약", "summary": "전체 요약", "key_quotes": [{"source": "발언자", "quote": "인용문"}, ...]}`,
			query, ctx, citationRule)

	case domain.SummaryData:
		system = systemSummarize + " 수치와 데이터를 중심으로 요약해주세요."
		user = fmt.Sprintf(`'%s' 주제와 관련된 다음 뉴스 기사들에서 중요한 수치와 데이터를 중심으로 요약해주세요.

%s

요구사항:
1. 핵심 수치와 통계 데이터 추출
2. 각 수치의 의미와 변화율 분석
3. %s
4. JSON 형태로 응답: {"title": "수치 중심 요약", "summary": "전체 요약", "key_data": [{"metric": "지표명", "value": "수치", "context": "맥락"}, ...]}`,
			query, ctx, citationRule)

	default: // SummaryIssue
		system = systemSummarize + " 핵심 이슈를 중심으로 요약해주세요."
		user = fmt.Sprintf(`'%s' 주제와 관련된 다음 뉴스 기사들을 이슈 중심으로 종합 요약해주세요.

%s

요구사항:
1. 핵심 이슈 3-5개를 명확히 파악
2. 각 이슈의 중요도와 영향을 분석
3. %s
4. JSON 형태로 응답: {"title": "이슈 중심 요약", "summary": "전체 요약", "key_points": ["포인트1", "포인트2", ...], "keywords": ["키워드1", ...]}`,
			query, ctx, citationRule)
	}
	return system, user
}

func timelineUserPrompt(query string, passages []domain.Passage) string {
	return fmt.Sprintf(`'%s' 주제에 대한 시간순 타임라인을 작성해주세요.

다음은 관련 뉴스 기사들입니다 (시간순 정렬):

%s

위 뉴스들을 바탕으로 주요 사건을 시간 순서대로 정리한 타임라인을 작성해주세요. 각 사건은 날짜와 함께 간결하게 설명하고, 중요한 변화나 전환점을 강조해주세요. %s
JSON 형태로 응답: {"title": "타임라인 제목", "summary": "전체 흐름 요약", "timeline": [{"date": "YYYY-MM-DD", "title": "사건", "summary": "설명"}, ...]}`,
		query, contextSection(passages), citationRule)
}

func reportUserPrompt(query string, passages []domain.Passage) string {
	return fmt.Sprintf(`'%s' 주제에 대한 종합 분석 리포트를 작성해주세요.

다음은 관련 뉴스 기사들입니다:

%s

위 뉴스들을 종합하여 배경, 현황, 주요 쟁점, 향후 전망 순으로 구성된 리포트를 작성해주세요. 상반된 관점이 있다면 균형있게 다루어주세요. %s
JSON 형태로 응답: {"title": "리포트 제목", "summary": "리포트 본문", "key_points": ["핵심 요점1", ...], "keywords": ["키워드1", ...]}`,
		query, contextSection(passages), citationRule)
}
