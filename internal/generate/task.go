package generate

import (
	"strings"

	"github.com/ainova/newsrag/internal/domain"
)

var (
	timelineKeywords = []string{"타임라인", "시간순", "연대순", "흐름", "전개", "과정", "추이", "변화"}
	summaryKeywords   = []string{"요약", "정리", "종합", "간략", "간단", "핵심"}
)

// DetectTask infers the task type from the query text when the caller does not
// force one. Keyword matches pick timeline or summarize; everything else is a
// plain answer.
func DetectTask(query string) domain.TaskType {
	q := strings.ToLower(query)

	for _, kw := range timelineKeywords {
		if strings.Contains(q, kw) {
			return domain.TaskTimeline
		}
	}
	for _, kw := range summaryKeywords {
		if strings.Contains(q, kw) {
			return domain.TaskSummarize
		}
	}
	return domain.TaskAnswer
}
