package generate

import (
	"testing"

	"github.com/ainova/newsrag/internal/domain"
)

func TestDetectTask(t *testing.T) {
	cases := []struct {
		query string
		want  domain.TaskType
	}{
		{"반도체 수출 규제 타임라인 보여줘", domain.TaskTimeline},
		{"사건의 전개 과정이 궁금해", domain.TaskTimeline},
		{"금리 인상 관련 기사 요약해줘", domain.TaskSummarize},
		{"핵심만 간단히 알려줘", domain.TaskSummarize},
		{"이번 협상의 쟁점은 무엇인가?", domain.TaskAnswer},
		{"", domain.TaskAnswer},
	}
	for _, tc := range cases {
		if got := DetectTask(tc.query); got != tc.want {
			t.Errorf("DetectTask(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}
