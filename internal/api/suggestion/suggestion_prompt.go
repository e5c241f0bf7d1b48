package suggestion

import (
	"fmt"
	"strings"
)

// oracleCandidate is the per-spot record the oracle is asked to emit.
type oracleCandidate struct {
	Name        string `json:"name"`
	SearchQuery string `json:"search_query"`
	Summary     string `json:"summary"`
	Category    string `json:"category"`
}

// getSuggestionPrompt builds the single-round-trip prompt. The oracle
// answers in JSON so the response parses without free-text scraping.
func getSuggestionPrompt(theme, area string, existingNames []string) string {
	scope := theme
	if strings.TrimSpace(area) != "" {
		scope = fmt.Sprintf("%s(エリア: %s)", theme, area)
	}

	prompt := fmt.Sprintf(`
        あなたは日本の旅行プランナーです。「%s」というテーマに合う、実在する有名な観光スポットを10〜15件、人気順に提案してください。
        回答は次の構造のJSON配列のみで、他のテキストを含めないでください:
        [
            {
                "name": "スポットの正式名称",
                "search_query": "地図検索用のクエリ(名称+都市名など)",
                "summary": "魅力を伝える短い紹介文(50字程度)",
                "category": "カテゴリ(例: 寺社仏閣、美術館、自然)"
            }
        ]
    `, scope)

	if len(existingNames) > 0 {
		prompt += fmt.Sprintf("\n        次のスポットは既にプランに入っているため提案しないでください: %s", strings.Join(existingNames, "、"))
	}
	return prompt
}
