package geo

import "strings"

// prefectures holds the 47 full legal names. Short colloquial forms
// ("京都", "富山") are derived by trimming the 都/道/府/県 suffix.
var prefectures = []string{
	"北海道",
	"青森県", "岩手県", "宮城県", "秋田県", "山形県", "福島県",
	"茨城県", "栃木県", "群馬県", "埼玉県", "千葉県", "東京都", "神奈川県",
	"新潟県", "富山県", "石川県", "福井県", "山梨県", "長野県",
	"岐阜県", "静岡県", "愛知県", "三重県",
	"滋賀県", "京都府", "大阪府", "兵庫県", "奈良県", "和歌山県",
	"鳥取県", "島根県", "岡山県", "広島県", "山口県",
	"徳島県", "香川県", "愛媛県", "高知県",
	"福岡県", "佐賀県", "長崎県", "熊本県", "大分県", "宮崎県", "鹿児島県", "沖縄県",
}

// romajiAliases maps the romanized names the geocoder occasionally
// returns for the state field.
var romajiAliases = map[string]string{
	"hokkaido":  "北海道",
	"aomori":    "青森県",
	"iwate":     "岩手県",
	"miyagi":    "宮城県",
	"akita":     "秋田県",
	"yamagata":  "山形県",
	"fukushima": "福島県",
	"ibaraki":   "茨城県",
	"tochigi":   "栃木県",
	"gunma":     "群馬県",
	"saitama":   "埼玉県",
	"chiba":     "千葉県",
	"tokyo":     "東京都",
	"kanagawa":  "神奈川県",
	"niigata":   "新潟県",
	"toyama":    "富山県",
	"ishikawa":  "石川県",
	"fukui":     "福井県",
	"yamanashi": "山梨県",
	"nagano":    "長野県",
	"gifu":      "岐阜県",
	"shizuoka":  "静岡県",
	"aichi":     "愛知県",
	"mie":       "三重県",
	"shiga":     "滋賀県",
	"kyoto":     "京都府",
	"osaka":     "大阪府",
	"hyogo":     "兵庫県",
	"nara":      "奈良県",
	"wakayama":  "和歌山県",
	"tottori":   "鳥取県",
	"shimane":   "島根県",
	"okayama":   "岡山県",
	"hiroshima": "広島県",
	"yamaguchi": "山口県",
	"tokushima": "徳島県",
	"kagawa":    "香川県",
	"ehime":     "愛媛県",
	"kochi":     "高知県",
	"fukuoka":   "福岡県",
	"saga":      "佐賀県",
	"nagasaki":  "長崎県",
	"kumamoto":  "熊本県",
	"oita":      "大分県",
	"miyazaki":  "宮崎県",
	"kagoshima": "鹿児島県",
	"okinawa":   "沖縄県",
}

var prefectureTable map[string]string

func init() {
	prefectureTable = make(map[string]string, len(prefectures)*2+len(romajiAliases))
	for _, full := range prefectures {
		prefectureTable[full] = full
		short := strings.TrimSuffix(full, "都")
		short = strings.TrimSuffix(short, "府")
		short = strings.TrimSuffix(short, "県")
		prefectureTable[short] = full
	}
	for alias, full := range romajiAliases {
		prefectureTable[alias] = full
	}
}

// NormalizePrefecture maps colloquial, abbreviated or romanized
// prefecture names to their full legal form ("京都" -> "京都府",
// "Toyama" -> "富山県"). Unmapped input passes through unchanged.
func NormalizePrefecture(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	if full, ok := prefectureTable[trimmed]; ok {
		return full
	}
	if full, ok := prefectureTable[strings.ToLower(trimmed)]; ok {
		return full
	}
	return raw
}
