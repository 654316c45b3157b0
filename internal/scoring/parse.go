package scoring

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/ml-job-radar/internal/ai"
)

var (
	scoreObjectRe = regexp.MustCompile(`\{[^{}]*"score"\s*:\s*(\d+)[^{}]*\}`)
	scoreFieldRe  = regexp.MustCompile(`"score"\s*:\s*(\d+)`)
	bareScoreRe   = regexp.MustCompile(`\b([1-9]|10)\b`)
)

type parser struct {
	name  string
	parse func(raw string) (int, bool)
}

// parsers run in order; the first one yielding a score wins.
var parsers = []parser{
	{name: "json", parse: parseWhole},
	{name: "json_object", parse: parseObject},
	{name: "score_field", parse: parseField},
	{name: "bare_number", parse: parseBare},
}

// ParseScore extracts a raw (unclamped) score from a model answer and names
// the strategy that found it.
func ParseScore(raw string) (score int, strategy string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "", false
	}
	for _, p := range parsers {
		if score, ok := p.parse(raw); ok {
			return score, p.name, true
		}
	}
	return 0, "", false
}

func parseWhole(raw string) (int, bool) {
	return scoreFromJSON(raw)
}

func parseObject(raw string) (int, bool) {
	m := scoreObjectRe.FindString(raw)
	if m == "" {
		return 0, false
	}
	return scoreFromJSON(ai.CleanJSON(m))
}

func parseField(raw string) (int, bool) {
	m := scoreFieldRe.FindStringSubmatch(raw)
	if len(m) < 2 {
		return 0, false
	}
	return atoi(m[1])
}

func parseBare(raw string) (int, bool) {
	m := bareScoreRe.FindStringSubmatch(raw)
	if len(m) < 2 {
		return 0, false
	}
	return atoi(m[1])
}

func scoreFromJSON(raw string) (int, bool) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return 0, false
	}
	v, found := data["score"]
	if !found {
		return 0, false
	}
	f := ai.CoerceFloat(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if f < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(f), true
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		// digits only, so the sole failure is overflow
		return math.MaxInt32, true
	}
	return n, true
}
