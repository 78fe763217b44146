package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash(t *testing.T) {
	a := ContentHash("경제 성장률이 둔화되고 있다")
	b := ContentHash("경제 성장률이 둔화되고 있다")
	if a != b {
		t.Errorf("ContentHash not deterministic: %d != %d", a, b)
	}
	if a == ContentHash("경제 성장률이 회복되고 있다") {
		t.Error("different texts produced the same hash")
	}
}

func TestKeywordScores_JSONPreservesOrder(t *testing.T) {
	scores := KeywordScores{{"성장률", 1.0}, {"경제", 0.5}, {"둔화", 0.25}}

	data, err := json.Marshal(scores)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if got := string(data); got != `{"성장률":1,"경제":0.5,"둔화":0.25}` {
		t.Errorf("Marshal() = %s", got)
	}

	var decoded KeywordScores
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if strings.Join(decoded.Keywords(), ",") != "성장률,경제,둔화" {
		t.Errorf("order not preserved: %v", decoded.Keywords())
	}
	if s, ok := decoded.Score("경제"); !ok || s != 0.5 {
		t.Errorf("Score(경제) = %v, %v", s, ok)
	}
}

func TestKeywordScores_EmptyAndNull(t *testing.T) {
	data, err := json.Marshal(KeywordScores{})
	if err != nil || string(data) != "{}" {
		t.Errorf("Marshal(empty) = %s, %v", data, err)
	}

	var empty KeywordScores
	if err := json.Unmarshal([]byte("{}"), &empty); err != nil {
		t.Fatalf("Unmarshal({}) error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Unmarshal({}) = %#v, want empty non-nil", empty)
	}

	var null KeywordScores
	if err := json.Unmarshal([]byte("null"), &null); err != nil {
		t.Fatalf("Unmarshal(null) error = %v", err)
	}
	if null != nil {
		t.Errorf("Unmarshal(null) = %#v, want nil", null)
	}
}

func TestKeywordScores_Malformed(t *testing.T) {
	for _, input := range []string{`[1,2,3]`, `{"a":"x"}`, `{"a":1`, `"text"`} {
		var k KeywordScores
		if err := json.Unmarshal([]byte(input), &k); err == nil {
			t.Errorf("Unmarshal(%s) succeeded, want error", input)
		}
	}
}

func TestItemError(t *testing.T) {
	err := ItemError{ID: 999, Err: ErrArticleNotFound}
	if !errors.Is(err, ErrArticleNotFound) {
		t.Error("ItemError does not unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "999") {
		t.Errorf("Error() = %q, want id in message", err.Error())
	}
}

func TestKeywordScores_Top(t *testing.T) {
	scores := KeywordScores{{"환율", 0.5}, {"반도체", 1}, {"수출", 0.5}, {"급등", 0.2}}

	assert.Equal(t, []string{"반도체", "환율", "수출"}, scores.Top(3).Keywords())
	assert.Len(t, scores.Top(10), 4)
	assert.Empty(t, scores.Top(0))
	// the receiver keeps its order
	assert.Equal(t, "환율", scores[0].Keyword)
}
