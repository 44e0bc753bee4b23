package xref

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Ref
	}{
		{
			name: "dotted article",
			text: "제16.4.1조에 따라 예비력을 확보한다.",
			want: []Ref{{Kind: KindArticle, Number: "16.4.1", Raw: "제16.4.1조"}},
		},
		{
			name: "article with space",
			text: "제 5 조를 준용한다.",
			want: []Ref{{Kind: KindArticle, Number: "5", Raw: "제 5 조"}},
		},
		{
			name: "clause and annex",
			text: "제3항 및 별표 7에 따른다.",
			want: []Ref{
				{Kind: KindClause, Number: "3", Raw: "제3항"},
				{Kind: KindAnnex, Number: "7", Raw: "별표 7"},
			},
		},
		{
			name: "duplicates collapse",
			text: "제12조는 제12조의 개정 전 규정이다.",
			want: []Ref{{Kind: KindArticle, Number: "12", Raw: "제12조"}},
		},
		{
			name: "no citations",
			text: "예비력 기준은 7% 이상이다.",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestRefKey(t *testing.T) {
	r := Ref{Kind: KindArticle, Number: "16.4.1"}
	if r.Key() != "article:16.4.1" {
		t.Errorf("key = %q", r.Key())
	}
}

func TestExtractClauseNotConfusedByArticle(t *testing.T) {
	got := Extract("제16.4.1조")
	for _, r := range got {
		if r.Kind == KindClause {
			t.Errorf("article digits misread as clause: %v", r)
		}
	}
}
