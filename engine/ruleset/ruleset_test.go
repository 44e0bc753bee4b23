package ruleset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsWellFormed(t *testing.T) {
	rs := Default()

	if len(rs.Domains) == 0 {
		t.Fatal("no domains")
	}
	for _, d := range rs.Domains {
		if d.Name == "" || d.Weight <= 0 || len(d.Keywords) == 0 {
			t.Errorf("malformed domain %+v", d)
		}
		if len(d.Sections) == 0 {
			t.Errorf("domain %s has no template sections", d.Name)
		}
	}
	if _, ok := rs.Domain("일반"); !ok {
		t.Error("generic domain not indexed")
	}
	for term, w := range rs.TermWeights {
		if w <= 1.0 {
			t.Errorf("domain term %q has weight %v, want >1.0", term, w)
		}
	}
}

func TestTermWeight(t *testing.T) {
	rs := Default()

	if w := rs.TermWeight("예비력"); w != 1.3 {
		t.Errorf("예비력 weight = %v, want 1.3", w)
	}
	if w := rs.TermWeight("아무말"); w != 1.0 {
		t.Errorf("unknown term weight = %v, want 1.0", w)
	}
}

func TestDetectDomain(t *testing.T) {
	rs := Default()

	tests := []struct {
		name  string
		query string
		want  string
		found bool
	}{
		{"single match", "하루전발전계획은 어떻게 수립되나요?", "발전계획", true},
		{"highest weight wins", "발전계획과 예비력의 관계는?", "발전계획", true},
		{"no match", "날씨가 어떤가요?", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := rs.DetectDomain(tt.query)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if ok && d.Name != tt.want {
				t.Errorf("domain = %s, want %s", d.Name, tt.want)
			}
		})
	}
}

func TestDetectDomainTieBreak(t *testing.T) {
	// 예비력 and 송전제약 share weight 1.2; the earlier domain in the
	// configured order must win every time.
	rs := Default()
	for i := 0; i < 20; i++ {
		d, ok := rs.DetectDomain("예비력과 송전제약 기준")
		if !ok || d.Name != "예비력" {
			t.Fatalf("iteration %d: got %v, want 예비력", i, d)
		}
	}
}

func TestClassifyDomainFallsBackToGeneric(t *testing.T) {
	rs := Default()

	d := rs.ClassifyDomain("점심 메뉴 추천", "관련 없는 내용")
	if d.Name != rs.Generic.Name {
		t.Errorf("got %s, want generic", d.Name)
	}

	d = rs.ClassifyDomain("예비력 기준은?", "예비력은 7% 이상 확보한다")
	if d.Name != "예비력" {
		t.Errorf("got %s, want 예비력", d.Name)
	}
}

func TestCategorizeFirstMatchWins(t *testing.T) {
	rs := Default()

	tests := []struct {
		sentence string
		want     Category
	}{
		// "기준" marks both regulation and standard; regulation has priority.
		{"예비력 기준은 7% 이상이다", CatRegulation},
		{"다음 단계의 과정을 따른다", CatProcedure},
		{"표준 요구사항을 만족해야 한다", CatStandard},
		{"위험 요소에 주의한다", CatSafety},
		{"전력 수급 현황이다", CatGeneral},
	}
	for _, tt := range tests {
		if got := rs.Categorize(tt.sentence); got != tt.want {
			t.Errorf("Categorize(%q) = %s, want %s", tt.sentence, got, tt.want)
		}
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	rs, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := rs.Domain("발전계획"); !ok {
		t.Error("defaults not loaded")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ruleset.yaml")
	conf := `
domains:
  - name: 정산
    weight: 1.4
    keywords: [정산, 정산금]
    intro: "정산 관련 답변입니다:"
    sections:
      - title: 관련 규정
        categories: [regulation]
        max: 3
generic:
  name: 일반
  sections:
    - title: 상세 내용
      categories: [general]
      max: 5
term_weights:
  정산: 1.4
markers:
  regulation: [조, 규정]
`
	if err := os.WriteFile(path, []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}

	rs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d, ok := rs.Domain("정산")
	if !ok || d.Weight != 1.4 {
		t.Fatalf("custom domain not loaded: %+v", d)
	}
	if w := rs.TermWeight("정산"); w != 1.4 {
		t.Errorf("term weight = %v, want 1.4", w)
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("domains: [{}]\ngeneric: {name: 일반}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for domain without name")
	}
}
