package ruleset

// Default returns the built-in power-market ruleset. Keyword weights and
// domain vocabularies follow the 전력시장운영규칙 corpus; deployments override
// them with a YAML file.
func Default() *Ruleset {
	rs := &Ruleset{
		Domains: []Domain{
			{
				Name:     "발전계획",
				Weight:   1.5,
				Keywords: []string{"발전계획", "하루전", "당일", "실시간", "계획수립"},
				Intro:    "발전계획과 관련하여 다음과 같이 답변드립니다:",
				Sections: []Section{
					{Title: "관련 규정", Categories: []Category{CatRegulation}, Max: 5},
					{Title: "주요 절차", Categories: []Category{CatProcedure}, Max: 5},
				},
			},
			{
				Name:     "계통운영",
				Weight:   1.4,
				Keywords: []string{"계통운영", "운영기준", "안전운전", "계통제약"},
				Intro:    "계통운영에 대한 답변은 다음과 같습니다:",
				Sections: []Section{
					{Title: "운영 기준", Categories: []Category{CatStandard}, Max: 5},
					{Title: "안전 조치", Categories: []Category{CatSafety}, Max: 5},
				},
			},
			{
				Name:     "전력거래",
				Weight:   1.3,
				Keywords: []string{"전력거래", "입찰", "가격", "시장"},
				Intro:    "전력거래와 관련된 내용은 다음과 같습니다:",
				Sections: []Section{
					{Title: "관련 규정", Categories: []Category{CatRegulation}, Max: 5},
					{Title: "거래 절차", Categories: []Category{CatProcedure}, Max: 5},
				},
			},
			{
				Name:     "시장운영",
				Weight:   1.3,
				Keywords: []string{"시장운영", "시장규칙", "정산"},
				Intro:    "시장운영에 대한 답변은 다음과 같습니다:",
				Sections: []Section{
					{Title: "관련 규정", Categories: []Category{CatRegulation}, Max: 5},
					{Title: "운영 기준", Categories: []Category{CatStandard}, Max: 5},
				},
			},
			{
				Name:     "예비력",
				Weight:   1.2,
				Keywords: []string{"예비력", "예비력시장", "예비력용량"},
				Intro:    "예비력과 관련된 내용은 다음과 같습니다:",
				Sections: []Section{
					{Title: "관련 규정", Categories: []Category{CatRegulation}, Max: 5},
					{Title: "운영 기준", Categories: []Category{CatStandard}, Max: 5},
				},
			},
			{
				Name:     "송전제약",
				Weight:   1.2,
				Keywords: []string{"송전제약", "제약정보", "계통제약"},
				Intro:    "송전제약과 관련된 내용은 다음과 같습니다:",
				Sections: []Section{
					{Title: "관련 규정", Categories: []Category{CatRegulation}, Max: 5},
					{Title: "안전 조치", Categories: []Category{CatSafety}, Max: 5},
				},
			},
		},
		Generic: Domain{
			Name: "일반",
			Sections: []Section{
				{Title: "상세 내용", Categories: []Category{CatRegulation, CatProcedure}, Max: 5},
			},
		},
		TermWeights: map[string]float64{
			"발전계획": 1.5,
			"계통운영": 1.5,
			"전력거래": 1.4,
			"시장운영": 1.4,
			"예비력":  1.3,
			"송전제약": 1.3,
			"하루전":  1.2,
			"실시간":  1.2,
			"당일":   1.2,
			"급전":   1.2,
			"가격":   1.1,
			"입찰":   1.1,
			"발전량":  1.1,
			"수요":   1.1,
		},
		Markers: map[Category][]string{
			CatRegulation: {"조", "항", "규정", "규칙", "기준"},
			CatProcedure:  {"절차", "단계", "과정", "순서"},
			CatStandard:   {"기준", "표준", "요구사항"},
			CatSafety:     {"안전", "보안", "위험", "주의"},
		},
	}
	if err := rs.finish(); err != nil {
		// The built-in configuration is static; failing to index it is a
		// programming error.
		panic(err)
	}
	return rs
}
