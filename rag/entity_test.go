package rag

import (
	"errors"
	"sort"
	"strings"
	"testing"
)

func TestEntityTagger_GazetteerMatch(t *testing.T) {
	tagger := NewEntityTagger(DefaultEntityTaggerConfig(), nil, nil)

	entities := tagger.Extract("Tulsi and giloy boost immunity during fever caused by pitta imbalance.")

	want := []string{"fever", "giloy", "immunity", "pitta", "tulsi"}
	if len(entities.Gazetteer) != len(want) {
		t.Fatalf("词表命中不符: %v, 期望 %v", entities.Gazetteer, want)
	}
	for i, term := range want {
		if entities.Gazetteer[i] != term {
			t.Errorf("第 %d 项 = %q, 期望 %q", i, entities.Gazetteer[i], term)
		}
	}
}

func TestEntityTagger_ResultsSortedAndDeduped(t *testing.T) {
	tagger := NewEntityTagger(DefaultEntityTaggerConfig(), nil, nil)

	// 同一词条多次出现（含大写形式）只出现一次.
	entities := tagger.Extract("Ashwagandha helps stress. ashwagandha again. ASHWAGANDHA thrice. Stress too.")

	if !sort.StringsAreSorted(entities.Gazetteer) {
		t.Errorf("词表实体未排序: %v", entities.Gazetteer)
	}
	count := 0
	for _, e := range entities.Gazetteer {
		if e == "ashwagandha" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("ashwagandha 应只出现一次，出现 %d 次", count)
	}
}

func TestEntityTagger_NoMatches(t *testing.T) {
	tagger := NewEntityTagger(DefaultEntityTaggerConfig(), nil, nil)

	entities := tagger.Extract("completely unrelated text about software engineering")
	if len(entities.Gazetteer) != 0 || len(entities.General) != 0 {
		t.Errorf("无关文本不应命中实体: %+v", entities)
	}
}

type stubNER struct {
	entities []string
	err      error
	calls    int
}

func (s *stubNER) Entities(string) ([]string, error) {
	s.calls++
	return s.entities, s.err
}

func TestEntityTagger_NERProvider(t *testing.T) {
	ner := &stubNER{entities: []string{"Charaka Samhita", "Kerala", "Charaka Samhita"}}
	tagger := NewEntityTagger(DefaultEntityTaggerConfig(), ner, nil)

	entities := tagger.Extract("Classical texts from Kerala describe tulsi preparations.")

	if len(entities.General) != 2 {
		t.Fatalf("通用实体应去重为 2 条: %v", entities.General)
	}
	if entities.General[0] != "Charaka Samhita" || entities.General[1] != "Kerala" {
		t.Errorf("通用实体排序不符: %v", entities.General)
	}
}

func TestEntityTagger_NERFailureDegrades(t *testing.T) {
	ner := &stubNER{err: errors.New("ner unavailable")}
	tagger := NewEntityTagger(DefaultEntityTaggerConfig(), ner, nil)

	// NER 失败只丢通用实体，词表命中照常.
	entities := tagger.Extract("Turmeric for digestion.")
	if len(entities.General) != 0 {
		t.Errorf("NER 失败时通用实体应为空: %v", entities.General)
	}
	if len(entities.Gazetteer) != 2 {
		t.Errorf("词表命中应不受影响: %v", entities.Gazetteer)
	}
}

func TestEntityTagger_LongTextSkipsNER(t *testing.T) {
	ner := &stubNER{entities: []string{"Kerala"}}
	cfg := EntityTaggerConfig{MaxScanChars: 100}
	tagger := NewEntityTagger(cfg, ner, nil)

	long := strings.Repeat("filler text ", 50) + " tulsi"
	entities := tagger.Extract(long)

	if ner.calls != 0 {
		t.Errorf("超长文本不应调用 NER，调用了 %d 次", ner.calls)
	}
	// 词表匹配不受扫描上限约束（全文小写包含）.
	if len(entities.Gazetteer) != 1 || entities.Gazetteer[0] != "tulsi" {
		t.Errorf("词表命中不符: %v", entities.Gazetteer)
	}
}

func TestGazetteerTerms(t *testing.T) {
	terms := GazetteerTerms()
	if !sort.StringsAreSorted(terms) {
		t.Error("词表词条应排序")
	}
	set := make(map[string]bool)
	for _, term := range terms {
		set[term] = true
	}
	for _, must := range []string{"tulsi", "fever", "vata", "panchakarma"} {
		if !set[must] {
			t.Errorf("词表缺少 %q", must)
		}
	}
}
