package rag

import (
	"strconv"
	"strings"
	"testing"
)

func TestChunkingEngine_EmptyInput(t *testing.T) {
	engine := NewChunkingEngine(DefaultChunkingConfig(), nil, nil)

	for _, input := range []string{"", "   ", "\n\n\t"} {
		if pieces := engine.Chunk(input); len(pieces) != 0 {
			t.Errorf("输入 %q 期望空结果，得到 %d 块", input, len(pieces))
		}
	}
}

func TestChunkingEngine_SlidingWindow(t *testing.T) {
	cfg := DefaultChunkingConfig()
	cfg.Strategy = StrategySliding
	cfg.TargetTokens = 10
	cfg.OverlapTokens = 3
	engine := NewChunkingEngine(cfg, nil, nil)

	words := make([]string, 25)
	for i := range words {
		words[i] = "word" + string(rune('a'+i))
	}
	pieces := engine.Chunk(strings.Join(words, " "))

	if len(pieces) < 3 {
		t.Fatalf("期望至少 3 块，得到 %d", len(pieces))
	}
	// 相邻块首尾应有重叠 token.
	firstTokens := strings.Fields(pieces[0].Text)
	secondTokens := strings.Fields(pieces[1].Text)
	if firstTokens[len(firstTokens)-1] != secondTokens[2] {
		t.Errorf("相邻块未按预期重叠: %v / %v", firstTokens, secondTokens)
	}
	// 块级保序.
	if !strings.HasPrefix(pieces[0].Text, "worda") {
		t.Errorf("首块应从文本起点开始: %q", pieces[0].Text)
	}
}

func TestChunkingEngine_SlidingWindowCoversAllTokens(t *testing.T) {
	cfg := DefaultChunkingConfig()
	cfg.Strategy = StrategySliding
	cfg.TargetTokens = 8
	cfg.OverlapTokens = 2
	engine := NewChunkingEngine(cfg, nil, nil)

	text := strings.Repeat("alpha beta gamma delta ", 10)
	pieces := engine.Chunk(text)

	seen := make(map[string]bool)
	for _, p := range pieces {
		for _, tok := range strings.Fields(p.Text) {
			seen[tok] = true
		}
	}
	for _, tok := range strings.Fields(text) {
		if !seen[tok] {
			t.Fatalf("token %q 未出现在任何块中", tok)
		}
	}
}

func TestChunkingEngine_StructuralBoundaries(t *testing.T) {
	cfg := DefaultChunkingConfig()
	cfg.Strategy = StrategyStructural
	engine := NewChunkingEngine(cfg, nil, nil)

	// 空行分隔的段落各自成块，即使远小于目标大小也不合并.
	text := "First paragraph about fever and its treatment in detail.\n\n" +
		"Second paragraph about heart health and circulation care."
	pieces := engine.Chunk(text)

	if len(pieces) != 2 {
		t.Fatalf("期望 2 块，得到 %d: %+v", len(pieces), pieces)
	}
	if !strings.Contains(pieces[0].Text, "fever") || !strings.Contains(pieces[1].Text, "heart") {
		t.Errorf("结构边界切分不符: %+v", pieces)
	}
}

func TestChunkingEngine_StructuralOversizedParagraph(t *testing.T) {
	cfg := DefaultChunkingConfig()
	cfg.Strategy = StrategyStructural
	cfg.TargetTokens = 10
	cfg.MaxTokens = 12
	cfg.OverlapTokens = 2
	engine := NewChunkingEngine(cfg, nil, nil)

	// 超限段落退回滑动窗口，短段落保持原样.
	text := strings.Repeat("longword ", 30) + "\n\nShort closing paragraph here."
	pieces := engine.Chunk(text)

	if len(pieces) < 4 {
		t.Fatalf("超限段落应被切成多块，得到 %d", len(pieces))
	}
	for _, p := range pieces {
		if n := len(strings.Fields(p.Text)); n > cfg.MaxTokens {
			t.Errorf("块超过硬上限: %d tokens", n)
		}
	}
	if last := pieces[len(pieces)-1].Text; last != "Short closing paragraph here." {
		t.Errorf("短段落应原样成块: %q", last)
	}
}

func TestChunkingEngine_SemanticPacking(t *testing.T) {
	cfg := DefaultChunkingConfig()
	cfg.Strategy = StrategySemantic
	cfg.TargetTokens = 12
	cfg.MaxTokens = 20
	engine := NewChunkingEngine(cfg, nil, nil)

	text := "Tulsi reduces fever. Ginger promotes sweating. Neem treats infections. " +
		"Giloy boosts immunity. Arjuna strengthens the heart muscle over time."
	pieces := engine.Chunk(text)

	if len(pieces) < 2 {
		t.Fatalf("期望句子打包产生多块，得到 %d", len(pieces))
	}
	for _, p := range pieces {
		if n := len(strings.Fields(p.Text)); n > cfg.MaxTokens {
			t.Errorf("块超过硬上限 %d: %d tokens", cfg.MaxTokens, n)
		}
	}
}

func TestChunkingEngine_SemanticPacksTowardMax(t *testing.T) {
	cfg := DefaultChunkingConfig()
	cfg.Strategy = StrategySemantic
	engine := NewChunkingEngine(cfg, nil, nil)

	// 四个 60 token 的句子：缓冲在硬上限内继续吸收，
	// 达到目标 110 即落块，应打包成 2 块各 120 token.
	sentence := func(idx int) string {
		words := make([]string, 60)
		words[0] = "Sentence" + strconv.Itoa(idx)
		for i := 1; i < 59; i++ {
			words[i] = "filler" + strconv.Itoa(i)
		}
		words[59] = "ends."
		return strings.Join(words, " ")
	}
	text := sentence(0) + " " + sentence(1) + " " + sentence(2) + " " + sentence(3)

	pieces := engine.Chunk(text)
	if len(pieces) != 2 {
		t.Fatalf("期望打包成 2 块，得到 %d", len(pieces))
	}
	for _, p := range pieces {
		if n := len(strings.Fields(p.Text)); n != 120 {
			t.Errorf("块大小应为 120 tokens，得到 %d", n)
		}
	}
}

func TestChunkingEngine_SemanticOversizedSegment(t *testing.T) {
	cfg := DefaultChunkingConfig()
	cfg.Strategy = StrategySemantic
	cfg.TargetTokens = 10
	cfg.MaxTokens = 12
	engine := NewChunkingEngine(cfg, nil, nil)

	// 单句超过硬上限，应退回滑动窗口而不是产出超限块.
	long := strings.Repeat("verylongword ", 40)
	pieces := engine.Chunk(long)

	if len(pieces) < 2 {
		t.Fatalf("超长句应被切成多块，得到 %d", len(pieces))
	}
	for _, p := range pieces {
		if n := len(strings.Fields(p.Text)); n > cfg.MaxTokens {
			t.Errorf("块超过硬上限: %d tokens", n)
		}
	}
}

func TestChunkingEngine_HybridSparseFallback(t *testing.T) {
	cfg := DefaultChunkingConfig()
	cfg.Strategy = StrategyHybrid
	cfg.TargetTokens = 100
	cfg.MaxTokens = 120
	cfg.OverlapTokens = 35
	cfg.SparseRatio = 1.2
	engine := NewChunkingEngine(cfg, nil, nil)

	// 无结构边界的长文本：结构切分只给 2 块，触发滑动窗口补充.
	words := make([]string, 160)
	for i := range words {
		words[i] = "token" + strconv.Itoa(i)
	}
	text := strings.Join(words, " ")

	pieces := engine.Chunk(text)
	if len(pieces) <= 2 {
		t.Fatalf("稀疏结构应补充滑动窗口块，得到 %d", len(pieces))
	}

	// 前缀去重：任意两块的去重前缀不应相同.
	seen := make(map[string]bool)
	for _, p := range pieces {
		key := p.Text
		if len(key) > cfg.DedupChars {
			key = key[:cfg.DedupChars]
		}
		if seen[key] {
			t.Errorf("发现重复前缀块: %q", key)
		}
		seen[key] = true
	}
}

func TestChunkingEngine_UnknownStrategyFallsBack(t *testing.T) {
	engine := NewChunkingEngine(DefaultChunkingConfig(), nil, nil)

	text := "Some ayurvedic text about tulsi and fever management."
	got := engine.ChunkWithStrategy(text, ChunkingStrategy("bogus"))
	want := engine.ChunkWithStrategy(text, StrategyHybrid)

	if len(got) != len(want) {
		t.Fatalf("未知策略应等价 hybrid: %d != %d", len(got), len(want))
	}
}

func TestChunkingEngine_Summarize(t *testing.T) {
	engine := NewChunkingEngine(DefaultChunkingConfig(), nil, nil)

	tests := []struct {
		name string
		text string
		want func(string) bool
	}{
		{
			name: "首句优先",
			text: "Tulsi reduces fever. It also boosts immunity and calms the mind over long periods of regular use.",
			want: func(s string) bool { return s == "Tulsi reduces fever." },
		},
		{
			name: "短文本原样返回",
			text: "Short note",
			want: func(s string) bool { return s == "Short note" },
		},
		{
			name: "超长单句词边界截断",
			text: strings.Repeat("longword ", 60),
			want: func(s string) bool { return len(s) <= 185 && strings.HasSuffix(s, "…") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.Summarize(tt.text); !tt.want(got) {
				t.Errorf("摘要不符: %q", got)
			}
		})
	}
}

func BenchmarkChunkHybrid(b *testing.B) {
	engine := NewChunkingEngine(DefaultChunkingConfig(), nil, nil)
	text := strings.Repeat("Tulsi is the most effective natural antipyretic herb. "+
		"It reduces body temperature and boosts immunity during fever.\n\n", 50)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Chunk(text)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"Single sentence without terminator", 1},
		{"First one. Second one. Third one.", 3},
		{"Is it so? Yes! Indeed.", 3},
		{"Approx. value is fine here", 1}, // 终止符后非大写不切
	}
	for _, tt := range tests {
		if got := splitSentences(tt.text); len(got) != tt.want {
			t.Errorf("splitSentences(%q) = %d 句，期望 %d: %v", tt.text, len(got), tt.want, got)
		}
	}
}
