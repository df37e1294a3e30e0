package caption

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "cjk sentences",
			in:   "今天我們學習光合作用。植物需要陽光！你們準備好了嗎？",
			want: []string{"今天我們學習光合作用。", "植物需要陽光！", "你們準備好了嗎？"},
		},
		{
			name: "semicolon and ellipsis",
			in:   "首先是葉綠素；然後是二氧化碳…最後是水。",
			want: []string{"首先是葉綠素；", "然後是二氧化碳…", "最後是水。"},
		},
		{
			name: "ascii sentences",
			in:   "Photosynthesis needs light. It also needs water! Ready?",
			want: []string{"Photosynthesis needs light.", "It also needs water!", "Ready?"},
		},
		{
			name: "whitespace collapsed",
			in:   "第一句。  \n\t 第二句。",
			want: []string{"第一句。", "第二句。"},
		},
		{
			name: "no terminal punctuation",
			in:   "這段話沒有結尾標點",
			want: []string{"這段話沒有結尾標點"},
		},
		{
			name: "trailing fragment kept",
			in:   "完整的句子。還有一個片段",
			want: []string{"完整的句子。", "還有一個片段"},
		},
		{
			name: "empty input",
			in:   "",
			want: []string{""},
		},
		{
			name: "whitespace only",
			in:   "   \n\t  ",
			want: []string{""},
		},
		{
			name: "punctuation only fragments dropped",
			in:   "。。第一句。",
			want: []string{"。", "。", "第一句。"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitNeverEmpty(t *testing.T) {
	for _, in := range []string{"", "abc", "。", "   ", "一二三。四五六！"} {
		if got := Split(in); len(got) == 0 {
			t.Errorf("Split(%q) returned an empty sequence", in)
		}
	}
}

func TestSpokenRunes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"hello", 5},
		{"hello, world!", 10},
		{"今天我們學習。", 6},
		{"…", 0},
		{"P12", 3},
		{"", 0},
	}
	for _, tt := range tests {
		if got := spokenRunes(tt.in); got != tt.want {
			t.Errorf("spokenRunes(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
