package xsynth

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultChunkSize 长文本切块的默认最大长度（字节）。
const DefaultChunkSize = 200

// ChunkText 按句子边界把 text 切成不超过 maxLen 字节的块。
//
// 句子边界是 '.'、'!'、'?' 后紧跟任意空白（空格、换行、制表符等）。
// 相邻句子在不超过 maxLen 时合并为一块（以单个空格连接）。
// 单个句子本身超过 maxLen 时独立成块，不在句子内部切断。
// maxLen <= 0 时使用 [DefaultChunkSize]。空白文本返回 nil。
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultChunkSize
	}
	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}
	for _, sentence := range splitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sentence) > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()
	return chunks
}

// splitSentences 在句末标点之后切分，标点留在前一句。
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + utf8.RuneLen(r)
		next, _ := utf8.DecodeRuneInString(text[end:])
		if end < len(text) && unicode.IsSpace(next) {
			out = append(out, text[start:end])
			start = end
		}
	}
	return append(out, text[start:])
}
