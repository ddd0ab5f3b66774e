package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"legal-rag/internal/models"
)

const maxCharsPerWord = 100

// WordPieceTokenizer turns text into BERT token IDs using an uncased
// vocab.txt, as shipped with all-MiniLM-L6-v2.
type WordPieceTokenizer struct {
	vocab map[string]int64
	unk   int64
	cls   int64
	sep   int64
	pad   int64
}

// LoadWordPieceVocab reads a vocab.txt file, one token per line.
func LoadWordPieceVocab(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open vocab: %w", models.ErrNotFound, err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	return NewWordPieceTokenizer(tokens)
}

// NewWordPieceTokenizer builds a tokenizer where a token's ID is its index.
func NewWordPieceTokenizer(tokens []string) (*WordPieceTokenizer, error) {
	t := &WordPieceTokenizer{vocab: make(map[string]int64, len(tokens))}
	for i, tok := range tokens {
		if _, dup := t.vocab[tok]; !dup {
			t.vocab[tok] = int64(i)
		}
	}
	for name, dst := range map[string]*int64{"[UNK]": &t.unk, "[CLS]": &t.cls, "[SEP]": &t.sep, "[PAD]": &t.pad} {
		id, ok := t.vocab[name]
		if !ok {
			return nil, fmt.Errorf("%w: vocab has no %s token", models.ErrInvalidInput, name)
		}
		*dst = id
	}
	return t, nil
}

// Tokenize returns [CLS] tokens [SEP] padded to maxTokens, with the matching
// attention mask and all-zero token type IDs.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i := range inputIDs {
		inputIDs[i] = t.pad
	}

	ids := []int64{t.cls}
	for _, word := range basicTokenize(text) {
		ids = append(ids, t.wordPiece(word)...)
		if len(ids) >= maxTokens-1 {
			break
		}
	}
	if len(ids) > maxTokens-1 {
		ids = ids[:maxTokens-1]
	}
	ids = append(ids, t.sep)

	copy(inputIDs, ids)
	for i := range ids {
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// wordPiece splits word by greedy longest match; continuation pieces carry
// the ## prefix. A word with any unmatched remainder becomes [UNK].
func (t *WordPieceTokenizer) wordPiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxCharsPerWord {
		return []int64{t.unk}
	}

	var pieces []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		matched := int64(-1)
		for ; end > start; end-- {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := t.vocab[sub]; ok {
				matched = id
				break
			}
		}
		if matched < 0 {
			return []int64{t.unk}
		}
		pieces = append(pieces, matched)
		start = end
	}
	return pieces
}

// basicTokenize lowercases text, drops control characters and splits on
// whitespace and punctuation, keeping each punctuation rune as a token.
func basicTokenize(text string) []string {
	var words []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == 0 || r == unicode.ReplacementChar || unicode.IsControl(r):
		case isPunctuation(r):
			flush()
			words = append(words, string(r))
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return words
}

func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
