package modelclient

import "strings"

// chatSentinels are chat-template end tokens some local backends (vLLM,
// Ollama-compat deployments) echo back at the end of a completion; the
// response is truncated at the first one found.
var chatSentinels = []string{
	"<|im_end|>",
	"<|eot_id|>",
	"<|end|>",
}

// toolCallBrackets are the tool-call delimiter pairs observed across
// backends and their Unicode look-alike variants, stripped during
// response cleaning step 3.
var toolCallBrackets = [][2]string{
	{"<|tool_call_begin|>", "<|tool_call_end|>"},
	{"<｜tool▁call▁begin｜>", "<｜tool▁call▁end｜>"},
	{"<|tool_calls_begin|>", "<|tool_calls_end|>"},
}

// Clean applies the uniform response post-processing pipeline:
//  1. discard everything up to and including the first "</think>" marker,
//     along with any further "</think>" markers found in what's left;
//  2. truncate at the first chat sentinel token;
//  3. iteratively remove tool-call bracket pairs until none remain;
//  4. trim leading/trailing whitespace.
//
// Clean is idempotent: Clean(Clean(x)) == Clean(x), since each step either
// already found nothing to do on a second pass or leaves no trace of what
// it removed.
func Clean(s string) string {
	if parts := strings.Split(s, "</think>"); len(parts) > 1 {
		s = strings.Join(parts[1:], "")
	}

	for _, sentinel := range chatSentinels {
		if idx := strings.Index(s, sentinel); idx >= 0 {
			s = s[:idx]
		}
	}

	s = stripToolCallBlocks(s)

	return strings.TrimSpace(s)
}

// stripToolCallBlocks iteratively removes every pair of matching tool-call
// delimiters (and the text between them) until no configured pair is found
// in s anymore.
func stripToolCallBlocks(s string) string {
	for {
		removed := false
		for _, pair := range toolCallBrackets {
			start, end := pair[0], pair[1]
			si := strings.Index(s, start)
			if si < 0 {
				continue
			}
			ei := strings.Index(s[si:], end)
			if ei < 0 {
				// Unterminated block: drop everything from the open marker on.
				s = s[:si]
				removed = true
				continue
			}
			ei += si + len(end)
			s = s[:si] + s[ei:]
			removed = true
		}
		if !removed {
			return s
		}
	}
}
