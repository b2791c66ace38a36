package modelclient

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "  flag{hello}  ",
			want: "flag{hello}",
		},
		{
			name: "strips reasoning preamble",
			in:   "some reasoning here</think>the actual answer",
			want: "the actual answer",
		},
		{
			name: "truncates at chat sentinel",
			in:   "the answer<|im_end|>garbage after",
			want: "the answer",
		},
		{
			name: "removes a tool call block",
			in:   "before<|tool_call_begin|>{\"name\":\"x\"}<|tool_call_end|>after",
			want: "beforeafter",
		},
		{
			name: "removes unicode tool call variant",
			in:   "before<｜tool▁call▁begin｜>junk<｜tool▁call▁end｜>after",
			want: "beforeafter",
		},
		{
			name: "removes multiple tool call blocks",
			in:   "a<|tool_call_begin|>1<|tool_call_end|>b<|tool_call_begin|>2<|tool_call_end|>c",
			want: "abc",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Clean(tc.in); got != tc.want {
				t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"some reasoning</think>answer<|im_end|>trailing",
		"before<|tool_call_begin|>x<|tool_call_end|>after",
		"  plain  ",
		"",
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent for %q: Clean(x)=%q Clean(Clean(x))=%q", in, once, twice)
		}
	}
}
