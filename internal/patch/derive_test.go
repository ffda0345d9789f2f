package patch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		old  []byte
		new  []byte
	}{
		{
			name: "replace_middle_line",
			old:  []byte("foo\nbar\nbaz\n"),
			new:  []byte("foo\nBAR\nbaz\n"),
		},
		{
			name: "create_file",
			old:  nil,
			new:  []byte("hello\nworld\n"),
		},
		{
			name: "create_without_trailing_newline",
			old:  nil,
			new:  []byte("hello"),
		},
		{
			name: "append_lines",
			old:  []byte("one\n"),
			new:  []byte("one\ntwo\nthree\n"),
		},
		{
			name: "delete_lines",
			old:  []byte("one\ntwo\nthree\n"),
			new:  []byte("two\n"),
		},
		{
			name: "lose_trailing_newline",
			old:  []byte("a\nb\n"),
			new:  []byte("a\nb"),
		},
		{
			name: "gain_trailing_newline",
			old:  []byte("a\nb"),
			new:  []byte("a\nb\n"),
		},
		{
			name: "empty_to_content",
			old:  []byte(""),
			new:  []byte("filled\n"),
		},
		{
			name: "content_to_empty",
			old:  []byte("gone\n"),
			new:  []byte(""),
		},
		{
			name: "unchanged",
			old:  []byte("same\nsame\n"),
			new:  []byte("same\nsame\n"),
		},
		{
			name: "interleaved_edits",
			old:  []byte("a\nb\nc\nd\ne\n"),
			new:  []byte("a\nB\nc\nX\nd\n"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			hunks := DeriveHunks(tc.old, tc.new)

			got, err := Reconstruct(tc.old, hunks)
			require.NoError(t, err)
			require.Equal(t, string(tc.new), string(got))
		})
	}
}
