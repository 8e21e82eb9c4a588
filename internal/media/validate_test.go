// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Classifies(t *testing.T) {
	cases := []struct {
		raw  string
		kind Kind
	}{
		{"", KindEmpty},
		{"   ", KindEmpty},
		{"blob:https://app.example/3f1c2d", KindSessionLocal},
		{"BLOB:https://app.example/3f1c2d", KindSessionLocal},
		{"https://cdn.example/reel.mp4", KindDurable},
		{"http://cdn.example/reel.mp4", KindDurable},
		{"ftp://cdn.example/reel.mp4", KindUnknown},
		{"reel.mp4", KindUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, Parse(tc.raw).Kind, "raw=%q", tc.raw)
	}
}

func TestParse_TrimsAndNormalises(t *testing.T) {
	// "e" + combining acute accent normalises to the precomposed form.
	ref := Parse("  https://cdn.example/café.mp4 \n")
	assert.Equal(t, "https://cdn.example/café.mp4", ref.Source)
	assert.True(t, ref.Same(Parse("https://cdn.example/café.mp4")))
}

func TestValidate_SentinelTokens(t *testing.T) {
	for _, raw := range []string{
		"https://cdn.example/undefined",
		"blob:https://app.example/null-0000000000000",
		"https://cdn.example/[object Object]",
		"undefined",
	} {
		assert.Equal(t, ProblemSentinel, Validate(Parse(raw), Authenticated), "raw=%q", raw)
	}
}

func TestValidate_SessionLocal(t *testing.T) {
	require.Equal(t, ProblemTruncated, Validate(Parse("blob:x"), Authenticated))
	exact := "blob:" + "123456789012345"
	require.Len(t, exact, MinSessionLocalLength)
	require.Equal(t, ProblemNone, Validate(Parse(exact), Authenticated))

	long := "blob:abc1234567890123456"
	require.Equal(t, ProblemNone, Validate(Parse(long), Authenticated))
	require.Equal(t, ProblemSignInRequired, Validate(Parse(long), Anonymous))
}

func TestValidate_SessionLocalLengthBoundary(t *testing.T) {
	cases := []struct {
		n    int
		want Problem
	}{
		{MinSessionLocalLength - 1, ProblemTruncated},
		{MinSessionLocalLength, ProblemNone},
		{MinSessionLocalLength + 1, ProblemNone},
	}
	for _, tc := range cases {
		raw := "blob:" + strings.Repeat("a", tc.n-len("blob:"))
		require.Len(t, raw, tc.n)
		assert.Equal(t, tc.want, Validate(Parse(raw), Authenticated), "len=%d", tc.n)
	}
}

func TestValidate_DurableIgnoresAuth(t *testing.T) {
	ref := Parse("https://cdn.example/reel.mp4")
	assert.Equal(t, ProblemNone, Validate(ref, Anonymous))
	assert.Equal(t, ProblemNone, Validate(ref, Authenticated))
}

func TestValidate_EmptyAndUnknown(t *testing.T) {
	assert.Equal(t, ProblemEmpty, Validate(Parse(""), Authenticated))
	assert.Equal(t, ProblemUnsupportedScheme, Validate(Parse("file:///etc/passwd"), Authenticated))
}

func TestProblem_MessageAndRetry(t *testing.T) {
	assert.False(t, ProblemTruncated.Retryable())
	assert.Equal(t, "No valid media available.", ProblemSentinel.Message())
	assert.Equal(t, "Sign in to view this media.", ProblemSignInRequired.Message())
	assert.Empty(t, ProblemNone.Message())
}

func TestReference_Redacted(t *testing.T) {
	ref := Parse("https://bucket.example/reel.mp4?X-Amz-Signature=abc")
	assert.Equal(t, "https://bucket.example/reel.mp4?…", ref.Redacted())
	assert.Equal(t, "blob:https://app.example/1234567890", Parse("blob:https://app.example/1234567890").Redacted())
}
