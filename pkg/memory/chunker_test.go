// Copyright 2025 The mrvn authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubChunker treats every rune as one token, so window geometry is
// exact without the cl100k_base vocabulary.
func stubChunker(size, overlap int) *Chunker {
	c := &Chunker{size: size, overlap: overlap}
	c.encode = func(text string) []int {
		tokens := make([]int, 0, len(text))
		for _, r := range text {
			tokens = append(tokens, int(r))
		}
		return tokens
	}
	c.decode = func(tokens []int) string {
		runes := make([]rune, len(tokens))
		for i, tok := range tokens {
			runes[i] = rune(tok)
		}
		return string(runes)
	}
	return c
}

func TestChunkerShortTextUnchanged(t *testing.T) {
	c := stubChunker(10, 2)
	assert.Equal(t, []string{"hello"}, c.Split("hello"))
	assert.Equal(t, "hello", c.Truncate("hello"))
}

func TestChunkerEmptyText(t *testing.T) {
	c := stubChunker(10, 2)
	assert.Nil(t, c.Split(""))
	assert.Equal(t, "", c.Truncate(""))
}

func TestChunkerWindowsWithOverlap(t *testing.T) {
	c := stubChunker(4, 1)
	chunks := c.Split("abcdefghij")
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, chunks)
}

func TestChunkerFinalPartialWindow(t *testing.T) {
	c := stubChunker(4, 0)
	chunks := c.Split("abcdefghi")
	assert.Equal(t, []string{"abcd", "efgh", "i"}, chunks)
}

func TestChunkerTruncateReturnsFirstWindow(t *testing.T) {
	c := stubChunker(4, 1)
	assert.Equal(t, "abcd", c.Truncate("abcdefghij"))
}

func TestChunkerRuneFallback(t *testing.T) {
	// No codec wired, so the estimate of four runes per token applies.
	c := &Chunker{size: 2, overlap: 1}

	assert.Equal(t, []string{"short"}, c.Split("short"))

	chunks := c.Split("abcdefghijkl")
	assert.Equal(t, []string{"abcdefgh", "efghijkl"}, chunks)
}
