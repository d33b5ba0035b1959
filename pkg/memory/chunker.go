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
	"github.com/pkoukk/tiktoken-go"
)

// Chunker windows text into token-bounded pieces for embedding. It uses
// the cl100k_base encoding when available and falls back to a rune
// estimate of roughly four characters per token otherwise.
type Chunker struct {
	size    int
	overlap int

	encode func(string) []int
	decode func([]int) string
}

// NewChunker builds a chunker with the given token size and overlap.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 400
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	c := &Chunker{size: size, overlap: overlap}
	// GetEncoding downloads the vocabulary on first use; offline hosts
	// keep working on the estimate.
	if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		c.encode = func(text string) []int { return enc.Encode(text, nil, nil) }
		c.decode = enc.Decode
	}
	return c
}

// Split windows text into chunks of at most the configured token size,
// with consecutive chunks sharing the configured overlap. Text that fits
// in one chunk comes back unchanged.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	if c.encode == nil {
		return c.splitRunes(text)
	}

	tokens := c.encode(text)
	if len(tokens) <= c.size {
		return []string{text}
	}

	var chunks []string
	step := c.size - c.overlap
	for start := 0; start < len(tokens); start += step {
		end := start + c.size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, c.decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// Truncate returns the first chunk of text.
func (c *Chunker) Truncate(text string) string {
	chunks := c.Split(text)
	if len(chunks) == 0 {
		return ""
	}
	return chunks[0]
}

func (c *Chunker) splitRunes(text string) []string {
	size := c.size * 4
	step := (c.size - c.overlap) * 4

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
