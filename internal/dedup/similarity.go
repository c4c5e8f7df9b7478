package dedup

import (
	"strings"

	"github.com/vporoshin/curator/internal/model"
)

// Ratio computes the Ratcliff/Obershelp sequence-similarity ratio between
// two strings: twice the number of matching characters found by
// recursively locating the longest common contiguous block, divided by the
// total length of both strings. Identical non-empty inputs yield 1.0;
// either input being empty yields 0.0. The ratio is symmetric.
func Ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	ra := []rune(a)
	rb := []rune(b)
	matched := matchingRunes(ra, rb, 0, len(ra), 0, len(rb))
	return 2.0 * float64(matched) / float64(len(ra)+len(rb))
}

// ClusterText builds the comparison text for an item: lower-cased title
// plus up to the first 500 characters of content.
func ClusterText(item model.RawItem) string {
	text := item.Title
	if item.Content != "" {
		text += " " + truncateRunes(item.Content, 500)
	}
	return strings.ToLower(text)
}

// matchingRunes counts matched characters between a[alo:ahi] and
// b[blo:bhi]: the longest common block plus, recursively, the matches in
// the segments to its left and right.
func matchingRunes(a, b []rune, alo, ahi, blo, bhi int) int {
	ai, bj, size := longestMatch(a, b, alo, ahi, blo, bhi)
	if size == 0 {
		return 0
	}
	return size +
		matchingRunes(a, b, alo, ai, blo, bj) +
		matchingRunes(a, b, ai+size, ahi, bj+size, bhi)
}

// longestMatch finds the longest contiguous block common to a[alo:ahi] and
// b[blo:bhi], preferring the earliest occurrence on ties.
func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	b2j := make(map[rune][]int, bhi-blo)
	for j := blo; j < bhi; j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	besti, bestj = alo, blo
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		// Lengths of runs ending at each j for the current i.
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
