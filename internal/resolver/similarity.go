package resolver

// ratio returns the Ratcliff/Obershelp similarity 2*M/T between a and b,
// where M is the number of runes in matching blocks found by repeatedly
// taking the longest common substring. It follows difflib's SequenceMatcher
// without junk heuristics, which only engage for sequences of 200+ items.
func ratio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(a, b)) / float64(total)
}

// quickRatio is an upper bound on ratio computed from rune multisets.
func quickRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	avail := make(map[rune]int, len(b))
	for _, r := range b {
		avail[r]++
	}
	matches := 0
	for _, r := range a {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}

// realQuickRatio is an upper bound on quickRatio from lengths alone.
func realQuickRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(min(len(a), len(b))) / float64(total)
}

func matchingRunes(a, b []rune) int {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(a), 0, len(b)}}
	matched := 0
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matched
}

// longestMatch finds the longest block a[i:i+k] == b[j:j+k] inside the given
// bounds, preferring the earliest i and then the earliest j.
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (int, int, int) {
	besti, bestj, bestk := alo, blo, 0
	lengths := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := lengths[j-1] + 1
			next[j] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		lengths = next
	}
	return besti, bestj, bestk
}

// closestKey returns the candidate with the highest ratio to word that
// reaches cutoff. Equal scores resolve to the lexicographically greatest
// candidate, matching difflib.get_close_matches.
func closestKey(word string, candidates []string, cutoff float64) (string, bool) {
	target := []rune(word)
	best := ""
	bestScore := -1.0
	for _, candidate := range candidates {
		c := []rune(candidate)
		if realQuickRatio(c, target) < cutoff || quickRatio(c, target) < cutoff {
			continue
		}
		score := ratio(c, target)
		if score < cutoff {
			continue
		}
		if score > bestScore || (score == bestScore && candidate > best) {
			best, bestScore = candidate, score
		}
	}
	return best, bestScore >= 0
}
