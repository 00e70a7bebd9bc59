package markov

// train counts every order-length window of runes, then every
// (order+1)-length window, adding one to the stored count of each.
func (m *Model) train(runes []rune) error {
	var keyBuf []rune
	for _, length := range []int{m.order, m.order + 1} {
		for i := range runes {
			keyBuf = appendWindow(keyBuf[:0], runes, i, length)
			gram := string(keyBuf)
			if err := m.counts.Set(gram, m.counts.Get(gram)+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// appendWindow appends the length runes starting at start to dst, wrapping
// past the end of src back to its beginning. src must not be empty.
func appendWindow(dst, src []rune, start, length int) []rune {
	n := len(src)
	for j := range length {
		dst = append(dst, src[(start+j)%n])
	}
	return dst
}

// alphabetSize counts the distinct runes in runes.
func alphabetSize(runes []rune) int {
	seen := make(map[rune]struct{})
	for _, r := range runes {
		seen[r] = struct{}{}
	}
	return len(seen)
}
