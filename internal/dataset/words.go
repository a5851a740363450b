package dataset

import "strings"

var (
	smallNumbers = []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
		"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	tens   = []string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}
	scales = []string{"", "thousand", "million", "billion", "trillion", "quadrillion", "quintillion"}
)

// NumberToWords spells n in English words, e.g. 1204 -> "one thousand two
// hundred four". Words are space separated so they tokenize cleanly.
func NumberToWords(n int64) string {
	if n == 0 {
		return smallNumbers[0]
	}
	var words []string
	if n < 0 {
		words = append(words, "minus")
		n = -n
	}
	var groups []int64
	for n > 0 {
		groups = append(groups, n%1000)
		n /= 1000
	}
	for i := len(groups) - 1; i >= 0; i-- {
		if groups[i] == 0 {
			continue
		}
		words = append(words, hundreds(groups[i])...)
		if scales[i] != "" {
			words = append(words, scales[i])
		}
	}
	return strings.Join(words, " ")
}

func hundreds(n int64) []string {
	var words []string
	if n >= 100 {
		words = append(words, smallNumbers[n/100], "hundred")
		n %= 100
	}
	switch {
	case n == 0:
	case n < 20:
		words = append(words, smallNumbers[n])
	default:
		words = append(words, tens[n/10])
		if n%10 != 0 {
			words = append(words, smallNumbers[n%10])
		}
	}
	return words
}
