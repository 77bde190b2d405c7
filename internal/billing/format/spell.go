// Package format renders invoice grand totals in spelled-out form for the
// supported document locales.
package format

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SpellAmount renders amount as words in the given locale, with the
// fractional part appended as hundredths. Unknown locales fall back to "en".
//
//	SpellAmount(1234.50, "EUR", "en") = "one thousand two hundred thirty-four and 50/100 EUR"
//	SpellAmount(1234.50, "RUB", "ru") = "одна тысяча двести тридцать четыре и 50/100 RUB"
func SpellAmount(amount decimal.Decimal, currency, locale string) string {
	negative := amount.IsNegative()
	abs := amount.Abs().Round(2)

	units := abs.IntPart()
	cents := abs.Sub(decimal.NewFromInt(units)).Mul(decimal.NewFromInt(100)).IntPart()

	var words string
	switch strings.ToLower(locale) {
	case "ru":
		words = spellRussian(units)
	default:
		words = spellEnglish(units)
	}
	if negative {
		switch strings.ToLower(locale) {
		case "ru":
			words = "минус " + words
		default:
			words = "minus " + words
		}
	}

	conj := "and"
	if strings.ToLower(locale) == "ru" {
		conj = "и"
	}
	return fmt.Sprintf("%s %s %02d/100 %s", words, conj, cents, currency)
}

var enOnes = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight",
	"nine", "ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen",
	"sixteen", "seventeen", "eighteen", "nineteen",
}

var enTens = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy",
	"eighty", "ninety",
}

var enScales = []string{"", "thousand", "million", "billion", "trillion"}

func spellEnglish(n int64) string {
	if n == 0 {
		return enOnes[0]
	}

	var groups []int64
	for n > 0 {
		groups = append(groups, n%1000)
		n /= 1000
	}

	var parts []string
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if g == 0 {
			continue
		}
		part := spellEnglishGroup(g)
		if enScales[i] != "" {
			part += " " + enScales[i]
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

func spellEnglishGroup(n int64) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, enOnes[n/100]+" hundred")
		n %= 100
	}
	switch {
	case n >= 20:
		word := enTens[n/10]
		if n%10 != 0 {
			word += "-" + enOnes[n%10]
		}
		parts = append(parts, word)
	case n > 0:
		parts = append(parts, enOnes[n])
	}
	return strings.Join(parts, " ")
}

var ruOnes = []string{
	"ноль", "один", "два", "три", "четыре", "пять", "шесть", "семь",
	"восемь", "девять", "десять", "одиннадцать", "двенадцать",
	"тринадцать", "четырнадцать", "пятнадцать", "шестнадцать",
	"семнадцать", "восемнадцать", "девятнадцать",
}

// Thousands take feminine forms for one and two.
var ruOnesFeminine = map[int64]string{1: "одна", 2: "две"}

var ruTens = []string{
	"", "", "двадцать", "тридцать", "сорок", "пятьдесят", "шестьдесят",
	"семьдесят", "восемьдесят", "девяносто",
}

var ruHundreds = []string{
	"", "сто", "двести", "триста", "четыреста", "пятьсот", "шестьсот",
	"семьсот", "восемьсот", "девятьсот",
}

type ruScale struct {
	one, few, many string
	feminine       bool
}

var ruScales = []ruScale{
	{},
	{one: "тысяча", few: "тысячи", many: "тысяч", feminine: true},
	{one: "миллион", few: "миллиона", many: "миллионов"},
	{one: "миллиард", few: "миллиарда", many: "миллиардов"},
	{one: "триллион", few: "триллиона", many: "триллионов"},
}

func spellRussian(n int64) string {
	if n == 0 {
		return ruOnes[0]
	}

	var groups []int64
	for n > 0 {
		groups = append(groups, n%1000)
		n /= 1000
	}

	var parts []string
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if g == 0 {
			continue
		}
		scale := ruScales[i]
		parts = append(parts, spellRussianGroup(g, scale.feminine))
		if scale.one != "" {
			parts = append(parts, ruPlural(g, scale))
		}
	}
	return strings.Join(parts, " ")
}

func spellRussianGroup(n int64, feminine bool) string {
	var parts []string
	if n >= 100 {
		parts = append(parts, ruHundreds[n/100])
		n %= 100
	}
	switch {
	case n >= 20:
		parts = append(parts, ruTens[n/10])
		if rest := n % 10; rest != 0 {
			parts = append(parts, ruOne(rest, feminine))
		}
	case n > 0:
		parts = append(parts, ruOne(n, feminine))
	}
	return strings.Join(parts, " ")
}

func ruOne(n int64, feminine bool) string {
	if feminine {
		if w, ok := ruOnesFeminine[n]; ok {
			return w
		}
	}
	return ruOnes[n]
}

func ruPlural(n int64, scale ruScale) string {
	last := n % 10
	lastTwo := n % 100
	switch {
	case lastTwo >= 11 && lastTwo <= 14:
		return scale.many
	case last == 1:
		return scale.one
	case last >= 2 && last <= 4:
		return scale.few
	default:
		return scale.many
	}
}
