package validation

import "strings"

// NormalizeCPF strips every non-digit character ("123.456.789-09" -> "12345678909").
func NormalizeCPF(s string) string {
	return digitsOnly(s)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCPF checks the length, the repeated-digit blacklist and both mod-11
// check digits of a Brazilian CPF. Formatting characters are ignored.
func ValidCPF(s string) bool {
	cpf := NormalizeCPF(s)
	if len(cpf) != 11 {
		return false
	}

	allSame := true
	for i := 1; i < 11; i++ {
		if cpf[i] != cpf[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	digits := make([]int, 11)
	for i := range cpf {
		digits[i] = int(cpf[i] - '0')
	}

	return checkDigit(digits[:9]) == digits[9] && checkDigit(digits[:10]) == digits[10]
}

// checkDigit weighs the digits from len+1 down to 2.
func checkDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

// MaskCPF renders a CPF as "***.456.789-**" for logs and moderator captions.
func MaskCPF(s string) string {
	cpf := NormalizeCPF(s)
	if len(cpf) != 11 {
		return "***"
	}
	return "***." + cpf[3:6] + "." + cpf[6:9] + "-**"
}

// FormatCPF renders a CPF as "123.456.789-09".
func FormatCPF(s string) string {
	cpf := NormalizeCPF(s)
	if len(cpf) != 11 {
		return s
	}
	return cpf[0:3] + "." + cpf[3:6] + "." + cpf[6:9] + "-" + cpf[9:11]
}
