package webhook

// NormalizeCPF strips everything but digits, so "123.456.789-09"
// becomes "12345678909". Validation is separate: the scheduling
// engines expect an already-normalized numeric string.
func NormalizeCPF(raw string) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			out = append(out, raw[i])
		}
	}
	return string(out)
}

// ValidCPF checks a normalized CPF: 11 digits, not a repdigit, and
// both verification digits correct.
func ValidCPF(cpf string) bool {
	if len(cpf) != 11 {
		return false
	}

	allEqual := true
	for i := 1; i < 11; i++ {
		if cpf[i] != cpf[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return false
	}

	return int(cpf[9]-'0') == cpfCheckDigit(cpf, 9) && int(cpf[10]-'0') == cpfCheckDigit(cpf, 10)
}

// cpfCheckDigit computes the verification digit over the first n
// digits, weights n+1 down to 2.
func cpfCheckDigit(cpf string, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += int(cpf[i]-'0') * (n + 1 - i)
	}
	d := sum * 10 % 11
	if d == 10 {
		d = 0
	}
	return d
}
