package integrations

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func repeatedDigits(value string) bool {
	return strings.Count(value, value[:1]) == len(value)
}

// ValidCPF checks length and both check digits of a CPF.
func ValidCPF(cpf string) bool {
	clean := digitsOnly(cpf)
	if len(clean) != 11 || repeatedDigits(clean) {
		return false
	}
	for _, size := range []int{9, 10} {
		sum := 0
		for i := 0; i < size; i++ {
			sum += int(clean[i]-'0') * (size + 1 - i)
		}
		remainder := (sum * 10) % 11
		if remainder == 10 {
			remainder = 0
		}
		if remainder != int(clean[size]-'0') {
			return false
		}
	}
	return true
}

// ValidCNPJ checks length and both check digits of a CNPJ.
func ValidCNPJ(cnpj string) bool {
	clean := digitsOnly(cnpj)
	if len(clean) != 14 || repeatedDigits(clean) {
		return false
	}
	for _, size := range []int{12, 13} {
		sum := 0
		weight := size - 7
		for i := 0; i < size; i++ {
			sum += int(clean[i]-'0') * weight
			weight--
			if weight < 2 {
				weight = 9
			}
		}
		digit := 0
		if sum%11 >= 2 {
			digit = 11 - sum%11
		}
		if digit != int(clean[size]-'0') {
			return false
		}
	}
	return true
}

// ValidDocument accepts a valid CPF or CNPJ, chosen by digit count.
func ValidDocument(document string) bool {
	switch len(digitsOnly(document)) {
	case 11:
		return ValidCPF(document)
	case 14:
		return ValidCNPJ(document)
	default:
		return false
	}
}
