package card

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	numberPrefix = "51"
	numberLength = 16
)

// GenerateNumber returns a random Luhn-valid 16 digit card number with the issuer prefix
func GenerateNumber() (string, error) {
	var sb strings.Builder
	sb.WriteString(numberPrefix)
	for sb.Len() < numberLength-1 {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate card number: %w", err)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	partial := sb.String()
	return partial + string(rune('0'+luhnCheckDigit(partial))), nil
}

// luhnCheckDigit computes the digit that makes partial+digit pass the Luhn check
func luhnCheckDigit(partial string) int {
	sum := 0
	double := true
	for i := len(partial) - 1; i >= 0; i-- {
		d := int(partial[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// ValidNumber reports whether number is all digits and passes the Luhn check
func ValidNumber(number string) bool {
	if len(number) < 2 {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	last := len(number) - 1
	return luhnCheckDigit(number[:last]) == int(number[last]-'0')
}

// MaskNumber renders a card number as "**** **** **** 1234"
func MaskNumber(number string) string {
	if len(number) < 4 {
		return "****"
	}
	return "**** **** **** " + number[len(number)-4:]
}
