// Package structured implements heuristics for structured sensitive data in
// text: payment card numbers and US social security numbers.
package structured

// Labels reported when a count reaches its configured minimum.
const (
	LabelCreditCard = "Heuristics.Structured.CreditCardNumber"
	LabelSSN        = "Heuristics.Structured.SSN"
)

// Mode selects which SSN forms are counted. Card numbers are always counted.
type Mode uint8

// Modes.
const (
	// SSNNormal counts numbers written "ddd-dd-dddd".
	SSNNormal Mode = 1 << iota
	// SSNStripped counts numbers written "ddddddddd".
	SSNStripped
)

// Card numbers are 13 to 16 digits.
const (
	minCardDigits = 13
	maxCardDigits = 16
)

// Run is a maximal sequence of digits, possibly with single space or dash
// separators between digits.
type run struct {
	raw    []byte
	digits []byte
	seps   int
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Runs calls fn for each digit run in data.
func runs(data []byte, fn func(*run)) {
	var r run
	for i := 0; i < len(data); {
		if !isDigit(data[i]) {
			i++
			continue
		}
		start := i
		r.digits = r.digits[:0]
		r.seps = 0
		for i < len(data) {
			c := data[i]
			if isDigit(c) {
				r.digits = append(r.digits, c)
				i++
				continue
			}
			if (c == ' ' || c == '-') && i+1 < len(data) && isDigit(data[i+1]) {
				r.seps++
				i++
				continue
			}
			break
		}
		r.raw = data[start:i]
		fn(&r)
	}
}

// Count reports the number of valid card numbers and SSNs in data.
func Count(data []byte, m Mode) (cc, ssn int) {
	runs(data, func(r *run) {
		switch {
		case len(r.digits) >= minCardDigits && len(r.digits) <= maxCardDigits:
			if validCard(r.digits) {
				cc++
			}
		case len(r.digits) == 9:
			if isSSN(r, m) {
				ssn++
			}
		}
	})
	return cc, ssn
}

// ValidCard checks the issuer prefix and the Luhn checksum.
func validCard(d []byte) bool {
	if !knownIssuer(d) {
		return false
	}
	sum := 0
	double := false
	for i := len(d) - 1; i >= 0; i-- {
		n := int(d[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

func prefix(d []byte, n int) int {
	v := 0
	for _, c := range d[:n] {
		v = v*10 + int(c-'0')
	}
	return v
}

// KnownIssuer checks the leading digits against the major card networks.
func knownIssuer(d []byte) bool {
	switch l := len(d); {
	case d[0] == '4': // Visa
		return l == 13 || l == 16
	case l == 15 && (prefix(d, 2) == 34 || prefix(d, 2) == 37): // American Express
		return true
	case l == 16:
		p2, p4 := prefix(d, 2), prefix(d, 4)
		switch {
		case p2 >= 51 && p2 <= 55, p4 >= 2221 && p4 <= 2720: // Mastercard
			return true
		case p4 == 6011, p2 == 65: // Discover
			return true
		case p4 >= 3528 && p4 <= 3589: // JCB
			return true
		}
	case l == 14 && (prefix(d, 2) == 36 || prefix(d, 2) == 38): // Diners Club
		return true
	}
	return false
}

func isSSN(r *run, m Mode) bool {
	switch {
	case r.seps == 0 && m&SSNStripped != 0:
	case r.seps == 2 && m&SSNNormal != 0 &&
		len(r.raw) == 11 && r.raw[3] == '-' && r.raw[6] == '-':
	default:
		return false
	}
	area, group, serial := prefix(r.digits, 3), prefix(r.digits[3:], 2), prefix(r.digits[5:], 4)
	switch {
	case area == 0, area == 666, area >= 900:
		return false
	case group == 0, serial == 0:
		return false
	}
	return true
}
