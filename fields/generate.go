package fields

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// Charset names a pool of characters random strings are drawn from.
type Charset string

// Character sets understood by Sets.
const (
	Alpha        Charset = "alpha"
	Alphanumeric Charset = "alphanumeric"
	Numeric      Charset = "numeric"
	Latin1       Charset = "latin1"
	UTF8         Charset = "utf8"
	CJK          Charset = "cjk"
)

var charsetRunes = map[Charset][]rune{
	Alpha:        []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"),
	Alphanumeric: []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"),
	Numeric:      []rune("0123456789"),
	Latin1:       latin1Runes(),
	UTF8:         nil, // resolved per rune
	CJK:          nil, // resolved per rune
}

func latin1Runes() []rune {
	out := make([]rune, 0, 0xff-0xc0)
	for r := rune(0xc0); r <= 0xfe; r++ {
		if r == 0xd7 || r == 0xf7 { // multiplication and division signs
			continue
		}
		out = append(out, r)
	}
	return out
}

func randomRune(set Charset) rune {
	switch set {
	case CJK:
		return rune(0x4e00 + rand.IntN(0x9fff-0x4e00+1))
	case UTF8:
		// Basic multilingual plane, skipping controls and surrogates.
		for {
			r := rune(0x21 + rand.IntN(0xd7ff-0x21+1))
			if r >= 0x7f && r <= 0xa0 {
				continue
			}
			return r
		}
	default:
		runes := charsetRunes[set]
		return runes[rand.IntN(len(runes))]
	}
}

// randomString draws n runes from a randomly chosen set out of sets.
// With no sets given it draws alphanumeric characters.
func randomString(n int, sets []Charset) string {
	if n <= 0 {
		n = 1
	}
	set := Alphanumeric
	if len(sets) > 0 {
		set = sets[rand.IntN(len(sets))]
	}
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteRune(randomRune(set))
	}
	return b.String()
}

// randomInstant returns a time within five years either side of now,
// truncated to whole seconds.
func randomInstant() time.Time {
	const window = 5 * 365 * 24 * time.Hour
	offset := time.Duration(rand.Int64N(int64(2*window))) - window
	return time.Now().Add(offset).Truncate(time.Second).UTC()
}

func randomIPv4() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		1+rand.IntN(254), rand.IntN(256), rand.IntN(256), 1+rand.IntN(254))
}

func randomMAC() string {
	octets := make([]string, 6)
	for i := range octets {
		b := rand.IntN(256)
		if i == 0 {
			b &= 0xfe // unicast
		}
		octets[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(octets, ":")
}

// validNetmasks lists every contiguous IPv4 netmask from /1 to /31.
var validNetmasks = []string{
	"128.0.0.0", "192.0.0.0", "224.0.0.0", "240.0.0.0",
	"248.0.0.0", "252.0.0.0", "254.0.0.0", "255.0.0.0",
	"255.128.0.0", "255.192.0.0", "255.224.0.0", "255.240.0.0",
	"255.248.0.0", "255.252.0.0", "255.254.0.0", "255.255.0.0",
	"255.255.128.0", "255.255.192.0", "255.255.224.0", "255.255.240.0",
	"255.255.248.0", "255.255.252.0", "255.255.254.0", "255.255.255.0",
	"255.255.255.128", "255.255.255.192", "255.255.255.224", "255.255.255.240",
	"255.255.255.248", "255.255.255.252", "255.255.255.254",
}
