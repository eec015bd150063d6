package contraction

import (
	"strconv"
	"strings"
)

// keyBuilder produces the canonical attribute encodings behind Key methods.
// Fields are separated by ';' and lists are length-prefixed, so distinct
// attribute tuples never collide.
type keyBuilder struct {
	sb strings.Builder
}

func (k *keyBuilder) sep() {
	if k.sb.Len() > 0 {
		k.sb.WriteByte(';')
	}
}

func (k *keyBuilder) int(v int) *keyBuilder {
	k.sep()
	k.sb.WriteString(strconv.Itoa(v))
	return k
}

func (k *keyBuilder) bool(v bool) *keyBuilder {
	if v {
		return k.int(1)
	}
	return k.int(0)
}

func (k *keyBuilder) str(s string) *keyBuilder {
	k.sep()
	k.sb.WriteString(strconv.Quote(s))
	return k
}

func (k *keyBuilder) ints(vs []int) *keyBuilder {
	k.sep()
	k.sb.WriteByte('[')
	for i, v := range vs {
		if i > 0 {
			k.sb.WriteByte(',')
		}
		k.sb.WriteString(strconv.Itoa(v))
	}
	k.sb.WriteByte(']')
	return k
}

// nested embeds another key as one field.
func (k *keyBuilder) nested(s string) *keyBuilder {
	k.sep()
	k.sb.WriteByte('{')
	k.sb.WriteString(s)
	k.sb.WriteByte('}')
	return k
}

func (k *keyBuilder) String() string {
	return k.sb.String()
}

// indexChars names logical indices in fingerprints and generated comments.
const indexChars = "ijklmnopqrstuvwxyz"

// IndexChar returns the lower-case letter for logical index i, or '?' when i
// is outside the alphabet.
func IndexChar(i int) string {
	if i < 0 || i >= len(indexChars) {
		return "?"
	}
	return indexChars[i : i+1]
}
